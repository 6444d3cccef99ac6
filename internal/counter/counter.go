// Package counter provides durable, atomically incrementing named counters.
//
// Allocate(name, count) hands the caller the half-open range
// [start, start+count) and advances the counter to start+count. Concurrent
// callers on the same name always receive pairwise-disjoint ranges whose union
// is gap-free from the prior value. A count of zero is a pure read.
//
// Counters are monotonic: a range handed out is never reclaimed, even if the
// caller fails afterwards. Such ranges are permanent gaps.
package counter

import (
	"fmt"
	"math"

	dErrors "carbonregistry/pkg/domain-errors"
)

// Name identifies a counter.
type Name string

// Well-known counters.
const (
	Project Name = "PROJECT"
	ITMO    Name = "ITMO"
)

func validate(name Name, count int64) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "counter name is required")
	}
	if count < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("counter %s: negative allocation %d", name, count))
	}
	return nil
}

// overflowErr reports an allocation that would push name past MaxInt64. The
// counter keeps its value.
func overflowErr(name Name, count int64) error {
	return dErrors.New(dErrors.CodeEncodingOverflow,
		fmt.Sprintf("counter %s: allocating %d would overflow", name, count))
}

func wouldOverflow(start, count int64) bool {
	return count > math.MaxInt64-start
}
