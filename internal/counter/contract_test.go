package counter

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "carbonregistry/pkg/domain-errors"
)

type allocator interface {
	Allocate(ctx context.Context, name Name, count int64) (int64, error)
}

type allocatedRange struct {
	start, count int64
}

// runAllocatorContract exercises the behaviour every backend must share.
// Each backend test calls it with a fresh store.
func runAllocatorContract(t *testing.T, store allocator) {
	ctx := context.Background()

	t.Run("lazily starts at zero", func(t *testing.T) {
		start, err := store.Allocate(ctx, "FRESH", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), start)
	})

	t.Run("zero count is a pure read", func(t *testing.T) {
		_, err := store.Allocate(ctx, "PEEK", 7)
		require.NoError(t, err)

		for range 3 {
			v, err := store.Allocate(ctx, "PEEK", 0)
			require.NoError(t, err)
			assert.Equal(t, int64(7), v)
		}
	})

	t.Run("sequential ranges are contiguous", func(t *testing.T) {
		first, err := store.Allocate(ctx, "SEQ", 5)
		require.NoError(t, err)
		second, err := store.Allocate(ctx, "SEQ", 3)
		require.NoError(t, err)
		assert.Equal(t, first+5, second)
	})

	t.Run("rejects negative count", func(t *testing.T) {
		_, err := store.Allocate(ctx, "NEG", -1)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("refuses allocations past the int64 range", func(t *testing.T) {
		start, err := store.Allocate(ctx, "HUGE", 10)
		require.NoError(t, err)

		_, err = store.Allocate(ctx, "HUGE", math.MaxInt64)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeEncodingOverflow))

		current, err := store.Allocate(ctx, "HUGE", 0)
		require.NoError(t, err)
		assert.Equal(t, start+10, current, "a refused allocation leaves the counter unchanged")
	})

	t.Run("counters are independent by name", func(t *testing.T) {
		_, err := store.Allocate(ctx, "A", 10)
		require.NoError(t, err)
		b, err := store.Allocate(ctx, "B", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), b)
	})

	t.Run("concurrent ranges are disjoint and gap-free", func(t *testing.T) {
		const name Name = "CONCURRENT"
		base, err := store.Allocate(ctx, name, 0)
		require.NoError(t, err)

		const workers = 40
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			ranges []allocatedRange
			total  int64
		)
		for i := range workers {
			count := int64(i%5 + 1)
			total += count
			wg.Add(1)
			go func() {
				defer wg.Done()
				start, err := store.Allocate(ctx, name, count)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				ranges = append(ranges, allocatedRange{start: start, count: count})
				mu.Unlock()
			}()
		}
		wg.Wait()
		require.Len(t, ranges, workers)

		sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
		next := base
		for _, r := range ranges {
			assert.Equal(t, next, r.start, "ranges must tile without gaps or overlap")
			next = r.start + r.count
		}
		assert.Equal(t, base+total, next)

		current, err := store.Allocate(ctx, name, 0)
		require.NoError(t, err)
		assert.Equal(t, base+total, current)
	})
}
