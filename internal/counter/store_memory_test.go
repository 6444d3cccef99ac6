package counter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryContract(t *testing.T) {
	runAllocatorContract(t, NewInMemory())
}

func TestInMemoryHonoursCancelledContext(t *testing.T) {
	store := NewInMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Allocate(ctx, Project, 1)
	assert.ErrorIs(t, err, context.Canceled)

	current, err := store.Allocate(context.Background(), Project, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), current, "cancelled allocation must not advance the counter")
}
