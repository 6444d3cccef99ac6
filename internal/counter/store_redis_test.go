package counter

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbonregistry/pkg/platform/sentinel"
)

func TestRedisStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	_, err := NewRedis(client).Allocate(context.Background(), Project, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
