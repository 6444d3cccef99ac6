//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"carbonregistry/internal/platform/config"
	"carbonregistry/internal/project/models"
	id "carbonregistry/pkg/domain"
	"carbonregistry/pkg/testutil/containers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestKafkaPublisherRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	kafka := containers.GetManager().GetKafka(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	topic := "registry.project.transitions." + uuid.NewString()[:8]
	pub, err := NewKafka(config.KafkaConfig{
		Brokers:           kafka.Brokers,
		Topic:             topic,
		Partitions:        1,
		ReplicationFactor: 1,
	})
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.EnsureTopic(ctx))
	require.NoError(t, pub.EnsureTopic(ctx), "ensuring an existing topic is a no-op")

	event := models.TransitionEvent{
		EventID:      uuid.New(),
		ProjectID:    "0042",
		SerialNumber: "NG-AFOLU-0042-2023-1-10",
		SubDomain:    id.SubDomainAgriculture,
		Sequence:     2,
		PriorStatus:  models.StatusRegistered,
		NewStatus:    models.StatusAuthorised,
		Actor:        "officer",
		OccurredAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(kafka.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "0042", string(records[0].Key))

	var got models.TransitionEvent
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, event, got)
}
