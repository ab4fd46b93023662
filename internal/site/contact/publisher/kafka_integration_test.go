//go:build integration

package publisher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"autoscuola/internal/platform/config"
	"autoscuola/internal/platform/kafka"
	"autoscuola/internal/site/contact/models"
	"autoscuola/internal/site/contact/publisher"
	"autoscuola/pkg/testutil/containers"
)

func TestKafkaPublisherRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	broker := containers.GetManager().GetRedpanda(t)
	topic := "contact.submitted.test"

	producer, err := kafka.New(config.KafkaConfig{Brokers: broker.Brokers, Topic: topic})
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic))

	event := models.SubmittedEvent{ID: "id-1", Reference: "REF00001", Name: "Anna", Email: "anna@example.it", Message: "Ciao"}
	require.NoError(t, publisher.NewKafka(producer, topic).Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var got models.SubmittedEvent
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, "REF00001", got.Reference)
}
