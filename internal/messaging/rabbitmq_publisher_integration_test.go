//go:build integration

package messaging_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"story-wizard/internal/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestRabbitMQEventPublisher_PublishesToQueue(t *testing.T) {
	ctx := context.Background()
	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3-management-alpine",
		testcontainers.WithWaitStrategy(wait.ForLog("Server startup complete")),
	)
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	amqpURL, err := container.AmqpURL(ctx)
	require.NoError(t, err)

	conn, err := messaging.ConnectRabbitMQ(ctx, amqpURL, 5, time.Second, zap.NewNop())
	require.NoError(t, err)
	defer conn.Close()

	pub, err := messaging.NewRabbitMQEventPublisher(conn, "wizard_events_test", zap.NewNop())
	require.NoError(t, err)
	defer pub.Close()

	ev := messaging.NewWizardEvent("s1", messaging.EventStoryFinalized, "synthesis")
	require.NoError(t, pub.PublishWizardEvent(ctx, ev))

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var got messaging.WizardEvent
	require.Eventually(t, func() bool {
		msg, ok, err := ch.Get("wizard_events_test", true)
		if err != nil || !ok {
			return false
		}
		return json.Unmarshal(msg.Body, &got) == nil
	}, 10*time.Second, 100*time.Millisecond)

	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, messaging.EventStoryFinalized, got.Type)
}
