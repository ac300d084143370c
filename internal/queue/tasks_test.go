package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskRoundTripsThroughDecode(t *testing.T) {
	task, err := NewTask(TypeEmailDeliver, EmailPayload{To: "ada@example.com", Subject: "hi"})
	require.NoError(t, err)
	assert.Equal(t, TypeEmailDeliver, task.Type())

	var got EmailPayload
	require.NoError(t, Decode(task, &got))
	assert.Equal(t, "ada@example.com", got.To)
}

func TestDecodeMalformedSkipsRetry(t *testing.T) {
	var got WebhookPayload
	err := Decode(asynq.NewTask(TypeWebhookDeliver, []byte("{")), &got)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestRegistryRoutesByType(t *testing.T) {
	registry := NewHandlersRegistry()
	called := ""
	registry.Register(TypeEmailDeliver, asynq.HandlerFunc(func(_ context.Context, task *asynq.Task) error {
		called = task.Type()
		return nil
	}))

	require.NoError(t, registry.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeEmailDeliver, nil)))
	assert.Equal(t, TypeEmailDeliver, called)
}
