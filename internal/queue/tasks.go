package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names routed by the worker mux.
const (
	TypeEmailDeliver   = "notification:email"
	TypeWebhookDeliver = "notification:webhook"
)

// EmailPayload describes one outbound notification email.
type EmailPayload struct {
	From        string `json:"from"`
	To          string `json:"to"`
	UserID      string `json:"user_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	WorkspaceID string `json:"workspace_id"`
	EventType   string `json:"event_type"`
}

// WebhookPayload describes one outbound webhook call.
type WebhookPayload struct {
	URL         string          `json:"url"`
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	WorkspaceID string          `json:"workspace_id"`
	Body        json.RawMessage `json:"body"`
}

// NewTask marshals payload into an asynq task of the given type.
func NewTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(taskType, data), nil
}

// Decode unmarshals a task payload. Malformed payloads are not retried.
func Decode(t *asynq.Task, dest any) error {
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return fmt.Errorf("unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
