package tasks

import (
	"encoding/json"
	"fmt"

	"reservo/models"

	"github.com/hibiken/asynq"
)

// TypeReservationWebhook is the relay task type.
const TypeReservationWebhook = "reservation:webhook"

// RelayQueue is the asynq queue the relay worker drains.
const RelayQueue = "webhooks"

func NewWebhookTask(ev models.WebhookEvent, maxRetry int) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeReservationWebhook, b)
	opts := []asynq.Option{asynq.Queue(RelayQueue), asynq.MaxRetry(maxRetry)}

	return task, opts, nil
}

// ParseWebhookTask decodes a relay task payload.
func ParseWebhookTask(t *asynq.Task) (models.WebhookEvent, error) {
	var ev models.WebhookEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return ev, fmt.Errorf("decode webhook task: %w", err)
	}
	return ev, nil
}
