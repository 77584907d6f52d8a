package models

import (
	"encoding/json"
	"time"
)

// Row-level change event types delivered to the webhook relay.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)

// Origins stamped on forwarded events.
const (
	OriginBooking    = "booking"
	OriginDashboard  = "dashboard"
	OriginAutomation = "automation"
)

// WebhookEvent is the body the backend trigger posts to the relay.
// Record and Old are in the store's wire format (snake_case columns).
type WebhookEvent struct {
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
	Old    json.RawMessage `json:"old,omitempty"`
}

// WebhookPayload is the normalized body forwarded to the automation endpoint.
type WebhookPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Date      string    `json:"date"`
	TimeSlot  string    `json:"timeSlot"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	EventType string    `json:"eventType"`
	Origin    string    `json:"origin"`
}
