package reservation

import (
	"context"
	"time"

	"reservo/models"
)

// Result is the uniform {success, id | message} shape returned to callers.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	// Err carries the classified cause for handlers that map it to HTTP codes.
	Err error `json:"-"`
}

// ListResult is {success, data[] | message}.
type ListResult struct {
	Success bool                 `json:"success"`
	Data    []models.Reservation `json:"data,omitempty"`
	Message string               `json:"message,omitempty"`
}

// ReservationService defines the store client used by handlers and the dashboard.
// None of its methods return errors: failures come back as Success=false.
type ReservationService interface {
	Create(ctx context.Context, input models.ReservationInput) Result
	List(ctx context.Context) ListResult
	Get(ctx context.Context, id string) (*models.Reservation, Result)
	Update(ctx context.Context, id string, fields models.ReservationUpdate) Result
	Delete(ctx context.Context, id string) bool
}

// MarkerSetter records that a status change came from the dashboard.
// ClearManual withdraws a marker whose write never happened.
type MarkerSetter interface {
	SetManual(ctx context.Context, reservationID string, ttl time.Duration) error
	ClearManual(ctx context.Context, reservationID string) error
}
