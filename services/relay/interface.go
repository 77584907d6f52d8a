package relay

import (
	"context"
	"errors"
	"time"

	"reservo/models"
)

var (
	// ErrInvalidEvent marks events that can never be forwarded.
	ErrInvalidEvent = errors.New("invalid webhook event")
	// ErrMarkerClear is returned when the manual marker could not be consumed.
	ErrMarkerClear = errors.New("failed to clear manual-update marker")
	// ErrForward is returned when the automation endpoint rejected or missed the call.
	ErrForward = errors.New("failed to forward event")
)

// MarkerStore holds the relay's ephemeral state.
type MarkerStore interface {
	// ConsumeManual atomically reads and removes the manual marker for id.
	ConsumeManual(ctx context.Context, id string) (bool, error)
	// RestoreManual puts a consumed marker back.
	RestoreManual(ctx context.Context, id string, ttl time.Duration) error
	// MarkForwarded records (id, version) and reports whether it was new.
	MarkForwarded(ctx context.Context, id string, version int64, ttl time.Duration) (bool, error)
	// UnmarkForwarded forgets (id, version) so a redelivery can forward it.
	UnmarkForwarded(ctx context.Context, id string, version int64) error
}

// Outcome describes a handled event.
type Outcome struct {
	Duplicate bool
	Payload   models.WebhookPayload
}
