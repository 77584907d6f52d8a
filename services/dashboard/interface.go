package dashboard

import (
	"context"
	"errors"
	"time"

	"reservo/models"
	"reservo/services/realtime"
	"reservo/services/reservation"
)

// State is the viewer-facing state of a loop.
type State string

const (
	StateLoading         State = "loading"
	StateReady           State = "ready"
	StateError           State = "error"
	StateUnauthenticated State = "unauthenticated"
)

// ErrLoadingTimedOut is the message surfaced when loading outlives the watchdog.
const ErrLoadingTimedOut = "loading timed out"

// ErrNotVerified rejects viewer edits made before the session check passed.
var ErrNotVerified = errors.New("session not verified")

// View is a snapshot pushed to watchers.
type View struct {
	State        State                `json:"state"`
	Loading      bool                 `json:"loading"`
	Error        string               `json:"error,omitempty"`
	Realtime     realtime.Status      `json:"realtime,omitempty"`
	Reservations []models.Reservation `json:"reservations"`
}

// Store is the subset of the store client the loop drives.
type Store interface {
	List(ctx context.Context) reservation.ListResult
	Update(ctx context.Context, id string, fields models.ReservationUpdate) reservation.Result
	Delete(ctx context.Context, id string) bool
}

// Notifier announces newly inserted reservations to the viewer.
type Notifier interface {
	NotifyNewReservation(ctx context.Context, r models.Reservation) error
}

// Timings controls the loop's timers.
type Timings struct {
	Backstop       time.Duration
	LoadingTimeout time.Duration
	SessionRecheck time.Duration
}

// DefaultTimings are the production timer values.
var DefaultTimings = Timings{
	Backstop:       120 * time.Second,
	LoadingTimeout: 10 * time.Second,
	SessionRecheck: 5 * time.Minute,
}
