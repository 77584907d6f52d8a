package realtime

import (
	"context"
	"errors"

	"reservo/models"

	"go.mongodb.org/mongo-driver/bson"
)

// Status is a subscription state transition.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
	StatusChannelError Status = "CHANNEL_ERROR"
)

// Change operation types.
const (
	OpInsert = "insert"
	OpUpdate = "update"
)

// ErrStreamClosed is returned by Stream.Next when the server ended the stream.
var ErrStreamClosed = errors.New("change stream closed")

// Change is one raw row event.
type Change struct {
	Operation string
	Document  bson.Raw
}

// Stream yields changes until closed.
type Stream interface {
	Next(ctx context.Context) (Change, error)
	Close(ctx context.Context) error
}

// Feed opens change streams over the reservations table.
type Feed interface {
	Open(ctx context.Context) (Stream, error)
}

// Handlers receive decoded rows and status transitions. Any may be nil.
type Handlers struct {
	OnInsert func(models.Reservation)
	OnUpdate func(models.Reservation)
	OnStatus func(Status, error)
}

// Subscriber is the listener surface the dashboard depends on.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handlers)
	Unsubscribe(ctx context.Context)
}
