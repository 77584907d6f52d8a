// File: database/repository/reservation/interface.go
package reservationRepo

import (
	"context"
	"errors"

	"reservo/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// CollectionName is the reservations collection.
const CollectionName = "reservations"

// ErrNotFound is returned when no reservation matches the id.
var ErrNotFound = errors.New("reservation not found")

type ReservationRepository interface {
	Create(ctx context.Context, r *models.Reservation) error
	List(ctx context.Context) ([]models.Reservation, error)
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	// Update applies the partial field set in a single atomic write that also
	// stamps updated_at and increments version. It returns the record as written.
	Update(ctx context.Context, id string, fields models.ReservationUpdate) (*models.Reservation, error)
	DeleteByID(ctx context.Context, id string) error
	// Watch opens a change stream over insert and update events.
	Watch(ctx context.Context) (*mongo.ChangeStream, error)
	EnsureIndexes(ctx context.Context) error
}

type mongoReservationRepo struct {
	coll *mongo.Collection
}

// NewMongoReservationRepo constructs a new MongoDB ReservationRepository.
func NewMongoReservationRepo(db *mongo.Database) ReservationRepository {
	return &mongoReservationRepo{
		coll: db.Collection(CollectionName),
	}
}
