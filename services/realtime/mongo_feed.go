package realtime

import (
	"context"
	"fmt"

	reservationRepo "reservo/database/repository/reservation"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoFeed opens change streams through the reservation repository.
type MongoFeed struct {
	Repo reservationRepo.ReservationRepository
}

func NewMongoFeed(repo reservationRepo.ReservationRepository) *MongoFeed {
	return &MongoFeed{Repo: repo}
}

func (f *MongoFeed) Open(ctx context.Context) (Stream, error) {
	cs, err := f.Repo.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}
	return &mongoStream{cs: cs}, nil
}

type mongoStream struct {
	cs *mongo.ChangeStream
}

type changeEvent struct {
	OperationType string   `bson:"operationType"`
	FullDocument  bson.Raw `bson:"fullDocument"`
}

func (s *mongoStream) Next(ctx context.Context) (Change, error) {
	if !s.cs.Next(ctx) {
		if err := s.cs.Err(); err != nil {
			return Change{}, err
		}
		return Change{}, ErrStreamClosed
	}
	var ev changeEvent
	if err := s.cs.Decode(&ev); err != nil {
		return Change{}, fmt.Errorf("decode change event: %w", err)
	}
	return Change{Operation: ev.OperationType, Document: ev.FullDocument}, nil
}

func (s *mongoStream) Close(ctx context.Context) error {
	return s.cs.Close(ctx)
}
