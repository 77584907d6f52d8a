package notification

import (
	"context"
	"fmt"

	"reservo/models"
	"reservo/utils"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// NotificationService announces new bookings to the admin devices.
type NotificationService interface {
	NotifyNewReservation(ctx context.Context, r models.Reservation) error
}

// Sender is the part of *messaging.Client used for topic pushes.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// DefaultNotificationService pushes to an FCM topic the admin devices subscribe to.
type DefaultNotificationService struct {
	sender Sender
	topic  string
}

// NewNotificationService returns a no-op service when sender is nil so push
// stays optional.
func NewNotificationService(sender Sender, topic string) NotificationService {
	if sender == nil {
		return NoopNotificationService{}
	}
	return &DefaultNotificationService{sender: sender, topic: topic}
}

func (s *DefaultNotificationService) NotifyNewReservation(ctx context.Context, r models.Reservation) error {
	msg := &messaging.Message{
		Topic: s.topic,
		Notification: &messaging.Notification{
			Title: "New reservation",
			Body:  fmt.Sprintf("%s on %s, %s", r.Name, r.Date, r.TimeSlot),
		},
		Data: map[string]string{
			"reservationId": r.ID,
			"date":          r.Date,
			"timeSlot":      r.TimeSlot,
		},
	}

	response, err := s.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("NotifyNewReservation: failed to send FCM message: %w", err)
	}
	utils.GetLogger().Debug("NotifyNewReservation: message sent", zap.String("id", r.ID), zap.String("response", response))
	return nil
}

// NoopNotificationService drops every notification.
type NoopNotificationService struct{}

func (NoopNotificationService) NotifyNewReservation(context.Context, models.Reservation) error {
	return nil
}
