package service

import (
	"context"
	"fmt"
	"time"

	"serveq/internal/notify/repository"
	"serveq/pkg/config"
	apperrors "serveq/pkg/errors"
	"serveq/pkg/kafka"
	"serveq/pkg/mailer"
	"serveq/pkg/model"

	"github.com/google/uuid"
)

// EventPublisher is the slice of the Kafka producer this service writes
// through. Downstream consumers (push, SMS, dashboards) subscribe to the
// notifications topic; none of them are part of this process.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type NotifyService interface {
	// Confirm records the booking confirmation and fans it out.
	Confirm(ctx context.Context, reservation *model.Reservation) error

	// Reminder records the almost-due alert. At most one uncleared
	// reminder exists per reservation, however often the tracker fires.
	Reminder(ctx context.Context, reservation *model.Reservation, etaMinutes int64) error

	List(ctx context.Context, identity string) ([]*model.Notification, error)
	Clear(ctx context.Context, id string) error
}

type bookingEvent struct {
	ReservationID string    `json:"reservation_id"`
	Identity      string    `json:"identity"`
	SlotID        string    `json:"slot_id"`
	Date          string    `json:"date"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Sequence      int64     `json:"sequence"`
	EtaMinutes    int64     `json:"eta_minutes,omitempty"`
}

type notifyService struct {
	repo      repository.NotificationRepository
	publisher EventPublisher
	mail      mailer.Mailer
	cfg       *config.Config
}

func NewNotifyService(
	repo repository.NotificationRepository,
	publisher EventPublisher,
	mail mailer.Mailer,
	cfg *config.Config,
) NotifyService {
	return &notifyService{
		repo:      repo,
		publisher: publisher,
		mail:      mail,
		cfg:       cfg,
	}
}

func (s *notifyService) Confirm(ctx context.Context, reservation *model.Reservation) error {
	message := fmt.Sprintf("Booking confirmed for %s at %s.",
		reservation.Date, reservation.Start.Format("15:04"))

	notification := &model.Notification{
		ID:            uuid.NewString(),
		Identity:      reservation.Identity,
		ReservationID: reservation.ID,
		Type:          model.NotificationConfirmation,
		Message:       message,
	}
	if err := s.repo.Insert(ctx, notification); err != nil {
		s.cfg.Log.Error("Failed to record confirmation", "reservation_id", reservation.ID, "error", err)
		return apperrors.Internal("Failed to record confirmation", err)
	}

	s.publish(ctx, kafka.EventBookingConfirmed, reservation, 0)

	if s.mail.Enabled() {
		if err := s.mail.Send(reservation.Identity, "Booking confirmed", message); err != nil {
			s.cfg.Log.Warn("Confirmation email delivery failed",
				"identity", reservation.Identity,
				"error", err,
			)
		}
	}

	s.cfg.Log.Info("Confirmation recorded",
		"notification_id", notification.ID,
		"reservation_id", reservation.ID,
	)
	return nil
}

func (s *notifyService) Reminder(ctx context.Context, reservation *model.Reservation, etaMinutes int64) error {
	exists, err := s.repo.HasUnclearedReminder(ctx, reservation.ID)
	if err != nil {
		return apperrors.Internal("Failed to check reminder state", err)
	}
	if exists {
		return nil
	}

	message := fmt.Sprintf("Almost there: about %d minutes until your turn.", etaMinutes)

	notification := &model.Notification{
		ID:            uuid.NewString(),
		Identity:      reservation.Identity,
		ReservationID: reservation.ID,
		Type:          model.NotificationReminder,
		Message:       message,
	}
	if err := s.repo.Insert(ctx, notification); err != nil {
		return apperrors.Internal("Failed to record reminder", err)
	}

	s.publish(ctx, kafka.EventBookingReminder, reservation, etaMinutes)

	if s.mail.Enabled() {
		if err := s.mail.Send(reservation.Identity, "Your turn is coming up", message); err != nil {
			s.cfg.Log.Warn("Reminder email delivery failed",
				"identity", reservation.Identity,
				"error", err,
			)
		}
	}

	s.cfg.Log.Info("Reminder recorded",
		"notification_id", notification.ID,
		"reservation_id", reservation.ID,
		"eta_minutes", etaMinutes,
	)
	return nil
}

func (s *notifyService) List(ctx context.Context, identity string) ([]*model.Notification, error) {
	notifications, err := s.repo.FindActiveByIdentity(ctx, identity)
	if err != nil {
		return nil, apperrors.Internal("Failed to list notifications", err)
	}
	return notifications, nil
}

func (s *notifyService) Clear(ctx context.Context, id string) error {
	cleared, err := s.repo.Clear(ctx, id)
	if err != nil {
		return apperrors.Internal("Failed to clear notification", err)
	}
	if cleared == 0 {
		return apperrors.NotFoundWithID("Notification", id)
	}
	return nil
}

// publish fans the event out to the notifications topic. Best effort: the
// notification is already durable, a broker hiccup only delays consumers.
func (s *notifyService) publish(ctx context.Context, eventType string, reservation *model.Reservation, etaMinutes int64) {
	if s.publisher == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(reservation.Identity).
		WithEventType(eventType).
		WithSource("serveq").
		WithValue(bookingEvent{
			ReservationID: reservation.ID,
			Identity:      reservation.Identity,
			SlotID:        reservation.SlotID,
			Date:          reservation.Date,
			Start:         reservation.Start,
			End:           reservation.End,
			Sequence:      reservation.Sequence,
			EtaMinutes:    etaMinutes,
		}).
		Build()

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish notification event",
			"event_type", eventType,
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}
