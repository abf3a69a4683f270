package service

import (
	"context"
	"errors"
	"time"

	slotserrors "serveq/internal/slots/errors"
	"serveq/internal/slots/repository"
	"serveq/pkg/config"
	apperrors "serveq/pkg/errors"
	"serveq/pkg/model"
)

// ReminderNotifier receives the almost-due signal when a reservation's
// projected wait falls at or under the configured threshold. Implementations
// are expected to deduplicate; the tracker fires on every qualifying query.
type ReminderNotifier interface {
	Reminder(ctx context.Context, reservation *model.Reservation, etaMinutes int64) error
}

type QueueService interface {
	// Position recomputes the reservation's standing from the stored
	// reservation sequence. Pure read apart from the reminder side effect.
	Position(ctx context.Context, reservationID string) (*model.QueuePosition, error)

	// MarkServed retires the reservation, moving everyone behind it up by
	// one on their next query.
	MarkServed(ctx context.Context, reservationID string) error
}

type queueService struct {
	reservations repository.ReservationRepository
	notifier     ReminderNotifier
	cfg          *config.Config
}

func NewQueueService(
	reservations repository.ReservationRepository,
	notifier ReminderNotifier,
	cfg *config.Config,
) QueueService {
	return &queueService{
		reservations: reservations,
		notifier:     notifier,
		cfg:          cfg,
	}
}

func (s *queueService) Position(ctx context.Context, reservationID string) (*model.QueuePosition, error) {
	reservation, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrReservationNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", reservationID)
		}
		return nil, apperrors.Internal("Failed to load reservation", err)
	}

	if reservation.Served() {
		return &model.QueuePosition{
			ReservationID: reservation.ID,
			SlotID:        reservation.SlotID,
			Status:        reservation.Status,
		}, nil
	}

	ahead, err := s.reservations.CountEarlierUnserved(ctx, reservation)
	if err != nil {
		return nil, apperrors.Internal("Failed to derive queue position", err)
	}

	position := ahead + 1
	eta := time.Duration(position) * time.Duration(s.cfg.ServiceDurationMin) * time.Minute
	reminderDue := eta <= s.cfg.ReminderThreshold

	if reminderDue && s.notifier != nil {
		if err := s.notifier.Reminder(ctx, reservation, int64(eta.Minutes())); err != nil {
			s.cfg.Log.Warn("Failed to raise reminder",
				"reservation_id", reservation.ID,
				"error", err,
			)
		}
	}

	return &model.QueuePosition{
		ReservationID: reservation.ID,
		SlotID:        reservation.SlotID,
		Status:        reservation.Status,
		Position:      position,
		EtaMinutes:    int64(eta.Minutes()),
		ReminderDue:   reminderDue,
	}, nil
}

func (s *queueService) MarkServed(ctx context.Context, reservationID string) error {
	if err := s.reservations.MarkServed(ctx, reservationID); err != nil {
		if errors.Is(err, slotserrors.ErrReservationNotFound) {
			return apperrors.NotFoundWithID("Reservation", reservationID)
		}
		return apperrors.Internal("Failed to mark reservation served", err)
	}

	s.cfg.Log.Info("Reservation served", "reservation_id", reservationID)
	return nil
}
