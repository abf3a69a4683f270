package service

import (
	"context"
	"errors"
	"strings"
	"time"

	slotserrors "serveq/internal/slots/errors"
	"serveq/internal/slots/repository"
	"serveq/internal/slots/validator"
	"serveq/pkg/config"
	apperrors "serveq/pkg/errors"
	"serveq/pkg/model"
	"serveq/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// PasscodeGate is the slice of the passcode service the inventory relies
// on. Ordering is enforced by the orchestrator; this gate is the
// inventory's own defense, so a reservation can never land without a
// verified passcode session even if a caller bypasses the flow.
type PasscodeGate interface {
	RequireVerified(ctx context.Context, identity string) error
	ConsumeVerified(ctx context.Context, identity string) error
}

type SlotService interface {
	// ListSlots returns the day's intervals ordered by start time,
	// materializing the day on first touch.
	ListSlots(ctx context.Context, date string) ([]model.SlotView, error)

	// Reserve claims one unit of the slot's capacity for the identity and
	// returns the reservation carrying its arrival sequence.
	Reserve(ctx context.Context, identity, slotID string) (*model.Reservation, error)
}

type slotService struct {
	slots        repository.SlotRepository
	reservations repository.ReservationRepository
	lockRepo     repository.SlotLockRepository
	gate         PasscodeGate
	validator    *validator.SlotValidator
	cfg          *config.Config
	now          func() time.Time
}

func NewSlotService(
	slots repository.SlotRepository,
	reservations repository.ReservationRepository,
	lockRepo repository.SlotLockRepository,
	gate PasscodeGate,
	validator *validator.SlotValidator,
	cfg *config.Config,
) SlotService {
	return &slotService{
		slots:        slots,
		reservations: reservations,
		lockRepo:     lockRepo,
		gate:         gate,
		validator:    validator,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *slotService) ListSlots(ctx context.Context, date string) ([]model.SlotView, error) {
	if err := s.validator.ValidateDate(date); err != nil {
		return nil, apperrors.Validation("Date validation failed", map[string]any{
			"validation_errors": err.Error(),
		})
	}

	if !s.withinHorizon(date) {
		return nil, apperrors.OutOfRange(date)
	}

	if err := s.materializeDay(ctx, date); err != nil {
		s.cfg.Log.Error("Failed to materialize day", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to prepare slot inventory", err)
	}

	slots, err := s.slots.ListByDate(ctx, date)
	if err != nil {
		s.cfg.Log.Error("Failed to list slots", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to list slots", err)
	}

	now := s.now()
	views := make([]model.SlotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, model.SlotView{
			ID:         slot.ID,
			Start:      slot.Start,
			End:        slot.End,
			IsBookable: slot.IsBookable() && slot.Start.After(now),
		})
	}

	return views, nil
}

func (s *slotService) Reserve(ctx context.Context, identity, slotID string) (*model.Reservation, error) {
	identity = sanitizer.NormalizeIdentity(identity)

	if err := s.validator.ValidateSlotID(slotID); err != nil {
		return nil, apperrors.Validation("Slot validation failed", map[string]any{
			"validation_errors": err.Error(),
		})
	}

	date := strings.SplitN(slotID, "_", 2)[0]
	if !s.withinHorizon(date) {
		return nil, apperrors.UnknownInterval(slotID)
	}

	if err := s.materializeDay(ctx, date); err != nil {
		s.cfg.Log.Error("Failed to materialize day", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to prepare slot inventory", err)
	}

	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrSlotNotFound) {
			// Well-formed ID but off the interval grid.
			return nil, apperrors.UnknownInterval(slotID)
		}
		return nil, apperrors.Internal("Failed to load slot", err)
	}

	if !slot.Start.After(s.now()) {
		return nil, apperrors.InvalidInput("Slot start time has already passed")
	}

	if err := s.gate.RequireVerified(ctx, identity); err != nil {
		return nil, err
	}

	// Advisory lock on the identity. The capacity guard is race-safe on
	// its own; the lock keeps the one-reservation-per-identity check and
	// the insert from interleaving when the same identity books twice
	// concurrently. Different identities racing for the same slot are
	// resolved by the capacity compare-and-swap, not by this lock.
	lockID, err := s.acquireIdentityLock(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.lockRepo.Delete(context.WithoutCancel(ctx), lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	var reservation *model.Reservation
	err = s.slots.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.reservations.FindActiveByIdentity(sessCtx, identity); err == nil {
			return apperrors.Conflict("Identity already holds an active reservation")
		} else if !errors.Is(err, slotserrors.ErrReservationNotFound) {
			return apperrors.Internal("Failed to check existing reservations", err)
		}

		granted, err := s.slots.ReserveOne(sessCtx, slotID)
		if err != nil {
			if errors.Is(err, slotserrors.ErrSlotFull) {
				return apperrors.SlotFull(slotID)
			}
			return apperrors.Internal("Failed to reserve slot capacity", err)
		}

		reservation = &model.Reservation{
			ID:       uuid.NewString(),
			Identity: identity,
			SlotID:   granted.ID,
			Date:     granted.Date,
			Start:    granted.Start,
			End:      granted.End,
			// The post-increment count is the grant's arrival rank, so
			// sequence assignment is linearizable with the capacity grant.
			Sequence: int64(granted.CapacityReserved),
			Status:   model.ReservationActive,
		}
		if err := s.reservations.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}

		if err := s.gate.ConsumeVerified(sessCtx, identity); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reserve slot", "identity", identity, "slot_id", slotID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation created",
		"reservation_id", reservation.ID,
		"identity", identity,
		"slot_id", slotID,
		"sequence", reservation.Sequence,
	)
	return reservation, nil
}

func (s *slotService) acquireIdentityLock(ctx context.Context, identity string) (string, error) {
	lock := &model.SlotLock{
		ID:        identity,
		ExpiresAt: s.now().Add(s.cfg.SlotLockTTL),
	}

	if _, err := s.lockRepo.Create(ctx, lock); err != nil {
		if errors.Is(err, slotserrors.ErrLockHeld) {
			return "", apperrors.Conflict("Another reservation for this identity is in flight, try again")
		}
		return "", apperrors.Internal("Failed to acquire reservation lock", err)
	}
	return lock.ID, nil
}

// withinHorizon reports whether the date falls inside the rolling booking
// window, counted in whole days starting today.
func (s *slotService) withinHorizon(date string) bool {
	day, err := time.ParseInLocation(model.SlotDateLayout, date, time.UTC)
	if err != nil {
		return false
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	last := today.AddDate(0, 0, s.cfg.HorizonDays-1)

	return !day.Before(today) && !day.After(last)
}

// materializeDay lazily creates the day's interval grid from the working
// hours configuration. Safe to repeat and safe under concurrency.
func (s *slotService) materializeDay(ctx context.Context, date string) error {
	slots, err := s.buildDay(date)
	if err != nil {
		return err
	}
	return s.slots.EnsureDay(ctx, slots)
}

func (s *slotService) buildDay(date string) ([]*model.Slot, error) {
	day, err := time.ParseInLocation(model.SlotDateLayout, date, time.UTC)
	if err != nil {
		return nil, err
	}

	open, err := time.Parse("15:04", s.cfg.StartOfDay)
	if err != nil {
		return nil, err
	}
	close, err := time.Parse("15:04", s.cfg.EndOfDay)
	if err != nil {
		return nil, err
	}

	start := day.Add(time.Duration(open.Hour())*time.Hour + time.Duration(open.Minute())*time.Minute)
	end := day.Add(time.Duration(close.Hour())*time.Hour + time.Duration(close.Minute())*time.Minute)
	interval := time.Duration(s.cfg.SlotIntervalMin) * time.Minute

	createdAt := s.now().UTC().Truncate(time.Millisecond)
	var slots []*model.Slot
	for t := start; !t.Add(interval).After(end); t = t.Add(interval) {
		slots = append(slots, &model.Slot{
			ID:            model.SlotID(date, t),
			Date:          date,
			Start:         t,
			End:           t.Add(interval),
			CapacityTotal: s.cfg.SlotCapacity,
			CreatedAt:     createdAt,
		})
	}
	return slots, nil
}
