package service

import (
	"context"
	"time"

	notifyservice "serveq/internal/notify/service"
	otpservice "serveq/internal/otp/service"
	queueservice "serveq/internal/queue/service"
	slotservice "serveq/internal/slots/service"
	"serveq/pkg/config"
	apperrors "serveq/pkg/errors"
	"serveq/pkg/model"
	"serveq/pkg/sanitizer"
	"serveq/pkg/sealer"
)

// LoginResult is the outcome of a passcode request. DemoCode carries the
// raw code only when no SMTP delivery is configured; a production
// deployment delivers the code out-of-band and this field stays empty.
type LoginResult struct {
	Identity  string    `json:"identity"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
	DemoCode  string    `json:"demo_code,omitempty"`
}

// BookingResult pairs the confirmed reservation with the opaque token used
// for queue tracking.
type BookingResult struct {
	Reservation *model.Reservation `json:"reservation"`
	Token       string             `json:"token"`
	State       string             `json:"state"`
}

// FlowService sequences the booking flow: identity, passcode, slot
// selection, queue. Later stages are unreachable without the earlier ones
// succeeding; a failed transition leaves the session untouched.
type FlowService interface {
	RequestOtp(ctx context.Context, identity, displayName string) (*LoginResult, error)
	VerifyOtp(ctx context.Context, identity, code string) (*Session, error)
	ListSlots(ctx context.Context, identity, date string) ([]model.SlotView, error)
	BookSlot(ctx context.Context, identity, slotID string) (*BookingResult, error)
	QueryPosition(ctx context.Context, identity string) (*model.QueuePosition, error)
	Stop()
}

type flowService struct {
	otp      otpservice.OtpService
	slots    slotservice.SlotService
	queue    queueservice.QueueService
	notify   notifyservice.NotifyService
	sessions *SessionStore
	cfg      *config.Config
}

func NewFlowService(
	otp otpservice.OtpService,
	slots slotservice.SlotService,
	queue queueservice.QueueService,
	notify notifyservice.NotifyService,
	cfg *config.Config,
) FlowService {
	return &flowService{
		otp:      otp,
		slots:    slots,
		queue:    queue,
		notify:   notify,
		sessions: NewSessionStore(cfg.SessionTTL),
		cfg:      cfg,
	}
}

// RequestOtp starts (or restarts) the flow for an identity. Issuing a new
// passcode invalidates the previous one, so restarting is always safe.
func (s *flowService) RequestOtp(ctx context.Context, identity, displayName string) (*LoginResult, error) {
	record, err := s.otp.Issue(ctx, identity, displayName)
	if err != nil {
		return nil, err
	}

	s.sessions.Put(&Session{
		Identity:    record.Identity,
		DisplayName: record.DisplayName,
		State:       StateAwaitingOtp,
	})

	result := &LoginResult{
		Identity:  record.Identity,
		State:     StateAwaitingOtp,
		ExpiresAt: record.ExpiresAt,
	}
	if s.cfg.SMTPHost == "" {
		result.DemoCode = record.Code
	}
	return result, nil
}

func (s *flowService) VerifyOtp(ctx context.Context, identity, code string) (*Session, error) {
	identity = sanitizer.NormalizeIdentity(identity)

	session, ok := s.sessions.Get(identity)
	if !ok {
		return nil, apperrors.Conflict("No passcode has been requested for this identity")
	}

	if err := s.otp.Verify(ctx, identity, code); err != nil {
		// Session stays where it was; the passcode registry's answer is
		// the caller's failure reason.
		return nil, err
	}

	session.State = StateAwaitingSlotSelection
	s.sessions.Put(session)
	return session, nil
}

func (s *flowService) ListSlots(ctx context.Context, identity, date string) ([]model.SlotView, error) {
	identity = sanitizer.NormalizeIdentity(identity)

	session, ok := s.sessions.Get(identity)
	if !ok || session.State == StateAwaitingOtp {
		return nil, apperrors.OtpNotVerified()
	}

	return s.slots.ListSlots(ctx, date)
}

func (s *flowService) BookSlot(ctx context.Context, identity, slotID string) (*BookingResult, error) {
	identity = sanitizer.NormalizeIdentity(identity)

	session, ok := s.sessions.Get(identity)
	if !ok || session.State == StateAwaitingOtp {
		return nil, apperrors.OtpNotVerified()
	}
	if session.State == StateQueued {
		return nil, apperrors.Conflict("Identity already holds an active reservation")
	}

	reservation, err := s.slots.Reserve(ctx, identity, slotID)
	if err != nil {
		return nil, err
	}

	if err := s.notify.Confirm(ctx, reservation); err != nil {
		// The reservation is already durable; a missed confirmation
		// record must not unwind it.
		s.cfg.Log.Warn("Failed to record booking confirmation",
			"reservation_id", reservation.ID,
			"error", err,
		)
	}

	token, err := sealer.CreateReservationToken(identity, reservation.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to create reservation token", err)
	}

	session.State = StateQueued
	session.ReservationID = reservation.ID
	session.ReservationToken = token
	s.sessions.Put(session)

	return &BookingResult{
		Reservation: reservation,
		Token:       token,
		State:       StateQueued,
	}, nil
}

func (s *flowService) QueryPosition(ctx context.Context, identity string) (*model.QueuePosition, error) {
	identity = sanitizer.NormalizeIdentity(identity)

	session, ok := s.sessions.Get(identity)
	if !ok || session.State != StateQueued || session.ReservationID == "" {
		return nil, apperrors.NotFound("Reservation")
	}

	return s.queue.Position(ctx, session.ReservationID)
}

func (s *flowService) Stop() {
	s.sessions.Stop()
}
