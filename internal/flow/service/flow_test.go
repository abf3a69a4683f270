package service

import (
	"context"
	"testing"
	"time"

	"serveq/pkg/config"
	apperrors "serveq/pkg/errors"
	"serveq/pkg/logger"
	"serveq/pkg/model"
	"serveq/pkg/sealer"
)

type stubOtpService struct {
	issueFunc  func(ctx context.Context, identity, displayName string) (*model.OtpRecord, error)
	verifyFunc func(ctx context.Context, identity, code string) error
}

func (s *stubOtpService) Issue(ctx context.Context, identity, displayName string) (*model.OtpRecord, error) {
	return s.issueFunc(ctx, identity, displayName)
}

func (s *stubOtpService) Verify(ctx context.Context, identity, code string) error {
	return s.verifyFunc(ctx, identity, code)
}

func (s *stubOtpService) RequireVerified(ctx context.Context, identity string) error { return nil }

func (s *stubOtpService) ConsumeVerified(ctx context.Context, identity string) error { return nil }

type stubSlotService struct {
	listFunc    func(ctx context.Context, date string) ([]model.SlotView, error)
	reserveFunc func(ctx context.Context, identity, slotID string) (*model.Reservation, error)
}

func (s *stubSlotService) ListSlots(ctx context.Context, date string) ([]model.SlotView, error) {
	return s.listFunc(ctx, date)
}

func (s *stubSlotService) Reserve(ctx context.Context, identity, slotID string) (*model.Reservation, error) {
	return s.reserveFunc(ctx, identity, slotID)
}

type stubQueueService struct {
	positionFunc func(ctx context.Context, reservationID string) (*model.QueuePosition, error)
}

func (s *stubQueueService) Position(ctx context.Context, reservationID string) (*model.QueuePosition, error) {
	return s.positionFunc(ctx, reservationID)
}

func (s *stubQueueService) MarkServed(ctx context.Context, reservationID string) error { return nil }

type stubNotifyService struct {
	confirmed []string
}

func (s *stubNotifyService) Confirm(ctx context.Context, r *model.Reservation) error {
	s.confirmed = append(s.confirmed, r.ID)
	return nil
}

func (s *stubNotifyService) Reminder(ctx context.Context, r *model.Reservation, etaMinutes int64) error {
	return nil
}

func (s *stubNotifyService) List(ctx context.Context, identity string) ([]*model.Notification, error) {
	return nil, nil
}

func (s *stubNotifyService) Clear(ctx context.Context, id string) error { return nil }

func issuedRecord(identity string) *model.OtpRecord {
	now := time.Now().UTC()
	return &model.OtpRecord{
		Identity:  identity,
		Code:      "123456",
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
		Status:    model.OtpStatusPending,
	}
}

func activeReservation(identity, slotID string) *model.Reservation {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	return &model.Reservation{
		ID:       "res-1",
		Identity: identity,
		SlotID:   slotID,
		Date:     "2026-05-04",
		Start:    start,
		End:      start.Add(30 * time.Minute),
		Sequence: 1,
		Status:   model.ReservationActive,
	}
}

type flowFixture struct {
	svc    *flowService
	otp    *stubOtpService
	slots  *stubSlotService
	queue  *stubQueueService
	notify *stubNotifyService
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	otp := &stubOtpService{
		issueFunc: func(ctx context.Context, identity, displayName string) (*model.OtpRecord, error) {
			return issuedRecord(identity), nil
		},
		verifyFunc: func(ctx context.Context, identity, code string) error { return nil },
	}
	slots := &stubSlotService{
		listFunc: func(ctx context.Context, date string) ([]model.SlotView, error) {
			return []model.SlotView{}, nil
		},
		reserveFunc: func(ctx context.Context, identity, slotID string) (*model.Reservation, error) {
			return activeReservation(identity, slotID), nil
		},
	}
	queue := &stubQueueService{
		positionFunc: func(ctx context.Context, reservationID string) (*model.QueuePosition, error) {
			return &model.QueuePosition{ReservationID: reservationID, Position: 1, EtaMinutes: 30}, nil
		},
	}
	notify := &stubNotifyService{}

	cfg := &config.Config{
		SessionTTL: 30 * time.Minute,
		Log:        logger.Discard(),
	}

	svc := NewFlowService(otp, slots, queue, notify, cfg).(*flowService)
	t.Cleanup(svc.Stop)

	return &flowFixture{svc: svc, otp: otp, slots: slots, queue: queue, notify: notify}
}

func TestFlowHappyPath(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	login, err := f.svc.RequestOtp(ctx, "a@example.com", "Alice")
	if err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}
	if login.State != StateAwaitingOtp {
		t.Errorf("expected state %s, got %s", StateAwaitingOtp, login.State)
	}
	if login.DemoCode == "" {
		t.Error("expected demo code with no SMTP configured")
	}

	session, err := f.svc.VerifyOtp(ctx, "a@example.com", "123456")
	if err != nil {
		t.Fatalf("VerifyOtp failed: %v", err)
	}
	if session.State != StateAwaitingSlotSelection {
		t.Errorf("expected state %s, got %s", StateAwaitingSlotSelection, session.State)
	}

	if _, err := f.svc.ListSlots(ctx, "a@example.com", "2026-05-04"); err != nil {
		t.Fatalf("ListSlots failed: %v", err)
	}

	booking, err := f.svc.BookSlot(ctx, "a@example.com", "2026-05-04_0900")
	if err != nil {
		t.Fatalf("BookSlot failed: %v", err)
	}
	if booking.State != StateQueued {
		t.Errorf("expected state %s, got %s", StateQueued, booking.State)
	}
	if len(f.notify.confirmed) != 1 {
		t.Errorf("expected one confirmation, got %v", f.notify.confirmed)
	}

	identity, reservationID, err := sealer.ParseReservationToken(booking.Token)
	if err != nil {
		t.Fatalf("token did not round-trip: %v", err)
	}
	if identity != "a@example.com" || reservationID != "res-1" {
		t.Errorf("token carried wrong claims: %s %s", identity, reservationID)
	}

	position, err := f.svc.QueryPosition(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("QueryPosition failed: %v", err)
	}
	if position.Position != 1 {
		t.Errorf("expected position 1, got %d", position.Position)
	}
}

func TestVerifyWithoutLogin(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.svc.VerifyOtp(context.Background(), "a@example.com", "123456")
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT before login, got %v", err)
	}
}

func TestListAndBookRequireVerification(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	// No session at all.
	_, err := f.svc.ListSlots(ctx, "a@example.com", "2026-05-04")
	if !apperrors.HasCode(err, apperrors.CodeOtpNotVerified) {
		t.Fatalf("expected OTP_NOT_VERIFIED with no session, got %v", err)
	}

	// Logged in but not verified.
	if _, err := f.svc.RequestOtp(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}
	_, err = f.svc.ListSlots(ctx, "a@example.com", "2026-05-04")
	if !apperrors.HasCode(err, apperrors.CodeOtpNotVerified) {
		t.Fatalf("expected OTP_NOT_VERIFIED before verify, got %v", err)
	}
	_, err = f.svc.BookSlot(ctx, "a@example.com", "2026-05-04_0900")
	if !apperrors.HasCode(err, apperrors.CodeOtpNotVerified) {
		t.Fatalf("expected OTP_NOT_VERIFIED before verify, got %v", err)
	}
}

func TestFailedVerifyKeepsState(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RequestOtp(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}

	f.otp.verifyFunc = func(ctx context.Context, identity, code string) error {
		return apperrors.OtpMismatch()
	}
	_, err := f.svc.VerifyOtp(ctx, "a@example.com", "000000")
	if !apperrors.HasCode(err, apperrors.CodeOtpMismatch) {
		t.Fatalf("expected OTP_MISMATCH, got %v", err)
	}

	// Still awaiting the passcode: slot selection remains unreachable.
	_, err = f.svc.ListSlots(ctx, "a@example.com", "2026-05-04")
	if !apperrors.HasCode(err, apperrors.CodeOtpNotVerified) {
		t.Fatalf("expected flow to stay before verification, got %v", err)
	}

	// A correct retry still moves the flow forward.
	f.otp.verifyFunc = func(ctx context.Context, identity, code string) error { return nil }
	session, err := f.svc.VerifyOtp(ctx, "a@example.com", "123456")
	if err != nil {
		t.Fatalf("retry VerifyOtp failed: %v", err)
	}
	if session.State != StateAwaitingSlotSelection {
		t.Errorf("expected state %s after retry, got %s", StateAwaitingSlotSelection, session.State)
	}
}

func TestFailedBookingKeepsSlotSelection(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RequestOtp(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}
	if _, err := f.svc.VerifyOtp(ctx, "a@example.com", "123456"); err != nil {
		t.Fatalf("VerifyOtp failed: %v", err)
	}

	f.slots.reserveFunc = func(ctx context.Context, identity, slotID string) (*model.Reservation, error) {
		return nil, apperrors.SlotFull(slotID)
	}
	_, err := f.svc.BookSlot(ctx, "a@example.com", "2026-05-04_0900")
	if !apperrors.HasCode(err, apperrors.CodeSlotFull) {
		t.Fatalf("expected SLOT_FULL, got %v", err)
	}

	// Failure kept the session in slot selection, so a retry on another
	// slot succeeds.
	f.slots.reserveFunc = func(ctx context.Context, identity, slotID string) (*model.Reservation, error) {
		return activeReservation(identity, slotID), nil
	}
	booking, err := f.svc.BookSlot(ctx, "a@example.com", "2026-05-04_0930")
	if err != nil {
		t.Fatalf("retry BookSlot failed: %v", err)
	}
	if booking.State != StateQueued {
		t.Errorf("expected state %s, got %s", StateQueued, booking.State)
	}
}

func TestBookTwiceRejected(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RequestOtp(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}
	if _, err := f.svc.VerifyOtp(ctx, "a@example.com", "123456"); err != nil {
		t.Fatalf("VerifyOtp failed: %v", err)
	}
	if _, err := f.svc.BookSlot(ctx, "a@example.com", "2026-05-04_0900"); err != nil {
		t.Fatalf("BookSlot failed: %v", err)
	}

	_, err := f.svc.BookSlot(ctx, "a@example.com", "2026-05-04_0930")
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT on second booking, got %v", err)
	}
}

func TestQueryPositionWithoutReservation(t *testing.T) {
	f := newFlowFixture(t)

	_, err := f.svc.QueryPosition(context.Background(), "a@example.com")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND without a reservation, got %v", err)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewSessionStore(10 * time.Millisecond)
	defer store.Stop()

	store.Put(&Session{Identity: "a@example.com", State: StateAwaitingOtp})
	if _, ok := store.Get("a@example.com"); !ok {
		t.Fatal("expected session right after Put")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := store.Get("a@example.com"); ok {
		t.Fatal("expected session to expire")
	}
}

func TestReloginResetsFlow(t *testing.T) {
	f := newFlowFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RequestOtp(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}
	if _, err := f.svc.VerifyOtp(ctx, "a@example.com", "123456"); err != nil {
		t.Fatalf("VerifyOtp failed: %v", err)
	}

	// Logging in again drops the flow back to awaiting the new passcode.
	if _, err := f.svc.RequestOtp(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("second RequestOtp failed: %v", err)
	}
	_, err := f.svc.ListSlots(ctx, "a@example.com", "2026-05-04")
	if !apperrors.HasCode(err, apperrors.CodeOtpNotVerified) {
		t.Fatalf("expected OTP_NOT_VERIFIED after re-login, got %v", err)
	}
}
