package service

import (
	"context"
	"sync"
	"testing"
	"time"

	slotserrors "serveq/internal/slots/errors"
	"serveq/pkg/config"
	apperrors "serveq/pkg/errors"
	"serveq/pkg/logger"
	"serveq/pkg/model"
)

// fakeQueueStore is the minimal reservation store the tracker reads from.
type fakeQueueStore struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
}

func newFakeQueueStore(reservations ...*model.Reservation) *fakeQueueStore {
	store := &fakeQueueStore{reservations: make(map[string]*model.Reservation)}
	for _, r := range reservations {
		copied := *r
		store.reservations[r.ID] = &copied
	}
	return store
}

func (f *fakeQueueStore) Create(ctx context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *r
	f.reservations[r.ID] = &copied
	return nil
}

func (f *fakeQueueStore) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return nil, slotserrors.ErrReservationNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeQueueStore) FindActiveByIdentity(ctx context.Context, identity string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.Identity == identity && r.Status == model.ReservationActive {
			copied := *r
			return &copied, nil
		}
	}
	return nil, slotserrors.ErrReservationNotFound
}

func (f *fakeQueueStore) CountEarlierUnserved(ctx context.Context, reservation *model.Reservation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, r := range f.reservations {
		if r.SlotID == reservation.SlotID && r.Status == model.ReservationActive && r.Sequence < reservation.Sequence {
			count++
		}
	}
	return count, nil
}

func (f *fakeQueueStore) MarkServed(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.Status != model.ReservationActive {
		return slotserrors.ErrReservationNotFound
	}
	r.Status = model.ReservationServed
	return nil
}

type captureNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *captureNotifier) Reminder(ctx context.Context, reservation *model.Reservation, etaMinutes int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, reservation.ID)
	return nil
}

func queueConfig() *config.Config {
	return &config.Config{
		ServiceDurationMin: 30,
		ReminderThreshold:  10 * time.Minute,
		Log:                logger.Discard(),
	}
}

func sequentialReservations(slotID string, n int) []*model.Reservation {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	reservations := make([]*model.Reservation, 0, n)
	for i := 1; i <= n; i++ {
		reservations = append(reservations, &model.Reservation{
			ID:       slotID + "-r" + string(rune('0'+i)),
			Identity: string(rune('a'+i)) + "@example.com",
			SlotID:   slotID,
			Date:     "2026-05-04",
			Start:    start,
			End:      start.Add(30 * time.Minute),
			Sequence: int64(i),
			Status:   model.ReservationActive,
		})
	}
	return reservations
}

func TestPositionFollowsSequence(t *testing.T) {
	reservations := sequentialReservations("2026-05-04_0900", 3)
	store := newFakeQueueStore(reservations...)
	svc := NewQueueService(store, nil, queueConfig())

	for i, r := range reservations {
		pos, err := svc.Position(context.Background(), r.ID)
		if err != nil {
			t.Fatalf("Position failed for %s: %v", r.ID, err)
		}
		if pos.Position != int64(i+1) {
			t.Errorf("expected position %d for sequence %d, got %d", i+1, r.Sequence, pos.Position)
		}
		if pos.EtaMinutes != int64(i+1)*30 {
			t.Errorf("expected eta %d minutes, got %d", (i+1)*30, pos.EtaMinutes)
		}
	}
}

func TestPositionAdvancesWhenEarlierServed(t *testing.T) {
	reservations := sequentialReservations("2026-05-04_0900", 3)
	store := newFakeQueueStore(reservations...)
	svc := NewQueueService(store, nil, queueConfig())

	second := reservations[1].ID
	pos, err := svc.Position(context.Background(), second)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos.Position != 2 {
		t.Fatalf("expected position 2 before serving, got %d", pos.Position)
	}

	if err := svc.MarkServed(context.Background(), reservations[0].ID); err != nil {
		t.Fatalf("MarkServed failed: %v", err)
	}

	pos, err = svc.Position(context.Background(), second)
	if err != nil {
		t.Fatalf("Position failed after serve: %v", err)
	}
	if pos.Position != 1 {
		t.Fatalf("expected position 1 after front was served, got %d", pos.Position)
	}
}

func TestPositionNonIncreasingWithFloorOne(t *testing.T) {
	reservations := sequentialReservations("2026-05-04_0900", 4)
	store := newFakeQueueStore(reservations...)
	svc := NewQueueService(store, nil, queueConfig())

	last := reservations[3].ID
	previous := int64(1 << 30)
	for i := 0; i < 3; i++ {
		pos, err := svc.Position(context.Background(), last)
		if err != nil {
			t.Fatalf("Position failed: %v", err)
		}
		if pos.Position > previous {
			t.Fatalf("position increased from %d to %d", previous, pos.Position)
		}
		if pos.Position < 1 {
			t.Fatalf("position fell below 1: %d", pos.Position)
		}
		previous = pos.Position

		if err := svc.MarkServed(context.Background(), reservations[i].ID); err != nil {
			t.Fatalf("MarkServed failed: %v", err)
		}
	}

	pos, err := svc.Position(context.Background(), last)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos.Position != 1 {
		t.Fatalf("expected floor position 1, got %d", pos.Position)
	}
}

func TestPositionUnknownReservation(t *testing.T) {
	svc := NewQueueService(newFakeQueueStore(), nil, queueConfig())

	_, err := svc.Position(context.Background(), "missing")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestPositionServedReservation(t *testing.T) {
	reservations := sequentialReservations("2026-05-04_0900", 1)
	store := newFakeQueueStore(reservations...)
	svc := NewQueueService(store, nil, queueConfig())

	if err := svc.MarkServed(context.Background(), reservations[0].ID); err != nil {
		t.Fatalf("MarkServed failed: %v", err)
	}

	pos, err := svc.Position(context.Background(), reservations[0].ID)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos.Status != model.ReservationServed {
		t.Errorf("expected served status, got %s", pos.Status)
	}
	if pos.Position != 0 {
		t.Errorf("expected no queue standing for served reservation, got %d", pos.Position)
	}
}

func TestReminderFiresAtThreshold(t *testing.T) {
	reservations := sequentialReservations("2026-05-04_0900", 2)
	store := newFakeQueueStore(reservations...)
	notifier := &captureNotifier{}

	// 5 minute service duration: front of queue has eta 5m <= 10m.
	cfg := queueConfig()
	cfg.ServiceDurationMin = 5
	svc := NewQueueService(store, notifier, cfg)

	pos, err := svc.Position(context.Background(), reservations[0].ID)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if !pos.ReminderDue {
		t.Error("expected reminder_due at eta 5 minutes")
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != reservations[0].ID {
		t.Errorf("expected one reminder for the front reservation, got %v", notifier.calls)
	}

	// Second in line is at 10 minutes, exactly on the threshold.
	pos, err = svc.Position(context.Background(), reservations[1].ID)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if !pos.ReminderDue {
		t.Error("expected reminder_due exactly at the threshold")
	}
}

func TestReminderNotFiredFarFromThreshold(t *testing.T) {
	reservations := sequentialReservations("2026-05-04_0900", 2)
	store := newFakeQueueStore(reservations...)
	notifier := &captureNotifier{}
	svc := NewQueueService(store, notifier, queueConfig())

	// 30 minute duration: position 1 is already 30 minutes out.
	pos, err := svc.Position(context.Background(), reservations[0].ID)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos.ReminderDue {
		t.Error("did not expect reminder_due at eta 30 minutes")
	}
	if len(notifier.calls) != 0 {
		t.Errorf("expected no reminders, got %v", notifier.calls)
	}
}

func TestMarkServedTwice(t *testing.T) {
	reservations := sequentialReservations("2026-05-04_0900", 1)
	store := newFakeQueueStore(reservations...)
	svc := NewQueueService(store, nil, queueConfig())

	if err := svc.MarkServed(context.Background(), reservations[0].ID); err != nil {
		t.Fatalf("first MarkServed failed: %v", err)
	}
	err := svc.MarkServed(context.Background(), reservations[0].ID)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND on second serve, got %v", err)
	}
}
