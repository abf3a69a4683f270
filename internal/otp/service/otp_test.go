package service

import (
	"context"
	"testing"
	"time"

	otperrors "serveq/internal/otp/errors"
	"serveq/internal/otp/validator"
	"serveq/pkg/config"
	apperrors "serveq/pkg/errors"
	"serveq/pkg/logger"
	"serveq/pkg/model"
)

type mockOtpRepository struct {
	putFunc            func(ctx context.Context, record *model.OtpRecord) error
	findByIdentityFunc func(ctx context.Context, identity string) (*model.OtpRecord, error)
	markVerifiedFunc   func(ctx context.Context, identity, code string) error
	markUsedFunc       func(ctx context.Context, identity string) error
}

func (m *mockOtpRepository) Put(ctx context.Context, record *model.OtpRecord) error {
	return m.putFunc(ctx, record)
}

func (m *mockOtpRepository) FindByIdentity(ctx context.Context, identity string) (*model.OtpRecord, error) {
	return m.findByIdentityFunc(ctx, identity)
}

func (m *mockOtpRepository) MarkVerified(ctx context.Context, identity, code string) error {
	return m.markVerifiedFunc(ctx, identity, code)
}

func (m *mockOtpRepository) MarkUsed(ctx context.Context, identity string) error {
	return m.markUsedFunc(ctx, identity)
}

type mockMailer struct {
	enabled  bool
	sendFunc func(to, subject, body string) error
	sent     []string
}

func (m *mockMailer) Enabled() bool { return m.enabled }

func (m *mockMailer) Send(to, subject, body string) error {
	m.sent = append(m.sent, to)
	if m.sendFunc != nil {
		return m.sendFunc(to, subject, body)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		OtpTTL:    5 * time.Minute,
		OtpLength: 6,
		Log:       logger.Discard(),
	}
}

func newTestService(repo *mockOtpRepository, mail *mockMailer) *otpService {
	cfg := testConfig()
	v := validator.NewOtpValidator(cfg.OtpLength, cfg.Log)
	return NewOtpService(repo, v, mail, cfg).(*otpService)
}

func TestIssueStoresPendingRecord(t *testing.T) {
	var stored *model.OtpRecord
	repo := &mockOtpRepository{
		putFunc: func(ctx context.Context, record *model.OtpRecord) error {
			stored = record
			return nil
		},
	}
	svc := newTestService(repo, &mockMailer{})

	record, err := svc.Issue(context.Background(), "Alice@Example.COM", "  Alice   Smith ")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected record to be stored")
	}
	if stored.Identity != "alice@example.com" {
		t.Errorf("expected normalized identity, got %q", stored.Identity)
	}
	if stored.DisplayName != "Alice Smith" {
		t.Errorf("expected normalized display name, got %q", stored.DisplayName)
	}
	if stored.Status != model.OtpStatusPending {
		t.Errorf("expected pending status, got %q", stored.Status)
	}
	if len(record.Code) != 6 {
		t.Errorf("expected 6-digit code, got %q", record.Code)
	}
	for _, c := range record.Code {
		if c < '0' || c > '9' {
			t.Errorf("expected numeric code, got %q", record.Code)
		}
	}
	if !stored.ExpiresAt.Equal(stored.IssuedAt.Add(5 * time.Minute)) {
		t.Errorf("expected expiry 5m after issue, got issued=%v expires=%v", stored.IssuedAt, stored.ExpiresAt)
	}
}

func TestIssueRejectsInvalidIdentity(t *testing.T) {
	repo := &mockOtpRepository{
		putFunc: func(ctx context.Context, record *model.OtpRecord) error {
			t.Fatal("Put should not be called on invalid input")
			return nil
		},
	}
	svc := newTestService(repo, &mockMailer{})

	_, err := svc.Issue(context.Background(), "not-an-email", "")
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIssueSendsEmailWhenConfigured(t *testing.T) {
	repo := &mockOtpRepository{
		putFunc: func(ctx context.Context, record *model.OtpRecord) error { return nil },
	}
	mail := &mockMailer{enabled: true}
	svc := newTestService(repo, mail)

	if _, err := svc.Issue(context.Background(), "bob@example.com", ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0] != "bob@example.com" {
		t.Errorf("expected one email to bob@example.com, got %v", mail.sent)
	}
}

func TestVerifyHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	record := &model.OtpRecord{
		Identity:  "alice@example.com",
		Code:      "123456",
		IssuedAt:  now.Add(-time.Minute),
		ExpiresAt: now.Add(4 * time.Minute),
		Status:    model.OtpStatusPending,
	}

	var verified bool
	repo := &mockOtpRepository{
		findByIdentityFunc: func(ctx context.Context, identity string) (*model.OtpRecord, error) {
			return record, nil
		},
		markVerifiedFunc: func(ctx context.Context, identity, code string) error {
			verified = true
			return nil
		},
	}
	svc := newTestService(repo, &mockMailer{})
	svc.now = func() time.Time { return now }

	if err := svc.Verify(context.Background(), "alice@example.com", "123456"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !verified {
		t.Error("expected MarkVerified to be called")
	}
}

func TestVerifyUnknownIdentity(t *testing.T) {
	repo := &mockOtpRepository{
		findByIdentityFunc: func(ctx context.Context, identity string) (*model.OtpRecord, error) {
			return nil, otperrors.ErrNotFound
		},
	}
	svc := newTestService(repo, &mockMailer{})

	err := svc.Verify(context.Background(), "ghost@example.com", "123456")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestVerifyExpiredOutranksEverything(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	record := &model.OtpRecord{
		Identity:  "alice@example.com",
		Code:      "123456",
		IssuedAt:  now.Add(-10 * time.Minute),
		ExpiresAt: now.Add(-5 * time.Minute),
		Status:    model.OtpStatusPending,
	}
	repo := &mockOtpRepository{
		findByIdentityFunc: func(ctx context.Context, identity string) (*model.OtpRecord, error) {
			return record, nil
		},
	}
	svc := newTestService(repo, &mockMailer{})
	svc.now = func() time.Time { return now }

	// Correct code but expired window.
	err := svc.Verify(context.Background(), "alice@example.com", "123456")
	if !apperrors.HasCode(err, apperrors.CodeOtpExpired) {
		t.Fatalf("expected OTP_EXPIRED for correct code, got %v", err)
	}

	// Wrong code after expiry still answers expired.
	err = svc.Verify(context.Background(), "alice@example.com", "000000")
	if !apperrors.HasCode(err, apperrors.CodeOtpExpired) {
		t.Fatalf("expected OTP_EXPIRED for wrong code, got %v", err)
	}
}

func TestVerifyBoundaryInstantIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	record := &model.OtpRecord{
		Identity:  "alice@example.com",
		Code:      "123456",
		ExpiresAt: now,
		Status:    model.OtpStatusPending,
	}
	repo := &mockOtpRepository{
		findByIdentityFunc: func(ctx context.Context, identity string) (*model.OtpRecord, error) {
			return record, nil
		},
	}
	svc := newTestService(repo, &mockMailer{})
	svc.now = func() time.Time { return now }

	err := svc.Verify(context.Background(), "alice@example.com", "123456")
	if !apperrors.HasCode(err, apperrors.CodeOtpExpired) {
		t.Fatalf("expected OTP_EXPIRED exactly at the boundary, got %v", err)
	}
}

func TestVerifyMismatchLeavesRecordPending(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	record := &model.OtpRecord{
		Identity:  "alice@example.com",
		Code:      "123456",
		ExpiresAt: now.Add(time.Minute),
		Status:    model.OtpStatusPending,
	}
	repo := &mockOtpRepository{
		findByIdentityFunc: func(ctx context.Context, identity string) (*model.OtpRecord, error) {
			return record, nil
		},
		markVerifiedFunc: func(ctx context.Context, identity, code string) error {
			t.Fatal("MarkVerified should not be called on mismatch")
			return nil
		},
	}
	svc := newTestService(repo, &mockMailer{})
	svc.now = func() time.Time { return now }

	err := svc.Verify(context.Background(), "alice@example.com", "654321")
	if !apperrors.HasCode(err, apperrors.CodeOtpMismatch) {
		t.Fatalf("expected OTP_MISMATCH, got %v", err)
	}

	// The record was untouched, so a correct retry still works.
	repo.markVerifiedFunc = func(ctx context.Context, identity, code string) error { return nil }
	if err := svc.Verify(context.Background(), "alice@example.com", "123456"); err != nil {
		t.Fatalf("retry with correct code failed: %v", err)
	}
}

func TestVerifySecondAttemptAlreadyConsumed(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	record := &model.OtpRecord{
		Identity:  "alice@example.com",
		Code:      "123456",
		ExpiresAt: now.Add(time.Minute),
		Status:    model.OtpStatusVerified,
	}
	repo := &mockOtpRepository{
		findByIdentityFunc: func(ctx context.Context, identity string) (*model.OtpRecord, error) {
			return record, nil
		},
	}
	svc := newTestService(repo, &mockMailer{})
	svc.now = func() time.Time { return now }

	err := svc.Verify(context.Background(), "alice@example.com", "123456")
	if !apperrors.HasCode(err, apperrors.CodeOtpAlreadyConsumed) {
		t.Fatalf("expected OTP_ALREADY_CONSUMED, got %v", err)
	}
}

func TestVerifyConcurrentLoserGetsAlreadyConsumed(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	record := &model.OtpRecord{
		Identity:  "alice@example.com",
		Code:      "123456",
		ExpiresAt: now.Add(time.Minute),
		Status:    model.OtpStatusPending,
	}
	repo := &mockOtpRepository{
		findByIdentityFunc: func(ctx context.Context, identity string) (*model.OtpRecord, error) {
			return record, nil
		},
		markVerifiedFunc: func(ctx context.Context, identity, code string) error {
			// Another request flipped the status between read and write.
			return otperrors.ErrAlreadyConsumed
		},
	}
	svc := newTestService(repo, &mockMailer{})
	svc.now = func() time.Time { return now }

	err := svc.Verify(context.Background(), "alice@example.com", "123456")
	if !apperrors.HasCode(err, apperrors.CodeOtpAlreadyConsumed) {
		t.Fatalf("expected OTP_ALREADY_CONSUMED, got %v", err)
	}
}

func TestRequireVerified(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		wantCode string
	}{
		{"pending is not verified", model.OtpStatusPending, apperrors.CodeOtpNotVerified},
		{"verified passes", model.OtpStatusVerified, ""},
		{"used is spent", model.OtpStatusUsed, apperrors.CodeOtpNotVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockOtpRepository{
				findByIdentityFunc: func(ctx context.Context, identity string) (*model.OtpRecord, error) {
					return &model.OtpRecord{Identity: identity, Status: tt.status}, nil
				},
			}
			svc := newTestService(repo, &mockMailer{})

			err := svc.RequireVerified(context.Background(), "alice@example.com")
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestConsumeVerified(t *testing.T) {
	repo := &mockOtpRepository{
		markUsedFunc: func(ctx context.Context, identity string) error { return nil },
	}
	svc := newTestService(repo, &mockMailer{})
	if err := svc.ConsumeVerified(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("ConsumeVerified failed: %v", err)
	}

	repo.markUsedFunc = func(ctx context.Context, identity string) error {
		return otperrors.ErrNotVerified
	}
	err := svc.ConsumeVerified(context.Background(), "alice@example.com")
	if !apperrors.HasCode(err, apperrors.CodeOtpNotVerified) {
		t.Fatalf("expected OTP_NOT_VERIFIED, got %v", err)
	}
}

func TestGenerateCodeLengthAndCharset(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode(6)
		if err != nil {
			t.Fatalf("generateCode failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("expected digits only, got %q", code)
			}
		}
	}
}
