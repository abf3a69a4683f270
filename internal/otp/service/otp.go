package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	otperrors "serveq/internal/otp/errors"
	"serveq/internal/otp/repository"
	"serveq/internal/otp/validator"
	"serveq/pkg/config"
	apperrors "serveq/pkg/errors"
	"serveq/pkg/mailer"
	"serveq/pkg/model"
	"serveq/pkg/sanitizer"
)

type OtpService interface {
	// Issue generates a fresh passcode for the identity, replacing any
	// previous one. The returned record carries the plaintext code so the
	// caller can decide whether to echo it (demo mode, no SMTP).
	Issue(ctx context.Context, identity, displayName string) (*model.OtpRecord, error)

	// Verify consumes a pending passcode. On success the record becomes
	// verified and stays verified until a reservation spends it.
	Verify(ctx context.Context, identity, code string) error

	// RequireVerified checks that the identity holds a verified, not yet
	// spent passcode session.
	RequireVerified(ctx context.Context, identity string) error

	// ConsumeVerified retires the verified passcode once a reservation
	// has been granted on its back.
	ConsumeVerified(ctx context.Context, identity string) error
}

type otpService struct {
	repo      repository.OtpRepository
	validator *validator.OtpValidator
	mail      mailer.Mailer
	cfg       *config.Config
	now       func() time.Time
}

func NewOtpService(
	repo repository.OtpRepository,
	validator *validator.OtpValidator,
	mail mailer.Mailer,
	cfg *config.Config,
) OtpService {
	return &otpService{
		repo:      repo,
		validator: validator,
		mail:      mail,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *otpService) Issue(ctx context.Context, identity, displayName string) (*model.OtpRecord, error) {
	identity = sanitizer.NormalizeIdentity(identity)
	displayName = sanitizer.NormalizeDisplayName(displayName)

	if err := s.validator.ValidateLogin(identity, displayName); err != nil {
		return nil, apperrors.Validation("Login validation failed", map[string]any{
			"validation_errors": err.Error(),
		})
	}

	code, err := generateCode(s.cfg.OtpLength)
	if err != nil {
		return nil, apperrors.Internal("Failed to generate passcode", err)
	}

	issuedAt := s.now().UTC().Truncate(time.Millisecond)
	record := &model.OtpRecord{
		Identity:    identity,
		DisplayName: displayName,
		Code:        code,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(s.cfg.OtpTTL),
		Status:      model.OtpStatusPending,
	}

	if err := s.repo.Put(ctx, record); err != nil {
		s.cfg.Log.Error("Failed to store passcode", "identity", identity, "error", err)
		return nil, apperrors.Internal("Failed to issue passcode", err)
	}

	if s.mail.Enabled() {
		body := fmt.Sprintf("Your verification code is %s. It expires in %s.", code, s.cfg.OtpTTL)
		if err := s.mail.Send(identity, "Your verification code", body); err != nil {
			s.cfg.Log.Warn("Passcode email delivery failed", "identity", identity, "error", err)
		}
	}

	s.cfg.Log.Info("Passcode issued",
		"identity", identity,
		"expires_at", record.ExpiresAt,
	)
	return record, nil
}

func (s *otpService) Verify(ctx context.Context, identity, code string) error {
	identity = sanitizer.NormalizeIdentity(identity)

	if err := s.validator.ValidateVerify(identity, code); err != nil {
		return apperrors.Validation("Verification validation failed", map[string]any{
			"validation_errors": err.Error(),
		})
	}

	record, err := s.repo.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, otperrors.ErrNotFound) {
			return apperrors.NotFound("Passcode")
		}
		s.cfg.Log.Error("Failed to load passcode", "identity", identity, "error", err)
		return apperrors.Internal("Failed to verify passcode", err)
	}

	// Expiry outranks everything else: once the window closes the record
	// is dead, no matter what code is presented or what state it is in.
	if record.Expired(s.now()) {
		return apperrors.OtpExpired()
	}
	if record.Code != code {
		return apperrors.OtpMismatch()
	}
	if record.Consumed() {
		return apperrors.OtpAlreadyConsumed()
	}

	if err := s.repo.MarkVerified(ctx, identity, code); err != nil {
		if errors.Is(err, otperrors.ErrAlreadyConsumed) {
			// Lost the race to a concurrent verify of the same code.
			return apperrors.OtpAlreadyConsumed()
		}
		s.cfg.Log.Error("Failed to mark passcode verified", "identity", identity, "error", err)
		return apperrors.Internal("Failed to verify passcode", err)
	}

	s.cfg.Log.Info("Passcode verified", "identity", identity)
	return nil
}

func (s *otpService) RequireVerified(ctx context.Context, identity string) error {
	identity = sanitizer.NormalizeIdentity(identity)

	record, err := s.repo.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, otperrors.ErrNotFound) {
			return apperrors.OtpNotVerified()
		}
		return apperrors.Internal("Failed to check passcode session", err)
	}

	if record.Status != model.OtpStatusVerified {
		return apperrors.OtpNotVerified()
	}
	return nil
}

func (s *otpService) ConsumeVerified(ctx context.Context, identity string) error {
	identity = sanitizer.NormalizeIdentity(identity)

	if err := s.repo.MarkUsed(ctx, identity); err != nil {
		if errors.Is(err, otperrors.ErrNotVerified) {
			return apperrors.OtpNotVerified()
		}
		return apperrors.Internal("Failed to consume passcode session", err)
	}
	return nil
}

// generateCode draws a zero-padded numeric code from crypto/rand.
func generateCode(length int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
