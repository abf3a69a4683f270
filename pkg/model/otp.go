package model

import (
	"time"
)

const (
	OtpStatusPending  = "pending"
	OtpStatusVerified = "verified"
	OtpStatusUsed     = "used"
)

// OtpRecord is the single passcode record kept per identity. Issuing a new
// code replaces the previous record, so at most one unconsumed code can
// exist for an identity at any time.
type OtpRecord struct {
	Identity    string    `json:"identity" bson:"_id" validate:"required,email"`
	DisplayName string    `json:"display_name,omitempty" bson:"display_name,omitempty" validate:"omitempty,min=1,max=100"`
	Code        string    `json:"code" bson:"code" validate:"required,numeric,len=6"`
	IssuedAt    time.Time `json:"issued_at" bson:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at" bson:"expires_at"`
	Status      string    `json:"status" bson:"status" validate:"required,oneof=pending verified used"`
}

func (r *OtpRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Consumed reports whether the code has already been spent on a successful
// verification. A consumed record never becomes pending again.
func (r *OtpRecord) Consumed() bool {
	return r.Status != OtpStatusPending
}
