package model

import "time"

const (
	NotificationConfirmation = "CONFIRMATION"
	NotificationReminder     = "REMINDER"
)

// Notification is a recorded alert for an identity. Delivery (banner, push,
// SMS) is a consumer concern; this service only records the notification and
// publishes the matching event.
type Notification struct {
	ID            string    `json:"id" bson:"_id"`
	Identity      string    `json:"identity" bson:"identity" validate:"required,email"`
	ReservationID string    `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	Type          string    `json:"type" bson:"type" validate:"required,oneof=CONFIRMATION REMINDER"`
	Message       string    `json:"message" bson:"message" validate:"required,min=1,max=500"`
	Cleared       bool      `json:"cleared" bson:"cleared"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}
