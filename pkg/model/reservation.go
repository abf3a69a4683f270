package model

import (
	"time"
)

const (
	ReservationActive = "active"
	ReservationServed = "served"
)

// Reservation is a confirmed claim on one unit of a slot's capacity.
// Sequence is the reservation's rank among all reservations for the same
// slot, assigned atomically with the capacity grant: 1..K, no gaps, no
// reuse. Reservations are immutable after creation except for the served
// transition.
type Reservation struct {
	ID        string    `json:"id" bson:"_id"`
	Identity  string    `json:"identity" bson:"identity" validate:"required,email"`
	SlotID    string    `json:"slot_id" bson:"slot_id" validate:"required"`
	Date      string    `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Start     time.Time `json:"start" bson:"start" validate:"required"`
	End       time.Time `json:"end" bson:"end" validate:"required,gtfield=Start"`
	Sequence  int64     `json:"sequence" bson:"sequence" validate:"required,min=1"`
	Status    string    `json:"status" bson:"status" validate:"required,oneof=active served"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (r *Reservation) Served() bool {
	return r.Status == ReservationServed
}
