package model

import (
	"fmt"
	"time"
)

const SlotDateLayout = "2006-01-02"

// Slot is one bookable interval of a materialized day. The document ID is
// derived from the interval coordinates so a day can be materialized
// concurrently without producing duplicates.
type Slot struct {
	ID               string    `json:"id" bson:"_id"`
	Date             string    `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Start            time.Time `json:"start" bson:"start" validate:"required"`
	End              time.Time `json:"end" bson:"end" validate:"required,gtfield=Start"`
	CapacityTotal    int       `json:"capacity_total" bson:"capacity_total" validate:"required,min=1,max=200"`
	CapacityReserved int       `json:"capacity_reserved" bson:"capacity_reserved" validate:"min=0"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// IsBookable reports whether the interval still has unreserved capacity.
func (s *Slot) IsBookable() bool {
	return s.CapacityReserved < s.CapacityTotal
}

// SlotID builds the canonical slot identifier for an interval start.
// Intervals are compared by these values, never by formatted strings.
func SlotID(date string, start time.Time) string {
	return fmt.Sprintf("%s_%s", date, start.Format("1504"))
}

// SlotView is the listing shape handed to the rendering layer.
type SlotView struct {
	ID         string    `json:"id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	IsBookable bool      `json:"is_bookable"`
}
