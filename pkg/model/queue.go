package model

// QueuePosition is the derived standing of a reservation within its slot's
// service order. It is recomputed on every query, never cached, so it only
// ever moves toward the front as earlier reservations are served.
type QueuePosition struct {
	ReservationID string `json:"reservation_id"`
	SlotID        string `json:"slot_id"`
	Status        string `json:"status"`
	Position      int64  `json:"position"`
	EtaMinutes    int64  `json:"eta_minutes"`
	ReminderDue   bool   `json:"reminder_due"`
}
