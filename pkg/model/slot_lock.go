package model

import "time"

// SlotLock is an advisory lock taken around the reserve critical section.
// The unique _id makes concurrent lock creation for the same key fail with
// a duplicate key error, serializing the reservations racing on that key.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
