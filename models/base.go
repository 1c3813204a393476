package models

import "github.com/google/uuid"

// Game lifecycle statuses.
const (
	GameWaiting   = "WAITING"
	GameStarted   = "STARTED"
	GameCompleted = "COMPLETED"
)

// Player request statuses.
const (
	RequestPending   = "PENDING"
	RequestApproved  = "APPROVED"
	RequestRejected  = "REJECTED"
	RequestCancelled = "CANCELLED"
)

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
