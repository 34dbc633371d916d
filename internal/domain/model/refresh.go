package model

import "time"

// RefreshJob asks for one member to be reconciled outside the regular cycle.
type RefreshJob struct {
	ID         string    `json:"id"`
	MemberID   int64     `json:"member_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
