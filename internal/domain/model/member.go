// Package model contains domain models passed between layers.
package model

import "time"

// Member is the identity anchor every profile and leaderboard row points at.
type Member struct {
	ID         int64   // assigned by storage
	RollNo     string  // institute roll number
	Name       string  // display name
	Hostel     string  // hostel name
	Email      string  // globally unique
	Sex        string  // free-form
	Year       int     // enrollment year
	MACAddress string  // optional hardware address
	DiscordID  *string // optional chat-platform id
	GroupID    int     // group identifier
}

// RosterMember is one reconciliation target: a member plus the handle it
// uses on every configured source.
type RosterMember struct {
	MemberID int64
	Handles  map[Source]string
}

// Handle returns the member's handle on source, or "" when none is known.
func (r RosterMember) Handle(source Source) string {
	if r.Handles == nil {
		return ""
	}
	return r.Handles[source]
}

// Attendance is a single lab check-in for a member.
type Attendance struct {
	MemberID int64
	Date     time.Time // calendar day, time component ignored
	TimeIn   string    // HH:MM:SS
	TimeOut  string    // HH:MM:SS
}
