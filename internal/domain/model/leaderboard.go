package model

import "time"

// LeaderboardEntry is the reconciled ranking row of a member. Per-source
// scores are nil when that source never produced a profile for the member.
type LeaderboardEntry struct {
	MemberID        int64
	LeetCodeScore   *int
	CodeforcesScore *int
	UnifiedScore    int
	LastUpdated     time.Time
}

// SourceScore returns the per-source score stored on the entry.
func (e LeaderboardEntry) SourceScore(source Source) (int, bool) {
	var p *int
	switch source {
	case SourceLeetCode:
		p = e.LeetCodeScore
	case SourceCodeforces:
		p = e.CodeforcesScore
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// SetSourceScore sets the per-source score field for source.
func (e *LeaderboardEntry) SetSourceScore(source Source, score int) {
	v := score
	switch source {
	case SourceLeetCode:
		e.LeetCodeScore = &v
	case SourceCodeforces:
		e.CodeforcesScore = &v
	}
}
