// Package types contains read shapes shared by the service and the HTTP layer.
package types

import (
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Entry is a ranked leaderboard row as served to clients.
type Entry struct {
	Rank            int       `json:"rank"`
	MemberID        int64     `json:"member_id"`
	LeetCodeScore   *int      `json:"leetcode_score"`
	CodeforcesScore *int      `json:"codeforces_score"`
	UnifiedScore    int       `json:"unified_score"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Profiles is the stored per-source state of one member. A nil source means
// no snapshot has been stored yet.
type Profiles struct {
	MemberID   int64                  `json:"member_id"`
	LeetCode   *model.LeetCodeStats   `json:"leetcode"`
	Codeforces *model.CodeforcesStats `json:"codeforces"`
}
