package repository

import (
	"errors"
	"sort"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/types"
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func toEntry(e model.LeaderboardEntry) types.Entry {
	return types.Entry{
		MemberID:        e.MemberID,
		LeetCodeScore:   e.LeetCodeScore,
		CodeforcesScore: e.CodeforcesScore,
		UnifiedScore:    e.UnifiedScore,
		LastUpdated:     e.LastUpdated,
	}
}

// sortEntries orders rows by unified score desc, then member id asc.
func sortEntries(entries []types.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UnifiedScore != entries[j].UnifiedScore {
			return entries[i].UnifiedScore > entries[j].UnifiedScore
		}
		return entries[i].MemberID < entries[j].MemberID
	})
}

// assignDenseRanks ranks sorted rows: equal scores share a rank and the next
// distinct score takes the next consecutive rank.
func assignDenseRanks(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].UnifiedScore != entries[i-1].UnifiedScore {
			rank++
		}
		entries[i].Rank = rank
	}
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
