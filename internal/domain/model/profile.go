package model

import (
	"fmt"
	"strings"
)

// Source identifies an external judge.
type Source string

// Known sources.
const (
	SourceLeetCode   Source = "leetcode"
	SourceCodeforces Source = "codeforces"
)

// Sources lists every supported source in a stable order.
var Sources = []Source{SourceLeetCode, SourceCodeforces}

// ParseSource maps a case-insensitive name to a Source.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceLeetCode:
		return SourceLeetCode, nil
	case SourceCodeforces:
		return SourceCodeforces, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Profile is the most recent raw statistics of one member on one source.
// At most one Profile exists per (member, source).
type Profile interface {
	Owner() int64
	Source() Source
	SourceHandle() string
}

// LeetCodeStats is the LeetCode-like judge snapshot.
type LeetCodeStats struct {
	MemberID             int64  `json:"member_id"`
	Username             string `json:"leetcode_username"`
	ProblemsSolved       int    `json:"problems_solved"`
	EasySolved           int    `json:"easy_solved"`
	MediumSolved         int    `json:"medium_solved"`
	HardSolved           int    `json:"hard_solved"`
	ContestsParticipated int    `json:"contests_participated"`
	BestRank             int    `json:"best_rank"`
	TotalContests        int    `json:"total_contests"`
}

func (s LeetCodeStats) Owner() int64         { return s.MemberID }
func (s LeetCodeStats) Source() Source       { return SourceLeetCode }
func (s LeetCodeStats) SourceHandle() string { return s.Username }

// CodeforcesStats is the Codeforces-like judge snapshot.
type CodeforcesStats struct {
	MemberID             int64  `json:"member_id"`
	Handle               string `json:"codeforces_handle"`
	Rating               int    `json:"codeforces_rating"`
	MaxRating            int    `json:"max_rating"`
	ContestsParticipated int    `json:"contests_participated"`
}

func (s CodeforcesStats) Owner() int64         { return s.MemberID }
func (s CodeforcesStats) Source() Source       { return SourceCodeforces }
func (s CodeforcesStats) SourceHandle() string { return s.Handle }
