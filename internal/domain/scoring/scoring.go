// Package scoring turns raw per-source statistics into comparable integer
// scores and merges them into a unified leaderboard score.
//
// LeetCode:
//
//	easy*Easy + medium*Medium + hard*Hard + unclassified*Unclassified
//	  + contests*LeetCodeContest + min(RankBonusCap, RankBonusNumerator/bestRank)
//
// where unclassified is the part of problems_solved not broken down by
// difficulty and the rank bonus only applies to a positive best rank.
//
// Codeforces:
//
//	rating/RatingDivisor + maxRating/MaxRatingDivisor + contests*CodeforcesContest
//
// Unified: the sum of every available per-source score, floored at
// MinUnifiedScore. Negative counters are clamped to zero, so per-source
// scores are non-negative, a leaderboard row always carries a positive
// unified score, and adding or raising a source never lowers it.
package scoring

import (
	"fmt"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Weights parameterises the per-source formulas. All values must be >= 0;
// divisors must be > 0.
type Weights struct {
	Easy               int `koanf:"easy" validate:"gte=0"`
	Medium             int `koanf:"medium" validate:"gte=0"`
	Hard               int `koanf:"hard" validate:"gte=0"`
	Unclassified       int `koanf:"unclassified" validate:"gte=0"`
	LeetCodeContest    int `koanf:"leetcode_contest" validate:"gte=0"`
	RankBonusNumerator int `koanf:"rank_bonus_numerator" validate:"gte=0"`
	RankBonusCap       int `koanf:"rank_bonus_cap" validate:"gte=0"`
	RatingDivisor      int `koanf:"rating_divisor" validate:"gt=0"`
	MaxRatingDivisor   int `koanf:"max_rating_divisor" validate:"gt=0"`
	CodeforcesContest  int `koanf:"codeforces_contest" validate:"gte=0"`
}

// DefaultWeights returns the documented default formula parameters.
func DefaultWeights() Weights {
	return Weights{
		Easy:               1,
		Medium:             3,
		Hard:               5,
		Unclassified:       1,
		LeetCodeContest:    10,
		RankBonusNumerator: 100_000,
		RankBonusCap:       500,
		RatingDivisor:      10,
		MaxRatingDivisor:   20,
		CodeforcesContest:  5,
	}
}

func (w Weights) valid() bool {
	return w.Easy >= 0 && w.Medium >= 0 && w.Hard >= 0 && w.Unclassified >= 0 &&
		w.LeetCodeContest >= 0 && w.RankBonusNumerator >= 0 && w.RankBonusCap >= 0 &&
		w.RatingDivisor > 0 && w.MaxRatingDivisor > 0 && w.CodeforcesContest >= 0
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights replaces the default weights. Invalid weights are ignored.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		if w.valid() {
			s.weights = w
		}
	}
}

// Scorer computes per-source scores. It holds no mutable state and is safe
// for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the default weights unless overridden.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weights returns the weights in effect.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// ScoreOf maps a source profile to its normalized integer score.
func (s *Scorer) ScoreOf(p model.Profile) (int, error) {
	switch v := p.(type) {
	case model.LeetCodeStats:
		return s.leetCode(v), nil
	case *model.LeetCodeStats:
		return s.leetCode(*v), nil
	case model.CodeforcesStats:
		return s.codeforces(v), nil
	case *model.CodeforcesStats:
		return s.codeforces(*v), nil
	}
	return 0, fmt.Errorf("%w: %T", ErrUnknownProfile, p)
}

func (s *Scorer) leetCode(st model.LeetCodeStats) int {
	w := s.weights
	easy, medium, hard := nonNeg(st.EasySolved), nonNeg(st.MediumSolved), nonNeg(st.HardSolved)
	unclassified := nonNeg(st.ProblemsSolved - easy - medium - hard)

	score := easy*w.Easy + medium*w.Medium + hard*w.Hard + unclassified*w.Unclassified
	score += nonNeg(st.ContestsParticipated) * w.LeetCodeContest
	if st.BestRank > 0 {
		score += min(w.RankBonusCap, w.RankBonusNumerator/st.BestRank)
	}
	return score
}

func (s *Scorer) codeforces(st model.CodeforcesStats) int {
	w := s.weights
	return nonNeg(st.Rating)/w.RatingDivisor +
		nonNeg(st.MaxRating)/w.MaxRatingDivisor +
		nonNeg(st.ContestsParticipated)*w.CodeforcesContest
}

// MinUnifiedScore is the unified score of a member whose available sources
// all score zero.
const MinUnifiedScore = 1

// Combine merges the available per-source scores into the unified score.
// It is defined for any non-empty set and independent of iteration order.
func Combine(scores map[model.Source]int) (int, error) {
	if len(scores) == 0 {
		return 0, ErrNoScores
	}
	total := 0
	for _, v := range scores {
		total += nonNeg(v)
	}
	return max(total, MinUnifiedScore), nil
}

func nonNeg(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
