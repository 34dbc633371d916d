package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrUnknownProfile = errors.New("unknown profile type")
	ErrNoScores       = errors.New("no per-source scores available")
)
