package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrStorage      = errors.New("storage failure")
	ErrConflict     = errors.New("conflicting record")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrInvalidInput = errors.New("invalid input")
)
