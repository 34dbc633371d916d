package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrRefreshBacklog = errors.New("refresh backlog full")
)
