// Package repository persists members, per-source profiles and leaderboard
// rows. Every write is an idempotent upsert keyed by member.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/types"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Store provides read/write access to the persisted state.
type Store interface {
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend.
	Close() error

	// AddMember inserts a member together with its non-empty handles and
	// returns its id. Either everything is stored or nothing is. Returns
	// ErrConflict on a duplicate email and ErrInvalidInput for an unknown
	// source.
	AddMember(ctx context.Context, m model.Member, handles map[model.Source]string) (int64, error)
	// GetMember returns ErrNotFound if the member is unknown.
	GetMember(ctx context.Context, id int64) (model.Member, error)
	// SetHandle registers the handle a member uses on source.
	SetHandle(ctx context.Context, memberID int64, source model.Source, handle string) error
	// AddAttendance records a check-in. Returns ErrConflict for a second
	// record on the same day.
	AddAttendance(ctx context.Context, a model.Attendance) error
	// ListRoster returns every member with its known handles, ordered by id.
	ListRoster(ctx context.Context) ([]model.RosterMember, error)

	// UpsertProfile creates or overwrites the member's snapshot for the
	// profile's source.
	UpsertProfile(ctx context.Context, p model.Profile) error
	// GetProfile returns the last stored snapshot or ErrNotFound.
	GetProfile(ctx context.Context, memberID int64, source model.Source) (model.Profile, error)

	// UpsertLeaderboardEntry creates or overwrites the member's row.
	UpsertLeaderboardEntry(ctx context.Context, e model.LeaderboardEntry) error
	// GetLeaderboardEntry returns ErrNotFound if the member has no row.
	GetLeaderboardEntry(ctx context.Context, memberID int64) (model.LeaderboardEntry, error)
	// TopN returns the first n rows ordered by unified score desc, member id
	// asc, with dense ranks.
	TopN(ctx context.Context, n int) ([]types.Entry, error)
	// Rank returns the member's row with its dense rank.
	Rank(ctx context.Context, memberID int64) (types.Entry, error)
	// CountLeaderboard returns the number of leaderboard rows.
	CountLeaderboard(ctx context.Context) (int, error)
}

// observe records latency and failures of one storage operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordStorageOp(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !isNotFound(err) {
		metrics.RecordStorageError(op)
	}
}

// memberHandles trims handles and drops empty ones. Unknown sources are
// rejected.
func memberHandles(handles map[model.Source]string) (map[model.Source]string, error) {
	out := make(map[model.Source]string, len(handles))
	for src, h := range handles {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		parsed, err := model.ParseSource(string(src))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		out[parsed] = h
	}
	return out, nil
}
