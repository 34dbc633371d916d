package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/types"
)

// MemoryStore is a process-local Store. It enforces the same uniqueness and
// reference rules as the SQLite schema.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	members    map[int64]model.Member
	emails     map[string]int64
	handles    map[int64]map[model.Source]string
	attendance map[int64]map[string]model.Attendance
	leetcode   map[int64]model.LeetCodeStats
	codeforces map[int64]model.CodeforcesStats
	board      map[int64]model.LeaderboardEntry
	closed     bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:    make(map[int64]model.Member),
		emails:     make(map[string]int64),
		handles:    make(map[int64]map[model.Source]string),
		attendance: make(map[int64]map[string]model.Attendance),
		leetcode:   make(map[int64]model.LeetCodeStats),
		codeforces: make(map[int64]model.CodeforcesStats),
		board:      make(map[int64]model.LeaderboardEntry),
	}
}

// Close marks the store unusable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
	}
	if s.closed {
		return fmt.Errorf("%s: %w: store closed", op, ErrStorage)
	}
	return nil
}

func (s *MemoryStore) requireMember(op string, id int64) error {
	if _, ok := s.members[id]; !ok {
		return fmt.Errorf("%s: unknown member %d: %w", op, id, ErrNotFound)
	}
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { observe("ping", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(ctx, "ping")
}

// AddMember implements Store.
func (s *MemoryStore) AddMember(ctx context.Context, m model.Member, handles map[model.Source]string) (id int64, err error) {
	defer func(start time.Time) { observe("add_member", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "add member"); err != nil {
		return 0, err
	}
	if strings.TrimSpace(m.Email) == "" {
		return 0, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	hs, err := memberHandles(handles)
	if err != nil {
		return 0, err
	}
	if _, dup := s.emails[m.Email]; dup {
		return 0, fmt.Errorf("add member: %w: email %q", ErrConflict, m.Email)
	}
	s.nextID++
	m.ID = s.nextID
	if m.DiscordID != nil {
		v := *m.DiscordID
		m.DiscordID = &v
	}
	s.members[m.ID] = m
	s.emails[m.Email] = m.ID
	if len(hs) > 0 {
		s.handles[m.ID] = hs
	}
	return m.ID, nil
}

// GetMember implements Store.
func (s *MemoryStore) GetMember(ctx context.Context, id int64) (m model.Member, err error) {
	defer func(start time.Time) { observe("get_member", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "get member"); err != nil {
		return model.Member{}, err
	}
	m, ok := s.members[id]
	if !ok {
		return model.Member{}, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return m, nil
}

// SetHandle implements Store.
func (s *MemoryStore) SetHandle(ctx context.Context, memberID int64, source model.Source, handle string) (err error) {
	defer func(start time.Time) { observe("set_handle", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "set handle"); err != nil {
		return err
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return fmt.Errorf("%w: handle is required", ErrInvalidInput)
	}
	if err := s.requireMember("set handle", memberID); err != nil {
		return err
	}
	hs := s.handles[memberID]
	if hs == nil {
		hs = make(map[model.Source]string)
		s.handles[memberID] = hs
	}
	hs[source] = handle
	return nil
}

// AddAttendance implements Store.
func (s *MemoryStore) AddAttendance(ctx context.Context, a model.Attendance) (err error) {
	defer func(start time.Time) { observe("add_attendance", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "add attendance"); err != nil {
		return err
	}
	if err := s.requireMember("add attendance", a.MemberID); err != nil {
		return err
	}
	day := a.Date.Format(time.DateOnly)
	days := s.attendance[a.MemberID]
	if days == nil {
		days = make(map[string]model.Attendance)
		s.attendance[a.MemberID] = days
	}
	if _, dup := days[day]; dup {
		return fmt.Errorf("add attendance: %w: member %d on %s", ErrConflict, a.MemberID, day)
	}
	days[day] = a
	return nil
}

// ListRoster implements Store.
func (s *MemoryStore) ListRoster(ctx context.Context) (roster []model.RosterMember, err error) {
	defer func(start time.Time) { observe("list_roster", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "list roster"); err != nil {
		return nil, err
	}
	roster = make([]model.RosterMember, 0, len(s.members))
	for id := int64(1); id <= s.nextID; id++ {
		if _, ok := s.members[id]; !ok {
			continue
		}
		rm := model.RosterMember{MemberID: id, Handles: map[model.Source]string{}}
		if st, ok := s.leetcode[id]; ok && st.Username != "" {
			rm.Handles[model.SourceLeetCode] = st.Username
		}
		if st, ok := s.codeforces[id]; ok && st.Handle != "" {
			rm.Handles[model.SourceCodeforces] = st.Handle
		}
		for src, h := range s.handles[id] {
			rm.Handles[src] = h
		}
		roster = append(roster, rm)
	}
	return roster, nil
}

// UpsertProfile implements Store.
func (s *MemoryStore) UpsertProfile(ctx context.Context, p model.Profile) (err error) {
	defer func(start time.Time) { observe("upsert_profile", start, err) }(time.Now())
	p, err = unpackProfile(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "upsert profile"); err != nil {
		return err
	}
	if err := s.requireMember("upsert profile", p.Owner()); err != nil {
		return err
	}
	switch st := p.(type) {
	case model.LeetCodeStats:
		s.leetcode[st.MemberID] = st
	case model.CodeforcesStats:
		s.codeforces[st.MemberID] = st
	}
	return nil
}

// GetProfile implements Store.
func (s *MemoryStore) GetProfile(ctx context.Context, memberID int64, source model.Source) (p model.Profile, err error) {
	defer func(start time.Time) { observe("get_profile", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "get profile"); err != nil {
		return nil, err
	}
	var ok bool
	switch source {
	case model.SourceLeetCode:
		p, ok = s.leetcode[memberID]
	case model.SourceCodeforces:
		p, ok = s.codeforces[memberID]
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, source)
	}
	if !ok {
		return nil, fmt.Errorf("%s profile of member %d: %w", source, memberID, ErrNotFound)
	}
	return p, nil
}

// UpsertLeaderboardEntry implements Store.
func (s *MemoryStore) UpsertLeaderboardEntry(ctx context.Context, e model.LeaderboardEntry) (err error) {
	defer func(start time.Time) { observe("upsert_leaderboard", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "upsert leaderboard"); err != nil {
		return err
	}
	if err := s.requireMember("upsert leaderboard", e.MemberID); err != nil {
		return err
	}
	e.LeetCodeScore = copyIntPtr(e.LeetCodeScore)
	e.CodeforcesScore = copyIntPtr(e.CodeforcesScore)
	e.LastUpdated = e.LastUpdated.UTC()
	s.board[e.MemberID] = e
	return nil
}

// GetLeaderboardEntry implements Store.
func (s *MemoryStore) GetLeaderboardEntry(ctx context.Context, memberID int64) (e model.LeaderboardEntry, err error) {
	defer func(start time.Time) { observe("get_leaderboard", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "get leaderboard"); err != nil {
		return model.LeaderboardEntry{}, err
	}
	e, ok := s.board[memberID]
	if !ok {
		return model.LeaderboardEntry{}, fmt.Errorf("leaderboard row of member %d: %w", memberID, ErrNotFound)
	}
	e.LeetCodeScore = copyIntPtr(e.LeetCodeScore)
	e.CodeforcesScore = copyIntPtr(e.CodeforcesScore)
	return e, nil
}

// ranked returns every row sorted and ranked. Callers hold the read lock.
func (s *MemoryStore) ranked() []types.Entry {
	entries := make([]types.Entry, 0, len(s.board))
	for _, e := range s.board {
		row := toEntry(e)
		row.LeetCodeScore = copyIntPtr(e.LeetCodeScore)
		row.CodeforcesScore = copyIntPtr(e.CodeforcesScore)
		entries = append(entries, row)
	}
	sortEntries(entries)
	assignDenseRanks(entries)
	return entries
}

// TopN implements Store.
func (s *MemoryStore) TopN(ctx context.Context, n int) (out []types.Entry, err error) {
	defer func(start time.Time) { observe("top_n", start, err) }(time.Now())
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "top n"); err != nil {
		return nil, err
	}
	entries := s.ranked()
	if n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}

// Rank implements Store.
func (s *MemoryStore) Rank(ctx context.Context, memberID int64) (e types.Entry, err error) {
	defer func(start time.Time) { observe("rank", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "rank"); err != nil {
		return types.Entry{}, err
	}
	if _, ok := s.board[memberID]; !ok {
		return types.Entry{}, fmt.Errorf("leaderboard row of member %d: %w", memberID, ErrNotFound)
	}
	for _, row := range s.ranked() {
		if row.MemberID == memberID {
			return row, nil
		}
	}
	return types.Entry{}, fmt.Errorf("leaderboard row of member %d: %w", memberID, ErrNotFound)
}

// CountLeaderboard implements Store.
func (s *MemoryStore) CountLeaderboard(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "count leaderboard"); err != nil {
		return 0, err
	}
	return len(s.board), nil
}
