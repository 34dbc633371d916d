package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/judgeboard/internal/adapters/repository/migrations"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/types"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const memoryPath = ":memory:"

// SQLiteStore persists state in SQLite.
type SQLiteStore struct {
	db           *sql.DB
	busyTimeout  time.Duration
	maxOpenConns int
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens the database at path, applies embedded migrations and
// returns a ready store. ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: database path is required", ErrInvalidInput)
	}
	s := &SQLiteStore{busyTimeout: 5 * time.Second, maxOpenConns: 8}
	for _, opt := range opts {
		opt(s)
	}

	pragmas := fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", s.busyTimeout.Milliseconds())
	dsn := memoryPath + "?" + pragmas
	if path != memoryPath {
		dsn = filepath.Clean(path) + "?" + pragmas + "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	} else {
		// Each connection to :memory: is a separate database.
		s.maxOpenConns = 1
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	if path == memoryPath {
		db.SetConnMaxLifetime(0)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s.db = db
	return s, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { observe("ping", start, err) }(time.Now())
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// AddMember implements Store.
func (s *SQLiteStore) AddMember(ctx context.Context, m model.Member, handles map[model.Source]string) (id int64, err error) {
	defer func(start time.Time) { observe("add_member", start, err) }(time.Now())
	if strings.TrimSpace(m.Email) == "" {
		return 0, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	hs, err := memberHandles(handles)
	if err != nil {
		return 0, err
	}
	var discord sql.NullString
	if m.DiscordID != nil {
		discord = sql.NullString{String: *m.DiscordID, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("add member", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO member (rollno, name, hostel, email, sex, year, macaddress, discord_id, group_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RollNo, m.Name, m.Hostel, m.Email, m.Sex, m.Year, m.MACAddress, discord, m.GroupID)
	if err != nil {
		return 0, storageErr("add member", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, storageErr("add member id", err)
	}
	for src, h := range hs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO member_handles (member_id, source, handle) VALUES (?, ?, ?)`,
			id, string(src), h); err != nil {
			return 0, storageErr("add member handle", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, storageErr("add member commit", err)
	}
	return id, nil
}

// GetMember implements Store.
func (s *SQLiteStore) GetMember(ctx context.Context, id int64) (m model.Member, err error) {
	defer func(start time.Time) { observe("get_member", start, err) }(time.Now())
	var discord sql.NullString
	err = s.db.QueryRowContext(ctx, `
SELECT id, rollno, name, hostel, email, sex, year, macaddress, discord_id, group_id
FROM member WHERE id = ?`, id).Scan(
		&m.ID, &m.RollNo, &m.Name, &m.Hostel, &m.Email, &m.Sex, &m.Year, &m.MACAddress, &discord, &m.GroupID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Member{}, storageErr("get member", err)
	}
	if discord.Valid {
		v := discord.String
		m.DiscordID = &v
	}
	return m, nil
}

// SetHandle implements Store.
func (s *SQLiteStore) SetHandle(ctx context.Context, memberID int64, source model.Source, handle string) (err error) {
	defer func(start time.Time) { observe("set_handle", start, err) }(time.Now())
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return fmt.Errorf("%w: handle is required", ErrInvalidInput)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO member_handles (member_id, source, handle) VALUES (?, ?, ?)
ON CONFLICT(member_id, source) DO UPDATE SET handle = excluded.handle`,
		memberID, string(source), handle)
	if err != nil {
		return storageErr("set handle", err)
	}
	return nil
}

// AddAttendance implements Store.
func (s *SQLiteStore) AddAttendance(ctx context.Context, a model.Attendance) (err error) {
	defer func(start time.Time) { observe("add_attendance", start, err) }(time.Now())
	_, err = s.db.ExecContext(ctx, `
INSERT INTO attendance (member_id, date, timein, timeout) VALUES (?, ?, ?, ?)`,
		a.MemberID, a.Date.Format(time.DateOnly), a.TimeIn, a.TimeOut)
	if err != nil {
		return storageErr("add attendance", err)
	}
	return nil
}

// ListRoster implements Store. A handle registered in member_handles wins
// over the one recorded on the member's last stored profile.
func (s *SQLiteStore) ListRoster(ctx context.Context) (roster []model.RosterMember, err error) {
	defer func(start time.Time) { observe("list_roster", start, err) }(time.Now())
	rows, err := s.db.QueryContext(ctx, `
SELECT m.id,
       COALESCE(hl.handle, ls.leetcode_username, ''),
       COALESCE(hc.handle, cs.codeforces_handle, '')
FROM member m
LEFT JOIN member_handles hl ON hl.member_id = m.id AND hl.source = ?
LEFT JOIN leetcode_stats ls ON ls.member_id = m.id
LEFT JOIN member_handles hc ON hc.member_id = m.id AND hc.source = ?
LEFT JOIN codeforces_stats cs ON cs.member_id = m.id
ORDER BY m.id`, string(model.SourceLeetCode), string(model.SourceCodeforces))
	if err != nil {
		return nil, storageErr("list roster", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     int64
			lc, cf string
		)
		if err := rows.Scan(&id, &lc, &cf); err != nil {
			return nil, storageErr("scan roster", err)
		}
		rm := model.RosterMember{MemberID: id, Handles: map[model.Source]string{}}
		if lc != "" {
			rm.Handles[model.SourceLeetCode] = lc
		}
		if cf != "" {
			rm.Handles[model.SourceCodeforces] = cf
		}
		roster = append(roster, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate roster", err)
	}
	return roster, nil
}

// UpsertProfile implements Store.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p model.Profile) (err error) {
	defer func(start time.Time) { observe("upsert_profile", start, err) }(time.Now())
	p, err = unpackProfile(p)
	if err != nil {
		return err
	}
	switch st := p.(type) {
	case model.LeetCodeStats:
		_, err = s.db.ExecContext(ctx, `
INSERT INTO leetcode_stats (member_id, leetcode_username, problems_solved, easy_solved, medium_solved,
    hard_solved, contests_participated, best_rank, total_contests)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(member_id) DO UPDATE SET
    leetcode_username = excluded.leetcode_username,
    problems_solved = excluded.problems_solved,
    easy_solved = excluded.easy_solved,
    medium_solved = excluded.medium_solved,
    hard_solved = excluded.hard_solved,
    contests_participated = excluded.contests_participated,
    best_rank = excluded.best_rank,
    total_contests = excluded.total_contests`,
			st.MemberID, st.Username, st.ProblemsSolved, st.EasySolved, st.MediumSolved,
			st.HardSolved, st.ContestsParticipated, st.BestRank, st.TotalContests)
	case model.CodeforcesStats:
		_, err = s.db.ExecContext(ctx, `
INSERT INTO codeforces_stats (member_id, codeforces_handle, codeforces_rating, max_rating, contests_participated)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(member_id) DO UPDATE SET
    codeforces_handle = excluded.codeforces_handle,
    codeforces_rating = excluded.codeforces_rating,
    max_rating = excluded.max_rating,
    contests_participated = excluded.contests_participated`,
			st.MemberID, st.Handle, st.Rating, st.MaxRating, st.ContestsParticipated)
	}
	if err != nil {
		return storageErr("upsert "+string(p.Source())+" profile", err)
	}
	return nil
}

// GetProfile implements Store.
func (s *SQLiteStore) GetProfile(ctx context.Context, memberID int64, source model.Source) (p model.Profile, err error) {
	defer func(start time.Time) { observe("get_profile", start, err) }(time.Now())
	switch source {
	case model.SourceLeetCode:
		st := model.LeetCodeStats{MemberID: memberID}
		err = s.db.QueryRowContext(ctx, `
SELECT leetcode_username, problems_solved, easy_solved, medium_solved, hard_solved,
       contests_participated, best_rank, total_contests
FROM leetcode_stats WHERE member_id = ?`, memberID).Scan(
			&st.Username, &st.ProblemsSolved, &st.EasySolved, &st.MediumSolved, &st.HardSolved,
			&st.ContestsParticipated, &st.BestRank, &st.TotalContests)
		p = st
	case model.SourceCodeforces:
		st := model.CodeforcesStats{MemberID: memberID}
		err = s.db.QueryRowContext(ctx, `
SELECT codeforces_handle, codeforces_rating, max_rating, contests_participated
FROM codeforces_stats WHERE member_id = ?`, memberID).Scan(
			&st.Handle, &st.Rating, &st.MaxRating, &st.ContestsParticipated)
		p = st
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, source)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s profile of member %d: %w", source, memberID, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get "+string(source)+" profile", err)
	}
	return p, nil
}

// UpsertLeaderboardEntry implements Store.
func (s *SQLiteStore) UpsertLeaderboardEntry(ctx context.Context, e model.LeaderboardEntry) (err error) {
	defer func(start time.Time) { observe("upsert_leaderboard", start, err) }(time.Now())
	_, err = s.db.ExecContext(ctx, `
INSERT INTO leaderboard (member_id, leetcode_score, codeforces_score, unified_score, last_updated)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(member_id) DO UPDATE SET
    leetcode_score = excluded.leetcode_score,
    codeforces_score = excluded.codeforces_score,
    unified_score = excluded.unified_score,
    last_updated = excluded.last_updated`,
		e.MemberID, nullInt(e.LeetCodeScore), nullInt(e.CodeforcesScore), e.UnifiedScore, e.LastUpdated.UTC().UnixMilli())
	if err != nil {
		return storageErr("upsert leaderboard", err)
	}
	return nil
}

// GetLeaderboardEntry implements Store.
func (s *SQLiteStore) GetLeaderboardEntry(ctx context.Context, memberID int64) (e model.LeaderboardEntry, err error) {
	defer func(start time.Time) { observe("get_leaderboard", start, err) }(time.Now())
	var (
		lc, cf sql.NullInt64
		ms     int64
	)
	err = s.db.QueryRowContext(ctx, `
SELECT member_id, leetcode_score, codeforces_score, unified_score, last_updated
FROM leaderboard WHERE member_id = ?`, memberID).Scan(&e.MemberID, &lc, &cf, &e.UnifiedScore, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LeaderboardEntry{}, fmt.Errorf("leaderboard row of member %d: %w", memberID, ErrNotFound)
	}
	if err != nil {
		return model.LeaderboardEntry{}, storageErr("get leaderboard", err)
	}
	e.LeetCodeScore, e.CodeforcesScore = intPtr(lc), intPtr(cf)
	e.LastUpdated = time.UnixMilli(ms).UTC()
	return e, nil
}

// TopN implements Store.
func (s *SQLiteStore) TopN(ctx context.Context, n int) (out []types.Entry, err error) {
	defer func(start time.Time) { observe("top_n", start, err) }(time.Now())
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT DENSE_RANK() OVER (ORDER BY unified_score DESC) AS rnk,
       member_id, leetcode_score, codeforces_score, unified_score, last_updated
FROM leaderboard
ORDER BY unified_score DESC, member_id ASC
LIMIT ?`, n)
	if err != nil {
		return nil, storageErr("top n", err)
	}
	defer rows.Close()

	out = make([]types.Entry, 0, n)
	for rows.Next() {
		var (
			e      types.Entry
			lc, cf sql.NullInt64
			ms     int64
		)
		if err := rows.Scan(&e.Rank, &e.MemberID, &lc, &cf, &e.UnifiedScore, &ms); err != nil {
			return nil, storageErr("scan top n", err)
		}
		e.LeetCodeScore, e.CodeforcesScore = intPtr(lc), intPtr(cf)
		e.LastUpdated = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate top n", err)
	}
	return out, nil
}

// Rank implements Store.
func (s *SQLiteStore) Rank(ctx context.Context, memberID int64) (types.Entry, error) {
	row, err := s.GetLeaderboardEntry(ctx, memberID)
	if err != nil {
		return types.Entry{}, err
	}
	start := time.Now()
	var higher int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT unified_score) FROM leaderboard WHERE unified_score > ?`, row.UnifiedScore).Scan(&higher)
	observe("rank", start, err)
	if err != nil {
		return types.Entry{}, storageErr("rank", err)
	}
	e := toEntry(row)
	e.Rank = higher + 1
	return e, nil
}

// CountLeaderboard implements Store.
func (s *SQLiteStore) CountLeaderboard(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { observe("count_leaderboard", start, err) }(time.Now())
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaderboard`).Scan(&n); err != nil {
		return 0, storageErr("count leaderboard", err)
	}
	return n, nil
}

// storageErr classifies a driver error: unique violations become
// ErrConflict, foreign key violations ErrNotFound and everything else
// ErrStorage.
func storageErr(op string, err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: unknown member: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
