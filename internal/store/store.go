// Package store persists generation events and raw usage logs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/qaid/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrDuplicateID is returned when an event id is already present.
var ErrDuplicateID = errors.New("store: duplicate event id")

// EventStore is the document collection the metrics tracker reads and writes.
type EventStore interface {
	CreateEvent(ctx context.Context, ev model.GenerationEvent) error
	QueryEvents(ctx context.Context, q Query) ([]model.GenerationEvent, error)
	LogUsage(ctx context.Context, u model.UsageLog) error
	QueryUsage(ctx context.Context, since time.Time, limit int) ([]model.UsageLog, error)
}

// Query filters generation events. Zero fields do not filter.
// Since is inclusive, Until is inclusive.
type Query struct {
	Kind       model.Kind
	Since      time.Time
	Until      time.Time
	Provider   string
	Successful *bool
	Limit      int
}

// SQLite is an EventStore backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

var _ EventStore = (*SQLite)(nil)

// Open opens or creates the event database at the given path.
func Open(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening event db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateEvent appends one generation event. Events are never updated.
func (s *SQLite) CreateEvent(ctx context.Context, ev model.GenerationEvent) error {
	if ev.ID == "" {
		return errors.New("store: event id is required")
	}
	if !ev.Kind.Valid() {
		return fmt.Errorf("store: unknown event kind %q", ev.Kind)
	}

	payload, err := encodePayload(ev)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO generation_events
		(id, kind, timestamp, timestamp_ns, successful, provider, model,
		 tokens_used, cost, response_time_ms, time_saved_minutes, error_message, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.Timestamp.Format(time.RFC3339Nano), ev.Timestamp.UnixNano(),
		boolToInt(ev.Successful), ev.Provider, ev.Model,
		ev.TokensUsed, ev.Cost, ev.ResponseTimeMs, ev.EstimatedTimeSavedMinutes,
		nullString(ev.ErrorMessage), payload,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateID, ev.ID)
		}
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// QueryEvents returns events matching q ordered by timestamp, oldest first.
func (s *SQLite) QueryEvents(ctx context.Context, q Query) ([]model.GenerationEvent, error) {
	var (
		where []string
		args  []any
	)
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp_ns >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if !q.Until.IsZero() {
		where = append(where, "timestamp_ns <= ?")
		args = append(args, q.Until.UnixNano())
	}
	if q.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, q.Provider)
	}
	if q.Successful != nil {
		where = append(where, "successful = ?")
		args = append(args, boolToInt(*q.Successful))
	}

	query := `SELECT id, kind, timestamp, successful, provider, model,
		tokens_used, cost, response_time_ms, time_saved_minutes, error_message, payload
		FROM generation_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp_ns ASC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.GenerationEvent
	for rows.Next() {
		var (
			ev         model.GenerationEvent
			kind, ts   string
			successful int
			errMsg     sql.NullString
			payload    string
		)
		if err := rows.Scan(&ev.ID, &kind, &ts, &successful, &ev.Provider, &ev.Model,
			&ev.TokensUsed, &ev.Cost, &ev.ResponseTimeMs, &ev.EstimatedTimeSavedMinutes,
			&errMsg, &payload); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Kind = model.Kind(kind)
		ev.Successful = successful != 0
		if errMsg.Valid {
			ev.ErrorMessage = errMsg.String
		}
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("event %s: parsing timestamp: %w", ev.ID, err)
		}
		if err := decodePayload(&ev, payload); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LogUsage appends one raw usage row.
func (s *SQLite) LogUsage(ctx context.Context, u model.UsageLog) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO usage_logs
		(id, timestamp, timestamp_ns, provider, model, operation,
		 tokens_used, response_time_ms, successful, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Timestamp.Format(time.RFC3339Nano), u.Timestamp.UnixNano(),
		u.Provider, u.Model, u.Operation, u.TokensUsed, u.ResponseTimeMs,
		boolToInt(u.Successful), nullString(u.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("inserting usage log: %w", err)
	}
	return nil
}

// QueryUsage returns usage rows at or after since, most recent first.
func (s *SQLite) QueryUsage(ctx context.Context, since time.Time, limit int) ([]model.UsageLog, error) {
	query := `SELECT id, timestamp, provider, model, operation,
		tokens_used, response_time_ms, successful, error_message
		FROM usage_logs WHERE timestamp_ns >= ? ORDER BY timestamp_ns DESC, id DESC`
	args := []any{since.UnixNano()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []model.UsageLog
	for rows.Next() {
		var (
			u          model.UsageLog
			ts         string
			successful int
			errMsg     sql.NullString
		)
		if err := rows.Scan(&u.ID, &ts, &u.Provider, &u.Model, &u.Operation,
			&u.TokensUsed, &u.ResponseTimeMs, &successful, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning usage: %w", err)
		}
		u.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		u.Successful = successful != 0
		if errMsg.Valid {
			u.ErrorMessage = errMsg.String
		}
		logs = append(logs, u)
	}
	return logs, rows.Err()
}

// EventCount returns the number of stored generation events.
func (s *SQLite) EventCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM generation_events").Scan(&count)
	return count, err
}

func encodePayload(ev model.GenerationEvent) (string, error) {
	var v any
	switch ev.Kind {
	case model.KindTestCaseGeneration:
		p := ev.TestCase
		if p == nil {
			p = &model.TestCasePayload{}
		}
		v = p
	case model.KindBugReportGeneration:
		p := ev.BugReport
		if p == nil {
			p = &model.BugReportPayload{}
		}
		v = p
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", ev.Kind, err)
	}
	return string(data), nil
}

func decodePayload(ev *model.GenerationEvent, payload string) error {
	switch ev.Kind {
	case model.KindTestCaseGeneration:
		ev.TestCase = &model.TestCasePayload{}
		if err := json.Unmarshal([]byte(payload), ev.TestCase); err != nil {
			return fmt.Errorf("event %s: decoding payload: %w", ev.ID, err)
		}
	case model.KindBugReportGeneration:
		ev.BugReport = &model.BugReportPayload{}
		if err := json.Unmarshal([]byte(payload), ev.BugReport); err != nil {
			return fmt.Errorf("event %s: decoding payload: %w", ev.ID, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
