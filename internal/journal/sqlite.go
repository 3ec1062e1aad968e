// Package journal keeps an append-only audit trail of deliveries and login
// attempts in sqlite. The spool remains the authoritative message store; the
// journal only serves the admin API and operator forensics.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Journal struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Journal, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS deliveries (
            id TEXT PRIMARY KEY,
            sender TEXT NOT NULL,
            recipient TEXT NOT NULL,
            subject TEXT NOT NULL,
            message_id INTEGER NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS login_attempts (
            id TEXT PRIMARY KEY,
            remote_addr TEXT NOT NULL,
            username TEXT NOT NULL,
            outcome TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_recipient ON deliveries(recipient, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_created ON deliveries(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_logins_username ON login_attempts(username, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_logins_created ON login_attempts(created_at);`,
	}

	for _, statement := range statements {
		if _, err := j.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (j *Journal) RecordDelivery(ctx context.Context, delivery Delivery) error {
	_, err := j.db.ExecContext(ctx, `INSERT INTO deliveries
        (id, sender, recipient, subject, message_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?);`,
		delivery.ID,
		delivery.Sender,
		delivery.Recipient,
		delivery.Subject,
		delivery.MessageID,
		delivery.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

func (j *Journal) RecordLogin(ctx context.Context, attempt LoginAttempt) error {
	_, err := j.db.ExecContext(ctx, `INSERT INTO login_attempts
        (id, remote_addr, username, outcome, created_at)
        VALUES (?, ?, ?, ?, ?);`,
		attempt.ID,
		attempt.RemoteAddr,
		attempt.Username,
		attempt.Outcome,
		attempt.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// ListDeliveries pages through recorded deliveries, newest first unless sort
// asks for the oldest. An empty recipient lists everyone's.
func (j *Journal) ListDeliveries(ctx context.Context, recipient, sort string, offset, limit int32) ([]Delivery, int32, error) {
	whereQuery := ""
	args := []any{}
	if recipient != "" {
		whereQuery = " WHERE recipient = ?"
		args = append(args, recipient)
	}

	var totalCount int64
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM deliveries"+whereQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("count deliveries: %w", err)
	}

	listQuery := "SELECT id, sender, recipient, subject, message_id, created_at FROM deliveries" +
		whereQuery + orderClause(sort) + " LIMIT ? OFFSET ?"
	args = append(args, normalizeLimit(limit), max32(offset, 0))

	rows, err := j.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var delivery Delivery
		var createdAt int64
		if err := rows.Scan(
			&delivery.ID,
			&delivery.Sender,
			&delivery.Recipient,
			&delivery.Subject,
			&delivery.MessageID,
			&createdAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan delivery: %w", err)
		}
		delivery.CreatedAt = time.Unix(createdAt, 0)
		deliveries = append(deliveries, delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}
	return deliveries, clampCount(totalCount), nil
}

// ListLogins pages through recorded login attempts. An empty username lists
// every user's.
func (j *Journal) ListLogins(ctx context.Context, username, sort string, offset, limit int32) ([]LoginAttempt, int32, error) {
	whereQuery := ""
	args := []any{}
	if username != "" {
		whereQuery = " WHERE username = ?"
		args = append(args, username)
	}

	var totalCount int64
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM login_attempts"+whereQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("count logins: %w", err)
	}

	listQuery := "SELECT id, remote_addr, username, outcome, created_at FROM login_attempts" +
		whereQuery + orderClause(sort) + " LIMIT ? OFFSET ?"
	args = append(args, normalizeLimit(limit), max32(offset, 0))

	rows, err := j.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list logins: %w", err)
	}
	defer rows.Close()

	var attempts []LoginAttempt
	for rows.Next() {
		var attempt LoginAttempt
		var createdAt int64
		if err := rows.Scan(
			&attempt.ID,
			&attempt.RemoteAddr,
			&attempt.Username,
			&attempt.Outcome,
			&createdAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan login: %w", err)
		}
		attempt.CreatedAt = time.Unix(createdAt, 0)
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list logins: %w", err)
	}
	return attempts, clampCount(totalCount), nil
}

func orderClause(sort string) string {
	switch sort {
	case "oldest", "asc":
		return " ORDER BY created_at ASC, id ASC"
	default:
		return " ORDER BY created_at DESC, id DESC"
	}
}

func normalizeLimit(limit int32) int32 {
	if limit <= 0 {
		return 10
	}
	return limit
}

func max32(v, floor int32) int32 {
	if v < floor {
		return floor
	}
	return v
}

func clampCount(count int64) int32 {
	if count < 0 {
		return 0
	}
	if count > int64(^uint32(0)>>1) {
		return int32(^uint32(0) >> 1)
	}
	return int32(count)
}
