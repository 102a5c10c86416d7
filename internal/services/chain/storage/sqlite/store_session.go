package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gravemark/ink/internal/services/chain/domain/session"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

// CreateSession inserts a new session at version 1.
func (s *Store) CreateSession(ctx context.Context, sess session.Session) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.SessionRecord{}, err
	}
	if strings.TrimSpace(sess.ID) == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}

	body, err := json.Marshal(sess)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("encode session %s: %w", sess.ID, err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (
	id,
	status,
	body,
	version,
	updated_at
) VALUES (?, ?, ?, 1, ?)
`,
		sess.ID,
		session.StatusLabel(sess.Status),
		string(body),
		toMillis(time.Now().UTC()),
	)
	if err != nil {
		if isUniqueViolation(err, "sessions.id") {
			return storage.SessionRecord{}, fmt.Errorf("session %s already exists", sess.ID)
		}
		return storage.SessionRecord{}, fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return storage.SessionRecord{Session: sess, Version: 1}, nil
}

// GetSession returns one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.SessionRecord{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT body, version
FROM sessions
WHERE id = ?
`, id)
	record, err := scanSessionRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return record, nil
}

// UpdateSession replaces a session only if the stored version still equals
// expectedVersion.
func (s *Store) UpdateSession(ctx context.Context, sess session.Session, expectedVersion int64) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.SessionRecord{}, err
	}
	if strings.TrimSpace(sess.ID) == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}
	if expectedVersion <= 0 {
		return storage.SessionRecord{}, fmt.Errorf("expected version must be greater than zero")
	}

	body, err := json.Marshal(sess)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("encode session %s: %w", sess.ID, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("start update session transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
UPDATE sessions
SET
	status = ?,
	body = ?,
	version = version + 1,
	updated_at = ?
WHERE id = ? AND version = ?
`,
		session.StatusLabel(sess.Status),
		string(body),
		toMillis(time.Now().UTC()),
		sess.ID,
		expectedVersion,
	)
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("update session rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.SessionRecord{}, s.classifyMissedWrite(ctx, tx, "sessions", sess.ID)
	}
	if err := tx.Commit(); err != nil {
		return storage.SessionRecord{}, fmt.Errorf("commit update session transaction: %w", err)
	}
	return storage.SessionRecord{Session: sess, Version: expectedVersion + 1}, nil
}

// ListActiveSessions lists active sessions oldest-first so the timeout sweep
// visits long-idle sessions before fresh ones.
func (s *Store) ListActiveSessions(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT body, version
FROM sessions
WHERE status = ?
ORDER BY updated_at ASC, id ASC
LIMIT ?
`,
		session.StatusLabel(session.StatusActive),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	records := make([]storage.SessionRecord, 0, limit)
	for rows.Next() {
		record, err := scanSessionRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan active session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active sessions: %w", err)
	}
	return records, nil
}

func scanSessionRecord(scan func(...any) error) (storage.SessionRecord, error) {
	var body string
	var version int64
	if err := scan(&body, &version); err != nil {
		return storage.SessionRecord{}, err
	}
	var sess session.Session
	if err := json.Unmarshal([]byte(body), &sess); err != nil {
		return storage.SessionRecord{}, fmt.Errorf("decode session body: %w", err)
	}
	return storage.SessionRecord{Session: sess, Version: version}, nil
}
