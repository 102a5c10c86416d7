package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gravemark/ink/internal/services/chain/domain/chain"
	"github.com/gravemark/ink/internal/services/chain/domain/stats"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

// CreateChain inserts a new chain letter at version 1, enqueueing any stat
// events in the same transaction.
func (s *Store) CreateChain(ctx context.Context, letter chain.Letter, events []stats.Event) (storage.ChainRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ChainRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.ChainRecord{}, err
	}
	if strings.TrimSpace(letter.ID) == "" {
		return storage.ChainRecord{}, fmt.Errorf("chain id is required")
	}

	body, err := json.Marshal(letter)
	if err != nil {
		return storage.ChainRecord{}, fmt.Errorf("encode chain %s: %w", letter.ID, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.ChainRecord{}, fmt.Errorf("start create chain transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
INSERT INTO chains (
	id,
	status,
	current_holder_id,
	expires_at,
	body,
	version,
	updated_at
) VALUES (?, ?, ?, ?, ?, 1, ?)
`,
		letter.ID,
		chain.StatusLabel(letter.Status),
		letter.CurrentHolderID,
		toMillis(letter.ExpiresAt),
		string(body),
		toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err, "chains.id") {
			return storage.ChainRecord{}, fmt.Errorf("chain %s already exists", letter.ID)
		}
		return storage.ChainRecord{}, fmt.Errorf("insert chain %s: %w", letter.ID, err)
	}

	if err := insertStatEvents(ctx, tx, events, now); err != nil {
		return storage.ChainRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.ChainRecord{}, fmt.Errorf("commit create chain transaction: %w", err)
	}
	return storage.ChainRecord{Chain: letter, Version: 1}, nil
}

// GetChain returns one chain letter by id.
func (s *Store) GetChain(ctx context.Context, id string) (storage.ChainRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ChainRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.ChainRecord{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return storage.ChainRecord{}, fmt.Errorf("chain id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT body, version
FROM chains
WHERE id = ?
`, id)
	record, err := scanChainRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ChainRecord{}, storage.ErrNotFound
		}
		return storage.ChainRecord{}, fmt.Errorf("get chain %s: %w", id, err)
	}
	return record, nil
}

// UpdateChain replaces a chain letter only if the stored version still equals
// expectedVersion. A version miss returns ErrConcurrentModification; a
// missing row returns ErrNotFound. Stat events commit atomically with the
// mutation.
func (s *Store) UpdateChain(ctx context.Context, letter chain.Letter, expectedVersion int64, events []stats.Event) (storage.ChainRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ChainRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.ChainRecord{}, err
	}
	if strings.TrimSpace(letter.ID) == "" {
		return storage.ChainRecord{}, fmt.Errorf("chain id is required")
	}
	if expectedVersion <= 0 {
		return storage.ChainRecord{}, fmt.Errorf("expected version must be greater than zero")
	}

	body, err := json.Marshal(letter)
	if err != nil {
		return storage.ChainRecord{}, fmt.Errorf("encode chain %s: %w", letter.ID, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.ChainRecord{}, fmt.Errorf("start update chain transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
UPDATE chains
SET
	status = ?,
	current_holder_id = ?,
	expires_at = ?,
	body = ?,
	version = version + 1,
	updated_at = ?
WHERE id = ? AND version = ?
`,
		chain.StatusLabel(letter.Status),
		letter.CurrentHolderID,
		toMillis(letter.ExpiresAt),
		string(body),
		toMillis(now),
		letter.ID,
		expectedVersion,
	)
	if err != nil {
		return storage.ChainRecord{}, fmt.Errorf("update chain %s: %w", letter.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storage.ChainRecord{}, fmt.Errorf("update chain rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ChainRecord{}, s.classifyMissedWrite(ctx, tx, "chains", letter.ID)
	}

	if err := insertStatEvents(ctx, tx, events, now); err != nil {
		return storage.ChainRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.ChainRecord{}, fmt.Errorf("commit update chain transaction: %w", err)
	}
	return storage.ChainRecord{Chain: letter, Version: expectedVersion + 1}, nil
}

// ListChains lists chains newest-first, optionally narrowed by status and
// current holder.
func (s *Store) ListChains(ctx context.Context, filter storage.ChainFilter) ([]storage.ChainRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	conditions := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filter.Status != chain.StatusUnspecified {
		conditions = append(conditions, "status = ?")
		args = append(args, chain.StatusLabel(filter.Status))
	}
	if holder := strings.TrimSpace(filter.HolderID); holder != "" {
		conditions = append(conditions, "current_holder_id = ?")
		args = append(args, holder)
	}
	query := "SELECT body, version FROM chains"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	defer rows.Close()

	records := make([]storage.ChainRecord, 0, limit)
	for rows.Next() {
		record, err := scanChainRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan chain: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chains: %w", err)
	}
	return records, nil
}

// ListExpiredChains lists active chains whose custody window lapsed before
// now, oldest deadline first.
func (s *Store) ListExpiredChains(ctx context.Context, now time.Time, limit int) ([]storage.ChainRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT body, version
FROM chains
WHERE status = ? AND expires_at < ?
ORDER BY expires_at ASC, id ASC
LIMIT ?
`,
		chain.StatusLabel(chain.StatusActive),
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired chains: %w", err)
	}
	defer rows.Close()

	records := make([]storage.ChainRecord, 0, limit)
	for rows.Next() {
		record, err := scanChainRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan expired chain: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired chains: %w", err)
	}
	return records, nil
}

// classifyMissedWrite distinguishes a missing row from a version conflict
// after a guarded update touched zero rows.
func (s *Store) classifyMissedWrite(ctx context.Context, tx *sql.Tx, table, id string) error {
	var found int
	row := tx.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("classify missed write on %s: %w", table, err)
	}
	return storage.ErrConcurrentModification
}

func scanChainRecord(scan func(...any) error) (storage.ChainRecord, error) {
	var body string
	var version int64
	if err := scan(&body, &version); err != nil {
		return storage.ChainRecord{}, err
	}
	var letter chain.Letter
	if err := json.Unmarshal([]byte(body), &letter); err != nil {
		return storage.ChainRecord{}, fmt.Errorf("decode chain body: %w", err)
	}
	return storage.ChainRecord{Chain: letter, Version: version}, nil
}
