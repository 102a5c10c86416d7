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
	"github.com/gravemark/ink/internal/services/chain/domain/invitation"
	"github.com/gravemark/ink/internal/services/chain/domain/stats"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

// CreateInvitation inserts an invitation at version 1. A partial unique
// index keeps at most one pending invitation per (chain, recipient) pair;
// hitting it surfaces as ErrPendingInvitationExists.
func (s *Store) CreateInvitation(ctx context.Context, invite invitation.Invitation, events []stats.Event) (storage.InvitationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InvitationRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.InvitationRecord{}, err
	}
	if strings.TrimSpace(invite.ID) == "" {
		return storage.InvitationRecord{}, fmt.Errorf("invitation id is required")
	}

	body, err := json.Marshal(invite)
	if err != nil {
		return storage.InvitationRecord{}, fmt.Errorf("encode invitation %s: %w", invite.ID, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.InvitationRecord{}, fmt.Errorf("start create invitation transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
INSERT INTO invitations (
	id,
	chain_id,
	to_user_id,
	status,
	expires_at,
	body,
	version,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, 1, ?)
`,
		invite.ID,
		invite.ChainID,
		invite.ToUserID,
		invitation.StatusLabel(invite.Status),
		toMillis(invite.ExpiresAt),
		string(body),
		toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err, "invitations") {
			return storage.InvitationRecord{}, storage.ErrPendingInvitationExists
		}
		return storage.InvitationRecord{}, fmt.Errorf("insert invitation %s: %w", invite.ID, err)
	}

	if err := insertStatEvents(ctx, tx, events, now); err != nil {
		return storage.InvitationRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.InvitationRecord{}, fmt.Errorf("commit create invitation transaction: %w", err)
	}
	return storage.InvitationRecord{Invitation: invite, Version: 1}, nil
}

// GetInvitation returns one invitation by id.
func (s *Store) GetInvitation(ctx context.Context, id string) (storage.InvitationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InvitationRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.InvitationRecord{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return storage.InvitationRecord{}, fmt.Errorf("invitation id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT body, version
FROM invitations
WHERE id = ?
`, id)
	record, err := scanInvitationRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.InvitationRecord{}, storage.ErrNotFound
		}
		return storage.InvitationRecord{}, fmt.Errorf("get invitation %s: %w", id, err)
	}
	return record, nil
}

// UpdateInvitation replaces an invitation only if the stored version still
// equals expectedVersion.
func (s *Store) UpdateInvitation(ctx context.Context, invite invitation.Invitation, expectedVersion int64, events []stats.Event) (storage.InvitationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InvitationRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.InvitationRecord{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.InvitationRecord{}, fmt.Errorf("start update invitation transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	if err := updateInvitationTx(ctx, tx, invite, expectedVersion, now, s); err != nil {
		return storage.InvitationRecord{}, err
	}
	if err := insertStatEvents(ctx, tx, events, now); err != nil {
		return storage.InvitationRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.InvitationRecord{}, fmt.Errorf("commit update invitation transaction: %w", err)
	}
	return storage.InvitationRecord{Invitation: invite, Version: expectedVersion + 1}, nil
}

// AcceptInvitation commits the accepted invitation and the custody transfer
// in one transaction. Both guarded writes must land; a miss on either rolls
// the whole acceptance back.
func (s *Store) AcceptInvitation(ctx context.Context, invite invitation.Invitation, inviteVersion int64, letter chain.Letter, chainVersion int64, events []stats.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	chainBody, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("encode chain %s: %w", letter.ID, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start accept invitation transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	if err := updateInvitationTx(ctx, tx, invite, inviteVersion, now, s); err != nil {
		return err
	}

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
		string(chainBody),
		toMillis(now),
		letter.ID,
		chainVersion,
	)
	if err != nil {
		return fmt.Errorf("transfer custody for chain %s: %w", letter.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transfer custody rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return s.classifyMissedWrite(ctx, tx, "chains", letter.ID)
	}

	if err := insertStatEvents(ctx, tx, events, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accept invitation transaction: %w", err)
	}
	return nil
}

// ListPendingInvitations lists a recipient's pending invitations, soonest to
// expire first.
func (s *Store) ListPendingInvitations(ctx context.Context, toUserID string, limit int) ([]storage.InvitationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" {
		return nil, fmt.Errorf("recipient id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT body, version
FROM invitations
WHERE to_user_id = ? AND status = ?
ORDER BY expires_at ASC, id ASC
LIMIT ?
`,
		toUserID,
		invitation.StatusLabel(invitation.StatusPending),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	defer rows.Close()

	records := make([]storage.InvitationRecord, 0, limit)
	for rows.Next() {
		record, err := scanInvitationRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan pending invitation: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending invitations: %w", err)
	}
	return records, nil
}

// ListExpiredInvitations lists pending invitations whose window lapsed
// before now.
func (s *Store) ListExpiredInvitations(ctx context.Context, now time.Time, limit int) ([]storage.InvitationRecord, error) {
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
FROM invitations
WHERE status = ? AND expires_at < ?
ORDER BY expires_at ASC, id ASC
LIMIT ?
`,
		invitation.StatusLabel(invitation.StatusPending),
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired invitations: %w", err)
	}
	defer rows.Close()

	records := make([]storage.InvitationRecord, 0, limit)
	for rows.Next() {
		record, err := scanInvitationRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan expired invitation: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired invitations: %w", err)
	}
	return records, nil
}

func updateInvitationTx(ctx context.Context, tx *sql.Tx, invite invitation.Invitation, expectedVersion int64, now time.Time, s *Store) error {
	if strings.TrimSpace(invite.ID) == "" {
		return fmt.Errorf("invitation id is required")
	}
	if expectedVersion <= 0 {
		return fmt.Errorf("expected version must be greater than zero")
	}

	body, err := json.Marshal(invite)
	if err != nil {
		return fmt.Errorf("encode invitation %s: %w", invite.ID, err)
	}

	result, err := tx.ExecContext(ctx, `
UPDATE invitations
SET
	status = ?,
	expires_at = ?,
	body = ?,
	version = version + 1,
	updated_at = ?
WHERE id = ? AND version = ?
`,
		invitation.StatusLabel(invite.Status),
		toMillis(invite.ExpiresAt),
		string(body),
		toMillis(now),
		invite.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update invitation %s: %w", invite.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invitation rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return s.classifyMissedWrite(ctx, tx, "invitations", invite.ID)
	}
	return nil
}

func scanInvitationRecord(scan func(...any) error) (storage.InvitationRecord, error) {
	var body string
	var version int64
	if err := scan(&body, &version); err != nil {
		return storage.InvitationRecord{}, err
	}
	var invite invitation.Invitation
	if err := json.Unmarshal([]byte(body), &invite); err != nil {
		return storage.InvitationRecord{}, fmt.Errorf("decode invitation body: %w", err)
	}
	return storage.InvitationRecord{Invitation: invite, Version: version}, nil
}
