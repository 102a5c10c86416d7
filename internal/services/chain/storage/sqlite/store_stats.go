package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gravemark/ink/internal/services/chain/domain/stats"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

// ListPendingStatEvents lists unapplied stat events oldest-first.
func (s *Store) ListPendingStatEvents(ctx context.Context, limit int) ([]stats.Event, error) {
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
SELECT key, user_id, kind, value
FROM stat_events
WHERE applied = 0
ORDER BY created_at ASC, key ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending stat events: %w", err)
	}
	defer rows.Close()

	events := make([]stats.Event, 0, limit)
	for rows.Next() {
		var event stats.Event
		var kind string
		if err := rows.Scan(&event.Key, &event.UserID, &kind, &event.Value); err != nil {
			return nil, fmt.Errorf("scan stat event: %w", err)
		}
		event.Kind = stats.Kind(kind)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stat events: %w", err)
	}
	return events, nil
}

// ApplyStatEvent folds one outbox event into its user's counters and marks
// it applied in the same transaction. Re-applying an already-applied event
// is a no-op, so redelivery cannot double-count.
func (s *Store) ApplyStatEvent(ctx context.Context, event stats.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := stats.Validate(event); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start apply stat transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
UPDATE stat_events
SET applied = 1, applied_at = ?
WHERE key = ? AND applied = 0
`, toMillis(now), event.Key)
	if err != nil {
		return fmt.Errorf("mark stat event %s applied: %w", event.Key, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply stat rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var found int
		row := tx.QueryRowContext(ctx, "SELECT 1 FROM stat_events WHERE key = ?", event.Key)
		if scanErr := row.Scan(&found); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("check stat event %s: %w", event.Key, scanErr)
		}
		// Already applied by an earlier delivery.
		return nil
	}

	if err := foldStatEvent(ctx, tx, event, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply stat transaction: %w", err)
	}
	return nil
}

// GetUserStats returns the derived counters for one writer. A writer with no
// recorded events has all-zero counters.
func (s *Store) GetUserStats(ctx context.Context, userID string) (stats.UserStats, error) {
	if err := ctx.Err(); err != nil {
		return stats.UserStats{}, err
	}
	if err := s.ready(); err != nil {
		return stats.UserStats{}, err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return stats.UserStats{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	chains_started,
	chains_contributed,
	chains_completed,
	chains_broken,
	total_chapters_written,
	total_words_in_chains,
	invitations_sent,
	invitations_received,
	invitations_accepted,
	longest_chain,
	highest_curse_level
FROM user_stats
WHERE user_id = ?
`, userID)

	record := stats.UserStats{UserID: userID}
	err := row.Scan(
		&record.ChainsStarted,
		&record.ChainsContributed,
		&record.ChainsCompleted,
		&record.ChainsBroken,
		&record.TotalChaptersWritten,
		&record.TotalWordsInChains,
		&record.InvitationsSent,
		&record.InvitationsReceived,
		&record.InvitationsAccepted,
		&record.LongestChain,
		&record.HighestCurseLevel,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stats.UserStats{UserID: userID}, nil
		}
		return stats.UserStats{}, fmt.Errorf("get user stats %s: %w", userID, err)
	}
	return record, nil
}

// foldStatEvent upserts one counter column. Sum kinds accumulate; high water
// kinds only ever raise the stored value. Unknown kinds are consumed without
// folding so old processes drain newer writers' events safely.
func foldStatEvent(ctx context.Context, tx *sql.Tx, event stats.Event, now time.Time) error {
	column, ok := statColumn(event.Kind)
	if !ok {
		return nil
	}

	assignment := column + " = " + column + " + excluded." + column
	if event.Kind.IsHighWater() {
		assignment = column + " = MAX(" + column + ", excluded." + column + ")"
	}

	query := `
INSERT INTO user_stats (user_id, ` + column + `, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	` + assignment + `,
	updated_at = excluded.updated_at
`
	if _, err := tx.ExecContext(ctx, query, event.UserID, event.Value, toMillis(now)); err != nil {
		return fmt.Errorf("fold stat event %s: %w", event.Key, err)
	}
	return nil
}

func statColumn(kind stats.Kind) (string, bool) {
	switch kind {
	case stats.KindChainStarted:
		return "chains_started", true
	case stats.KindChainContributed:
		return "chains_contributed", true
	case stats.KindChainCompleted:
		return "chains_completed", true
	case stats.KindChainBroken:
		return "chains_broken", true
	case stats.KindChapterWritten:
		return "total_chapters_written", true
	case stats.KindWordsWritten:
		return "total_words_in_chains", true
	case stats.KindInvitationSent:
		return "invitations_sent", true
	case stats.KindInvitationReceived:
		return "invitations_received", true
	case stats.KindInvitationAccepted:
		return "invitations_accepted", true
	case stats.KindLongestChain:
		return "longest_chain", true
	case stats.KindHighestCurse:
		return "highest_curse_level", true
	default:
		return "", false
	}
}
