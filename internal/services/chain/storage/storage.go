// Package storage defines the persistence contracts for the chain custody
// engine. Stores keep a version per record; mutations carry the version the
// caller read, and a mismatch means another writer got there first.
package storage

import (
	"context"
	"time"

	"github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/services/chain/domain/chain"
	"github.com/gravemark/ink/internal/services/chain/domain/invitation"
	"github.com/gravemark/ink/internal/services/chain/domain/session"
	"github.com/gravemark/ink/internal/services/chain/domain/stats"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrConcurrentModification indicates the record changed since the caller
// read it. Re-read and retry.
var ErrConcurrentModification = errors.New(errors.CodeConcurrentModification, "record was modified concurrently")

// ErrPendingInvitationExists indicates the recipient already holds a pending
// invitation for the chain.
var ErrPendingInvitationExists = errors.New(errors.CodeInvitationPendingExists, "a pending invitation already exists for this recipient")

// ChainRecord is a stored chain letter with its optimistic version.
type ChainRecord struct {
	Chain   chain.Letter
	Version int64
}

// InvitationRecord is a stored invitation with its optimistic version.
type InvitationRecord struct {
	Invitation invitation.Invitation
	Version    int64
}

// SessionRecord is a stored session with its optimistic version.
type SessionRecord struct {
	Session session.Session
	Version int64
}

// ChainFilter narrows chain listings. Zero values match everything.
type ChainFilter struct {
	Status   chain.Status
	HolderID string
	Limit    int
}

// ChainStore persists chain letters.
//
// UpdateChain applies only when the stored version equals expectedVersion;
// otherwise it returns ErrConcurrentModification and leaves the record
// untouched. Stat events ride in the same transaction as the mutation.
type ChainStore interface {
	CreateChain(ctx context.Context, letter chain.Letter, events []stats.Event) (ChainRecord, error)
	GetChain(ctx context.Context, id string) (ChainRecord, error)
	UpdateChain(ctx context.Context, letter chain.Letter, expectedVersion int64, events []stats.Event) (ChainRecord, error)
	ListChains(ctx context.Context, filter ChainFilter) ([]ChainRecord, error)
	ListExpiredChains(ctx context.Context, now time.Time, limit int) ([]ChainRecord, error)
}

// InvitationStore persists custody invitations.
//
// CreateInvitation enforces at most one pending invitation per (chain,
// recipient) pair and returns ErrPendingInvitationExists on a duplicate.
// AcceptInvitation commits the invitation response and the custody transfer
// in a single transaction; no reader observes one without the other.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, invite invitation.Invitation, events []stats.Event) (InvitationRecord, error)
	GetInvitation(ctx context.Context, id string) (InvitationRecord, error)
	UpdateInvitation(ctx context.Context, invite invitation.Invitation, expectedVersion int64, events []stats.Event) (InvitationRecord, error)
	AcceptInvitation(ctx context.Context, invite invitation.Invitation, inviteVersion int64, letter chain.Letter, chainVersion int64, events []stats.Event) error
	ListPendingInvitations(ctx context.Context, toUserID string, limit int) ([]InvitationRecord, error)
	ListExpiredInvitations(ctx context.Context, now time.Time, limit int) ([]InvitationRecord, error)
}

// SessionStore persists turn curse sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, sess session.Session) (SessionRecord, error)
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	UpdateSession(ctx context.Context, sess session.Session, expectedVersion int64) (SessionRecord, error)
	ListActiveSessions(ctx context.Context, limit int) ([]SessionRecord, error)
}

// StatsStore drains the stat event outbox into per-user counters.
//
// ApplyStatEvent folds one event into its user's counters and marks it
// applied in the same transaction; applying an already-applied event is a
// no-op, so at-least-once delivery cannot double-count.
type StatsStore interface {
	ListPendingStatEvents(ctx context.Context, limit int) ([]stats.Event, error)
	ApplyStatEvent(ctx context.Context, event stats.Event) error
	GetUserStats(ctx context.Context, userID string) (stats.UserStats, error)
}

// Store aggregates every persistence contract the engine needs.
type Store interface {
	ChainStore
	InvitationStore
	SessionStore
	StatsStore
}
