// Package app coordinates the chain custody engine: domain mutations applied
// through versioned store writes, sweeps, derived stats, and change
// notifications.
package app

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/platform/id"
	"github.com/gravemark/ink/internal/services/chain/domain/chain"
	"github.com/gravemark/ink/internal/services/chain/domain/invitation"
	"github.com/gravemark/ink/internal/services/chain/domain/stats"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

const sweepBatchSize = 100

// CustodyService owns the asynchronous chain letter lifecycle.
type CustodyService struct {
	store       storage.Store
	clock       func() time.Time
	idGenerator func() (string, error)
	notifier    *Notifier
}

// NewCustodyService wires a custody service. A nil clock or id generator
// selects the defaults; a nil notifier disables change notifications.
func NewCustodyService(store storage.Store, clock func() time.Time, idGenerator func() (string, error), notifier *Notifier) *CustodyService {
	if clock == nil {
		clock = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &CustodyService{
		store:       store,
		clock:       clock,
		idGenerator: idGenerator,
		notifier:    notifier,
	}
}

// StartChain creates a chain letter with its first chapter.
func (s *CustodyService) StartChain(ctx context.Context, input chain.StartChainInput) (storage.ChainRecord, error) {
	letter, err := chain.StartChain(input, s.clock, s.idGenerator)
	if err != nil {
		return storage.ChainRecord{}, err
	}

	first := letter.Chapters[0]
	events := []stats.Event{
		stats.NewEvent(stats.KindChainStarted, letter.ID, letter.OriginatorID, 1),
		stats.NewEvent(stats.KindChainContributed, letter.ID, letter.OriginatorID, 1),
	}
	events = append(events, chapterEvents(letter, first)...)

	record, err := s.store.CreateChain(ctx, letter, events)
	if err != nil {
		return storage.ChainRecord{}, err
	}
	s.notifier.Notify(letter.ID)
	return record, nil
}

// GetChain returns one chain letter with its chapters.
func (s *CustodyService) GetChain(ctx context.Context, chainID string) (storage.ChainRecord, error) {
	return s.store.GetChain(ctx, chainID)
}

// ListChains lists chains, optionally narrowed by status and holder.
func (s *CustodyService) ListChains(ctx context.Context, filter storage.ChainFilter) ([]storage.ChainRecord, error) {
	return s.store.ListChains(ctx, filter)
}

// AddChapter appends a chapter written by the current holder. A losing race
// against another writer surfaces as ConcurrentModification; the caller
// re-reads and retries.
func (s *CustodyService) AddChapter(ctx context.Context, chainID string, input chain.ChapterInput) (storage.ChainRecord, chain.Chapter, error) {
	record, err := s.store.GetChain(ctx, chainID)
	if err != nil {
		return storage.ChainRecord{}, chain.Chapter{}, err
	}

	updated, chapter, err := record.Chain.AppendChapter(input, s.clock, s.idGenerator)
	if err != nil {
		return storage.ChainRecord{}, chain.Chapter{}, err
	}

	next, err := s.store.UpdateChain(ctx, updated, record.Version, chapterEvents(updated, chapter))
	if err != nil {
		return storage.ChainRecord{}, chain.Chapter{}, err
	}
	s.notifier.Notify(chainID)
	return next, chapter, nil
}

// PassChain transfers custody immediately and records an already-accepted
// invitation as the audit trail of the handoff.
func (s *CustodyService) PassChain(ctx context.Context, chainID, fromUserID, toUserID string) (storage.ChainRecord, error) {
	record, err := s.store.GetChain(ctx, chainID)
	if err != nil {
		return storage.ChainRecord{}, err
	}

	passedAt := s.clock().UTC()
	updated, err := record.Chain.PassTo(fromUserID, toUserID, s.clock)
	if err != nil {
		return storage.ChainRecord{}, err
	}

	events := []stats.Event{
		stats.NewEvent(stats.KindChainContributed, chainID, updated.CurrentHolderID, 1),
	}
	next, err := s.store.UpdateChain(ctx, updated, record.Version, events)
	if err != nil {
		return storage.ChainRecord{}, err
	}

	// Audit record of the handoff. Losing it does not undo the transfer, so
	// a failure here is logged rather than returned.
	if audit, err := invitation.Create(invitation.CreateInput{
		ChainID:      chainID,
		FromUserID:   record.Chain.CurrentHolderID,
		ToUserID:     updated.CurrentHolderID,
		ChapterCount: updated.ChainLength,
		LastChapter:  lastChapterContent(updated),
	}, s.clock, s.idGenerator); err == nil {
		accepted := audit
		accepted.Status = invitation.StatusAccepted
		accepted.RespondedAt = &passedAt
		auditEvents := []stats.Event{
			stats.NewEvent(stats.KindInvitationSent, accepted.ID, accepted.FromUserID, 1),
			stats.NewEvent(stats.KindInvitationReceived, accepted.ID, accepted.ToUserID, 1),
		}
		if _, err := s.store.CreateInvitation(ctx, accepted, auditEvents); err != nil && !errors.Is(err, storage.ErrPendingInvitationExists) {
			log.Printf("record pass audit for chain %s: %v", chainID, err)
		}
	}

	s.notifier.Notify(chainID)
	return next, nil
}

// CompleteChain appends the final chapter and marks the chain completed.
// Every writer on the cursed list is credited with the completion.
func (s *CustodyService) CompleteChain(ctx context.Context, chainID string, input chain.ChapterInput) (storage.ChainRecord, error) {
	record, err := s.store.GetChain(ctx, chainID)
	if err != nil {
		return storage.ChainRecord{}, err
	}

	withFinal, chapter, err := record.Chain.AppendChapter(input, s.clock, s.idGenerator)
	if err != nil {
		return storage.ChainRecord{}, err
	}
	completed, err := withFinal.Complete(s.clock)
	if err != nil {
		return storage.ChainRecord{}, err
	}

	events := chapterEvents(completed, chapter)
	for _, userID := range completed.CursedBy {
		events = append(events, stats.NewEvent(stats.KindChainCompleted, chainID, userID, 1))
	}

	next, err := s.store.UpdateChain(ctx, completed, record.Version, events)
	if err != nil {
		return storage.ChainRecord{}, err
	}
	s.notifier.Notify(chainID)
	return next, nil
}

// BreakChain marks the chain broken by the given user. Any participant may
// break a chain they received; refusing to continue is the point.
func (s *CustodyService) BreakChain(ctx context.Context, chainID, byUserID string) (storage.ChainRecord, error) {
	record, err := s.store.GetChain(ctx, chainID)
	if err != nil {
		return storage.ChainRecord{}, err
	}
	if byUserID != record.Chain.CurrentHolderID {
		return storage.ChainRecord{}, apperrors.New(apperrors.CodeNotHolder, "only the current holder may break the chain")
	}

	broken, err := record.Chain.Break(s.clock)
	if err != nil {
		return storage.ChainRecord{}, err
	}

	events := []stats.Event{
		stats.NewEvent(stats.KindChainBroken, chainID, byUserID, 1),
	}
	next, err := s.store.UpdateChain(ctx, broken, record.Version, events)
	if err != nil {
		return storage.ChainRecord{}, err
	}
	s.notifier.Notify(chainID)
	return next, nil
}

// SweepExpiredChains expires active chains whose custody window lapsed. Each
// record transitions under its own version guard, so the sweep is idempotent
// and safe alongside concurrent mutations; a failure on one chain never
// blocks the rest.
func (s *CustodyService) SweepExpiredChains(ctx context.Context) (int, error) {
	records, err := s.store.ListExpiredChains(ctx, s.clock().UTC(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, record := range records {
		expired, err := record.Chain.Expire(s.clock)
		if err != nil {
			// Already terminal; another sweep got there first.
			continue
		}
		if _, err := s.store.UpdateChain(ctx, expired, record.Version, nil); err != nil {
			if errors.Is(err, storage.ErrConcurrentModification) || errors.Is(err, storage.ErrNotFound) {
				continue
			}
			log.Printf("sweep expire chain %s: %v", record.Chain.ID, err)
			continue
		}
		s.notifier.Notify(record.Chain.ID)
		swept++
	}
	return swept, nil
}

// chapterEvents derives the stat events for one appended chapter. The chain
// length and curse level ride on the chapter's identity, so each append emits
// fresh high-water events while redelivery stays idempotent.
func chapterEvents(letter chain.Letter, chapter chain.Chapter) []stats.Event {
	return []stats.Event{
		stats.NewEvent(stats.KindChapterWritten, chapter.ID, chapter.AuthorID, 1),
		stats.NewEvent(stats.KindWordsWritten, chapter.ID, chapter.AuthorID, chapter.WordCount),
		stats.NewEvent(stats.KindLongestChain, chapter.ID, chapter.AuthorID, letter.ChainLength),
		stats.NewEvent(stats.KindHighestCurse, chapter.ID, chapter.AuthorID, letter.CurseLevel),
	}
}

func lastChapterContent(letter chain.Letter) string {
	if len(letter.Chapters) == 0 {
		return ""
	}
	return letter.Chapters[len(letter.Chapters)-1].Content
}
