package app

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/platform/id"
	"github.com/gravemark/ink/internal/services/chain/domain/invitation"
	"github.com/gravemark/ink/internal/services/chain/domain/stats"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

// InvitationService owns custody handoff offers.
type InvitationService struct {
	store       storage.Store
	clock       func() time.Time
	idGenerator func() (string, error)
	notifier    *Notifier
}

// NewInvitationService wires an invitation service.
func NewInvitationService(store storage.Store, clock func() time.Time, idGenerator func() (string, error), notifier *Notifier) *InvitationService {
	if clock == nil {
		clock = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &InvitationService{
		store:       store,
		clock:       clock,
		idGenerator: idGenerator,
		notifier:    notifier,
	}
}

// CreateInvitation offers custody of a chain to another writer, snapshotting
// the chain's current shape into the offer. Only the current holder may
// extend the offer, and a recipient holds at most one pending offer per
// chain.
func (s *InvitationService) CreateInvitation(ctx context.Context, chainID, fromUserID, toUserID string) (storage.InvitationRecord, error) {
	record, err := s.store.GetChain(ctx, chainID)
	if err != nil {
		return storage.InvitationRecord{}, err
	}
	if record.Chain.Status.IsTerminal() {
		return storage.InvitationRecord{}, apperrors.New(apperrors.CodeAlreadyTerminal, "chain is no longer active")
	}
	if fromUserID != record.Chain.CurrentHolderID {
		return storage.InvitationRecord{}, apperrors.New(apperrors.CodeNotHolder, "only the current holder may invite")
	}

	invite, err := invitation.Create(invitation.CreateInput{
		ChainID:      chainID,
		FromUserID:   fromUserID,
		ToUserID:     toUserID,
		ChapterCount: record.Chain.ChainLength,
		LastChapter:  lastChapterContent(record.Chain),
	}, s.clock, s.idGenerator)
	if err != nil {
		return storage.InvitationRecord{}, err
	}

	events := []stats.Event{
		stats.NewEvent(stats.KindInvitationSent, invite.ID, invite.FromUserID, 1),
		stats.NewEvent(stats.KindInvitationReceived, invite.ID, invite.ToUserID, 1),
	}
	return s.store.CreateInvitation(ctx, invite, events)
}

// GetInvitation returns one invitation by id.
func (s *InvitationService) GetInvitation(ctx context.Context, invitationID string) (storage.InvitationRecord, error) {
	return s.store.GetInvitation(ctx, invitationID)
}

// ListPendingInvitations lists a recipient's open offers.
func (s *InvitationService) ListPendingInvitations(ctx context.Context, toUserID string, limit int) ([]storage.InvitationRecord, error) {
	return s.store.ListPendingInvitations(ctx, toUserID, limit)
}

// AcceptInvitation takes custody of the chain. The invitation response and
// the custody transfer commit in one transaction; no reader sees one without
// the other.
func (s *InvitationService) AcceptInvitation(ctx context.Context, invitationID, asUserID string) (storage.InvitationRecord, error) {
	record, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return storage.InvitationRecord{}, err
	}

	accepted, err := record.Invitation.Accept(asUserID, s.clock)
	if err != nil {
		return storage.InvitationRecord{}, err
	}

	chainRecord, err := s.store.GetChain(ctx, accepted.ChainID)
	if err != nil {
		return storage.InvitationRecord{}, err
	}
	transferred, err := chainRecord.Chain.PassTo(chainRecord.Chain.CurrentHolderID, accepted.ToUserID, s.clock)
	if err != nil {
		return storage.InvitationRecord{}, err
	}

	events := []stats.Event{
		stats.NewEvent(stats.KindInvitationAccepted, accepted.ID, accepted.ToUserID, 1),
		stats.NewEvent(stats.KindChainContributed, accepted.ChainID, accepted.ToUserID, 1),
	}
	if err := s.store.AcceptInvitation(ctx, accepted, record.Version, transferred, chainRecord.Version, events); err != nil {
		return storage.InvitationRecord{}, err
	}

	s.notifier.Notify(accepted.ChainID)
	return storage.InvitationRecord{Invitation: accepted, Version: record.Version + 1}, nil
}

// DeclineInvitation refuses the offer. The chain is untouched.
func (s *InvitationService) DeclineInvitation(ctx context.Context, invitationID, asUserID string) (storage.InvitationRecord, error) {
	record, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return storage.InvitationRecord{}, err
	}

	declined, err := record.Invitation.Decline(asUserID, s.clock)
	if err != nil {
		return storage.InvitationRecord{}, err
	}
	return s.store.UpdateInvitation(ctx, declined, record.Version, nil)
}

// SweepExpiredInvitations expires pending invitations past their window.
// Idempotent; a failure on one invitation never blocks the rest.
func (s *InvitationService) SweepExpiredInvitations(ctx context.Context) (int, error) {
	records, err := s.store.ListExpiredInvitations(ctx, s.clock().UTC(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, record := range records {
		expired, err := record.Invitation.Expire(s.clock)
		if err != nil {
			continue
		}
		if _, err := s.store.UpdateInvitation(ctx, expired, record.Version, nil); err != nil {
			if errors.Is(err, storage.ErrConcurrentModification) || errors.Is(err, storage.ErrNotFound) {
				continue
			}
			log.Printf("sweep expire invitation %s: %v", record.Invitation.ID, err)
			continue
		}
		swept++
	}
	return swept, nil
}
