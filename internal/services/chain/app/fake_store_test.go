package app

import (
	"context"
	"sort"
	"time"

	"github.com/gravemark/ink/internal/services/chain/domain/chain"
	"github.com/gravemark/ink/internal/services/chain/domain/invitation"
	"github.com/gravemark/ink/internal/services/chain/domain/session"
	"github.com/gravemark/ink/internal/services/chain/domain/stats"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

// fakeStore is an in-memory storage.Store with the same version-guard
// semantics as the SQLite implementation.
type fakeStore struct {
	chains      map[string]storage.ChainRecord
	invitations map[string]storage.InvitationRecord
	sessions    map[string]storage.SessionRecord
	events      map[string]stats.Event
	applied     map[string]bool
	userStats   map[string]stats.UserStats

	failUpdateChain error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chains:      make(map[string]storage.ChainRecord),
		invitations: make(map[string]storage.InvitationRecord),
		sessions:    make(map[string]storage.SessionRecord),
		events:      make(map[string]stats.Event),
		applied:     make(map[string]bool),
		userStats:   make(map[string]stats.UserStats),
	}
}

func (f *fakeStore) enqueue(events []stats.Event) {
	for _, event := range events {
		if _, exists := f.events[event.Key]; !exists {
			f.events[event.Key] = event
		}
	}
}

func (f *fakeStore) CreateChain(_ context.Context, letter chain.Letter, events []stats.Event) (storage.ChainRecord, error) {
	record := storage.ChainRecord{Chain: letter, Version: 1}
	f.chains[letter.ID] = record
	f.enqueue(events)
	return record, nil
}

func (f *fakeStore) GetChain(_ context.Context, id string) (storage.ChainRecord, error) {
	record, ok := f.chains[id]
	if !ok {
		return storage.ChainRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) UpdateChain(_ context.Context, letter chain.Letter, expectedVersion int64, events []stats.Event) (storage.ChainRecord, error) {
	if f.failUpdateChain != nil {
		return storage.ChainRecord{}, f.failUpdateChain
	}
	current, ok := f.chains[letter.ID]
	if !ok {
		return storage.ChainRecord{}, storage.ErrNotFound
	}
	if current.Version != expectedVersion {
		return storage.ChainRecord{}, storage.ErrConcurrentModification
	}
	record := storage.ChainRecord{Chain: letter, Version: expectedVersion + 1}
	f.chains[letter.ID] = record
	f.enqueue(events)
	return record, nil
}

func (f *fakeStore) ListChains(_ context.Context, filter storage.ChainFilter) ([]storage.ChainRecord, error) {
	records := make([]storage.ChainRecord, 0, len(f.chains))
	for _, record := range f.chains {
		if filter.Status != chain.StatusUnspecified && record.Chain.Status != filter.Status {
			continue
		}
		if filter.HolderID != "" && record.Chain.CurrentHolderID != filter.HolderID {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Chain.ID < records[j].Chain.ID })
	return records, nil
}

func (f *fakeStore) ListExpiredChains(_ context.Context, now time.Time, _ int) ([]storage.ChainRecord, error) {
	var records []storage.ChainRecord
	for _, record := range f.chains {
		if record.Chain.Status == chain.StatusActive && record.Chain.ExpiresAt.Before(now) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Chain.ID < records[j].Chain.ID })
	return records, nil
}

func (f *fakeStore) CreateInvitation(_ context.Context, invite invitation.Invitation, events []stats.Event) (storage.InvitationRecord, error) {
	for _, existing := range f.invitations {
		if existing.Invitation.ChainID == invite.ChainID &&
			existing.Invitation.ToUserID == invite.ToUserID &&
			existing.Invitation.Status == invitation.StatusPending &&
			invite.Status == invitation.StatusPending {
			return storage.InvitationRecord{}, storage.ErrPendingInvitationExists
		}
	}
	record := storage.InvitationRecord{Invitation: invite, Version: 1}
	f.invitations[invite.ID] = record
	f.enqueue(events)
	return record, nil
}

func (f *fakeStore) GetInvitation(_ context.Context, id string) (storage.InvitationRecord, error) {
	record, ok := f.invitations[id]
	if !ok {
		return storage.InvitationRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) UpdateInvitation(_ context.Context, invite invitation.Invitation, expectedVersion int64, events []stats.Event) (storage.InvitationRecord, error) {
	current, ok := f.invitations[invite.ID]
	if !ok {
		return storage.InvitationRecord{}, storage.ErrNotFound
	}
	if current.Version != expectedVersion {
		return storage.InvitationRecord{}, storage.ErrConcurrentModification
	}
	record := storage.InvitationRecord{Invitation: invite, Version: expectedVersion + 1}
	f.invitations[invite.ID] = record
	f.enqueue(events)
	return record, nil
}

func (f *fakeStore) AcceptInvitation(_ context.Context, invite invitation.Invitation, inviteVersion int64, letter chain.Letter, chainVersion int64, events []stats.Event) error {
	currentInvite, ok := f.invitations[invite.ID]
	if !ok {
		return storage.ErrNotFound
	}
	currentChain, ok := f.chains[letter.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if currentInvite.Version != inviteVersion || currentChain.Version != chainVersion {
		return storage.ErrConcurrentModification
	}
	f.invitations[invite.ID] = storage.InvitationRecord{Invitation: invite, Version: inviteVersion + 1}
	f.chains[letter.ID] = storage.ChainRecord{Chain: letter, Version: chainVersion + 1}
	f.enqueue(events)
	return nil
}

func (f *fakeStore) ListPendingInvitations(_ context.Context, toUserID string, _ int) ([]storage.InvitationRecord, error) {
	var records []storage.InvitationRecord
	for _, record := range f.invitations {
		if record.Invitation.ToUserID == toUserID && record.Invitation.Status == invitation.StatusPending {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Invitation.ID < records[j].Invitation.ID })
	return records, nil
}

func (f *fakeStore) ListExpiredInvitations(_ context.Context, now time.Time, _ int) ([]storage.InvitationRecord, error) {
	var records []storage.InvitationRecord
	for _, record := range f.invitations {
		if record.Invitation.Status == invitation.StatusPending && record.Invitation.ExpiresAt.Before(now) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Invitation.ID < records[j].Invitation.ID })
	return records, nil
}

func (f *fakeStore) CreateSession(_ context.Context, sess session.Session) (storage.SessionRecord, error) {
	record := storage.SessionRecord{Session: sess, Version: 1}
	f.sessions[sess.ID] = record
	return record, nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (storage.SessionRecord, error) {
	record, ok := f.sessions[id]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, sess session.Session, expectedVersion int64) (storage.SessionRecord, error) {
	current, ok := f.sessions[sess.ID]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if current.Version != expectedVersion {
		return storage.SessionRecord{}, storage.ErrConcurrentModification
	}
	record := storage.SessionRecord{Session: sess, Version: expectedVersion + 1}
	f.sessions[sess.ID] = record
	return record, nil
}

func (f *fakeStore) ListActiveSessions(_ context.Context, _ int) ([]storage.SessionRecord, error) {
	var records []storage.SessionRecord
	for _, record := range f.sessions {
		if record.Session.Status == session.StatusActive {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Session.ID < records[j].Session.ID })
	return records, nil
}

func (f *fakeStore) ListPendingStatEvents(_ context.Context, limit int) ([]stats.Event, error) {
	var events []stats.Event
	for key, event := range f.events {
		if !f.applied[key] {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (f *fakeStore) ApplyStatEvent(_ context.Context, event stats.Event) error {
	if _, ok := f.events[event.Key]; !ok {
		return storage.ErrNotFound
	}
	if f.applied[event.Key] {
		return nil
	}
	f.applied[event.Key] = true
	record := f.userStats[event.UserID]
	record.UserID = event.UserID
	f.userStats[event.UserID] = record.Apply(event)
	return nil
}

func (f *fakeStore) GetUserStats(_ context.Context, userID string) (stats.UserStats, error) {
	record, ok := f.userStats[userID]
	if !ok {
		return stats.UserStats{UserID: userID}, nil
	}
	record.UserID = userID
	return record, nil
}

var _ storage.Store = (*fakeStore)(nil)

func sequenceIDs(ids ...string) func() (string, error) {
	index := 0
	return func() (string, error) {
		value := ids[index%len(ids)]
		index++
		return value, nil
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
