package app

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/services/chain/domain/chain"
	"github.com/gravemark/ink/internal/services/chain/domain/invitation"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

func invitationFixture(t *testing.T, store *fakeStore, at time.Time) *InvitationService {
	t.Helper()
	custody := NewCustodyService(store, fixedClock(at), sequenceIDs("chain-1", "chapter-1"), nil)
	if _, err := custody.StartChain(context.Background(), chain.StartChainInput{
		Title:    "The Hollow Door",
		Genre:    chain.GenreHorror,
		Content:  "The door had been nailed shut for a reason.",
		AuthorID: "user-a",
	}); err != nil {
		t.Fatalf("start chain: %v", err)
	}
	return NewInvitationService(store, fixedClock(at), sequenceIDs("invite-1", "invite-2"), nil)
}

func TestCreateInvitationSnapshotsChain(t *testing.T) {
	store := newFakeStore()
	createdAt := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	service := invitationFixture(t, store, createdAt)

	record, err := service.CreateInvitation(context.Background(), "chain-1", "user-a", "user-b")
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if record.Invitation.ChapterCount != 1 {
		t.Fatalf("ChapterCount = %d, want 1", record.Invitation.ChapterCount)
	}
	if record.Invitation.Preview != "The door had been nailed shut for a reason." {
		t.Fatalf("Preview = %q, want last chapter", record.Invitation.Preview)
	}

	// Only the holder can offer custody.
	if _, err := service.CreateInvitation(context.Background(), "chain-1", "user-b", "user-c"); apperrors.CodeOf(err) != apperrors.CodeNotHolder {
		t.Fatalf("non-holder code = %v, want NOT_HOLDER", apperrors.CodeOf(err))
	}

	// One pending offer per recipient per chain.
	if _, err := service.CreateInvitation(context.Background(), "chain-1", "user-a", "user-b"); !errors.Is(err, storage.ErrPendingInvitationExists) {
		t.Fatalf("duplicate error = %v, want ErrPendingInvitationExists", err)
	}
}

func TestAcceptInvitationTransfersCustodyAtomically(t *testing.T) {
	store := newFakeStore()
	createdAt := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	service := invitationFixture(t, store, createdAt)

	if _, err := service.CreateInvitation(context.Background(), "chain-1", "user-a", "user-b"); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	record, err := service.AcceptInvitation(context.Background(), "invite-1", "user-b")
	if err != nil {
		t.Fatalf("accept invitation: %v", err)
	}
	if record.Invitation.Status != invitation.StatusAccepted {
		t.Fatalf("status = %v, want accepted", record.Invitation.Status)
	}

	chainRecord, err := store.GetChain(context.Background(), "chain-1")
	if err != nil {
		t.Fatalf("get chain: %v", err)
	}
	if chainRecord.Chain.CurrentHolderID != "user-b" {
		t.Fatalf("holder = %q, want user-b", chainRecord.Chain.CurrentHolderID)
	}
	if _, ok := store.events["invitation_accepted:invite-1:user-b"]; !ok {
		t.Fatal("missing invitation accepted event")
	}

	// A second acceptance fails cleanly.
	if _, err := service.AcceptInvitation(context.Background(), "invite-1", "user-b"); apperrors.CodeOf(err) != apperrors.CodeInvitationExpired {
		t.Fatalf("re-accept code = %v, want INVITATION_EXPIRED", apperrors.CodeOf(err))
	}
}

func TestAcceptInvitationRejectsWrongRecipient(t *testing.T) {
	store := newFakeStore()
	createdAt := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	service := invitationFixture(t, store, createdAt)

	if _, err := service.CreateInvitation(context.Background(), "chain-1", "user-a", "user-b"); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if _, err := service.AcceptInvitation(context.Background(), "invite-1", "user-impostor"); apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Fatalf("impostor code = %v, want FORBIDDEN", apperrors.CodeOf(err))
	}

	chainRecord, _ := store.GetChain(context.Background(), "chain-1")
	if chainRecord.Chain.CurrentHolderID != "user-a" {
		t.Fatalf("holder = %q, want unchanged user-a", chainRecord.Chain.CurrentHolderID)
	}
}

func TestDeclineInvitationLeavesChainAlone(t *testing.T) {
	store := newFakeStore()
	createdAt := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	service := invitationFixture(t, store, createdAt)

	if _, err := service.CreateInvitation(context.Background(), "chain-1", "user-a", "user-b"); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	record, err := service.DeclineInvitation(context.Background(), "invite-1", "user-b")
	if err != nil {
		t.Fatalf("decline invitation: %v", err)
	}
	if record.Invitation.Status != invitation.StatusDeclined {
		t.Fatalf("status = %v, want declined", record.Invitation.Status)
	}

	chainRecord, _ := store.GetChain(context.Background(), "chain-1")
	if chainRecord.Chain.CurrentHolderID != "user-a" {
		t.Fatalf("holder = %q, want unchanged user-a", chainRecord.Chain.CurrentHolderID)
	}
}

func TestSweepExpiredInvitations(t *testing.T) {
	store := newFakeStore()
	createdAt := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	service := invitationFixture(t, store, createdAt)

	if _, err := service.CreateInvitation(context.Background(), "chain-1", "user-a", "user-b"); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	early := NewInvitationService(store, fixedClock(createdAt.Add(time.Hour)), nil, nil)
	swept, err := early.SweepExpiredInvitations(context.Background())
	if err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if swept != 0 {
		t.Fatalf("early sweep = %d, want 0", swept)
	}

	late := NewInvitationService(store, fixedClock(createdAt.Add(invitation.Window+time.Hour)), nil, nil)
	swept, err = late.SweepExpiredInvitations(context.Background())
	if err != nil {
		t.Fatalf("late sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("late sweep = %d, want 1", swept)
	}

	record, _ := store.GetInvitation(context.Background(), "invite-1")
	if record.Invitation.Status != invitation.StatusExpired {
		t.Fatalf("status = %v, want expired", record.Invitation.Status)
	}

	// Expired means no longer acceptable.
	if _, err := late.AcceptInvitation(context.Background(), "invite-1", "user-b"); apperrors.CodeOf(err) != apperrors.CodeInvitationExpired {
		t.Fatalf("accept expired code = %v, want INVITATION_EXPIRED", apperrors.CodeOf(err))
	}
}
