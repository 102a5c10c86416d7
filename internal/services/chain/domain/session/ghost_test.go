package session

import (
	"testing"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
)

func TestGhostDraw(t *testing.T) {
	if GhostDraw(func() float64 { return 0.05 }, 0.10) != true {
		t.Fatal("draw below the chance must fire")
	}
	if GhostDraw(func() float64 { return 0.10 }, 0.10) != false {
		t.Fatal("draw at the chance must not fire")
	}
	if GhostDraw(func() float64 { return 0.0 }, 0) != false {
		t.Fatal("zero chance must never fire")
	}
	if GhostDraw(nil, 1) != false {
		t.Fatal("nil draw must never fire")
	}
}

func TestPickGhostFragment(t *testing.T) {
	for index, want := range GhostFragments {
		index := index
		if got := PickGhostFragment(func(n int) int { return index }); got != want {
			t.Fatalf("PickGhostFragment(%d) = %q, want %q", index, got, want)
		}
	}
	if got := PickGhostFragment(func(n int) int { return len(GhostFragments) + 3 }); got != GhostFragments[0] {
		t.Fatalf("out-of-range pick = %q, want fallback to first fragment", got)
	}
	if got := PickGhostFragment(nil); got != "" {
		t.Fatalf("nil pick = %q, want empty", got)
	}
}

func TestInjectGhostLeavesRotationAlone(t *testing.T) {
	startedAt := time.Date(2026, 3, 15, 22, 0, 0, 0, time.UTC)
	started := activeTestSession(t, startedAt, "user-a", "user-b")

	injectedAt := startedAt.Add(3 * time.Minute)
	injected, segment, err := started.InjectGhost(GhostFragments[0], fixedClock(injectedAt), singleID("segment-ghost"))
	if err != nil {
		t.Fatalf("inject ghost: %v", err)
	}

	if segment.AuthorID != SystemAuthorID || !segment.IsGhostSegment {
		t.Fatalf("segment = %+v, want system-authored ghost", segment)
	}
	if segment.GhostFragment != GhostFragments[0] {
		t.Fatalf("segment.GhostFragment = %q, want %q", segment.GhostFragment, GhostFragments[0])
	}
	if segment.Hash != ContentHash(GhostFragments[0]) {
		t.Fatalf("segment.Hash = %q, want content hash", segment.Hash)
	}
	if injected.CurrentTurn != started.CurrentTurn {
		t.Fatalf("injected.CurrentTurn = %q, want unchanged %q", injected.CurrentTurn, started.CurrentTurn)
	}
	if !injected.TurnStartedAt.Equal(started.TurnStartedAt) {
		t.Fatalf("injected.TurnStartedAt = %v, want unchanged", injected.TurnStartedAt)
	}
	for index, participant := range injected.Participants {
		if participant.SegmentCount != started.Participants[index].SegmentCount {
			t.Fatalf("participant %s segment count changed on ghost injection", participant.UserID)
		}
	}
}

func TestInjectGhostRequiresActiveSession(t *testing.T) {
	createdAt := time.Date(2026, 3, 15, 22, 0, 0, 0, time.UTC)
	created, err := Create(CreateInput{Title: "Midnight Relay"}, fixedClock(createdAt), singleID("session-1"))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, _, err := created.InjectGhost(GhostFragments[0], nil, nil); apperrors.CodeOf(err) != apperrors.CodeSessionNotActive {
		t.Fatalf("waiting inject code = %v, want SESSION_NOT_ACTIVE", apperrors.CodeOf(err))
	}
}
