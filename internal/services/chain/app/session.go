package app

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/gravemark/ink/internal/platform/id"
	"github.com/gravemark/ink/internal/platform/random"
	"github.com/gravemark/ink/internal/services/chain/domain/session"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

// SessionEngine owns the real-time Turn Curse mode. The ghost draw and
// fragment pick are injectable so tests can force or suppress injection.
type SessionEngine struct {
	store       storage.Store
	clock       func() time.Time
	idGenerator func() (string, error)
	ghostDraw   func() float64
	ghostPick   func(n int) int
	notifier    *Notifier
}

// NewSessionEngine wires a session engine. Nil ghost sources select a PRNG
// seeded from the platform entropy source; ghost behavior stays weakly
// random on purpose.
func NewSessionEngine(store storage.Store, clock func() time.Time, idGenerator func() (string, error), ghostDraw func() float64, ghostPick func(n int) int, notifier *Notifier) *SessionEngine {
	if clock == nil {
		clock = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if ghostDraw == nil || ghostPick == nil {
		seed, err := random.NewSeed()
		if err != nil {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		if ghostDraw == nil {
			ghostDraw = rng.Float64
		}
		if ghostPick == nil {
			ghostPick = rng.Intn
		}
	}
	return &SessionEngine{
		store:       store,
		clock:       clock,
		idGenerator: idGenerator,
		ghostDraw:   ghostDraw,
		ghostPick:   ghostPick,
		notifier:    notifier,
	}
}

// CreateSession creates a waiting session.
func (e *SessionEngine) CreateSession(ctx context.Context, input session.CreateInput) (storage.SessionRecord, error) {
	created, err := session.Create(input, e.clock, e.idGenerator)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	record, err := e.store.CreateSession(ctx, created)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	e.notifier.Notify(created.ID)
	return record, nil
}

// GetSession returns one session by id.
func (e *SessionEngine) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	return e.store.GetSession(ctx, sessionID)
}

// JoinSession adds a writer to the rotation; joining twice is a no-op.
func (e *SessionEngine) JoinSession(ctx context.Context, sessionID, userID, displayName string) (storage.SessionRecord, error) {
	return e.mutate(ctx, sessionID, func(s session.Session) (session.Session, error) {
		return s.Join(userID, displayName, e.clock)
	})
}

// StartSession moves a waiting session to active and assigns the first turn.
func (e *SessionEngine) StartSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	return e.mutate(ctx, sessionID, func(s session.Session) (session.Session, error) {
		return s.Start(e.clock)
	})
}

// CompleteSession ends an active session explicitly.
func (e *SessionEngine) CompleteSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	return e.mutate(ctx, sessionID, func(s session.Session) (session.Session, error) {
		return s.Complete(e.clock)
	})
}

// AddSegment appends a segment and, when ghost segments are enabled, rolls
// the injection draw. Segment and ghost commit in one store write, so a
// watcher never sees the ghost without its trigger.
func (e *SessionEngine) AddSegment(ctx context.Context, sessionID, content, authorID string) (storage.SessionRecord, session.Segment, error) {
	record, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return storage.SessionRecord{}, session.Segment{}, err
	}

	updated, segment, err := record.Session.AddSegment(content, authorID, e.clock, e.idGenerator)
	if err != nil {
		return storage.SessionRecord{}, session.Segment{}, err
	}

	if updated.EnableGhostSegments && session.GhostDraw(e.ghostDraw, updated.GhostSegmentChance) {
		fragment := session.PickGhostFragment(e.ghostPick)
		if fragment != "" {
			haunted, _, ghostErr := updated.InjectGhost(fragment, e.clock, e.idGenerator)
			if ghostErr != nil {
				log.Printf("inject ghost segment in session %s: %v", sessionID, ghostErr)
			} else {
				updated = haunted
			}
		}
	}

	next, err := e.store.UpdateSession(ctx, updated, record.Version)
	if err != nil {
		return storage.SessionRecord{}, session.Segment{}, err
	}
	e.notifier.Notify(sessionID)
	return next, segment, nil
}

// UpdateSegment replaces a segment's content in place.
func (e *SessionEngine) UpdateSegment(ctx context.Context, sessionID, segmentID, newContent string) (storage.SessionRecord, error) {
	return e.mutate(ctx, sessionID, func(s session.Session) (session.Session, error) {
		return s.UpdateSegment(segmentID, newContent)
	})
}

// DeleteSegment removes a segment without disturbing the others.
func (e *SessionEngine) DeleteSegment(ctx context.Context, sessionID, segmentID string) (storage.SessionRecord, error) {
	return e.mutate(ctx, sessionID, func(s session.Session) (session.Session, error) {
		return s.DeleteSegment(segmentID)
	})
}

// SweepTurnTimeouts applies the timeout rule to one session. A no-op sweep
// (inactive session or unexpired turn) writes nothing.
func (e *SessionEngine) SweepTurnTimeouts(ctx context.Context, sessionID string) (bool, error) {
	record, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}

	swept, changed, err := record.Session.SweepTurnTimeout(e.clock)
	if err != nil || !changed {
		return false, err
	}
	if _, err := e.store.UpdateSession(ctx, swept, record.Version); err != nil {
		if errors.Is(err, storage.ErrConcurrentModification) || errors.Is(err, storage.ErrNotFound) {
			// The holder got a segment in, or another sweep won the race.
			return false, nil
		}
		return false, err
	}
	e.notifier.Notify(sessionID)
	return true, nil
}

// SweepAllTurnTimeouts sweeps every active session, isolating per-session
// failures.
func (e *SessionEngine) SweepAllTurnTimeouts(ctx context.Context) (int, error) {
	records, err := e.store.ListActiveSessions(ctx, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, record := range records {
		changed, err := e.SweepTurnTimeouts(ctx, record.Session.ID)
		if err != nil {
			log.Printf("sweep turn timeout for session %s: %v", record.Session.ID, err)
			continue
		}
		if changed {
			swept++
		}
	}
	return swept, nil
}

func (e *SessionEngine) mutate(ctx context.Context, sessionID string, apply func(session.Session) (session.Session, error)) (storage.SessionRecord, error) {
	record, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return storage.SessionRecord{}, err
	}

	updated, err := apply(record.Session)
	if err != nil {
		return storage.SessionRecord{}, err
	}

	next, err := e.store.UpdateSession(ctx, updated, record.Version)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	e.notifier.Notify(sessionID)
	return next, nil
}
