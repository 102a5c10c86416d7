// Package session models the real-time Turn Curse mode: a shared document
// written in timed turns, where a writer who misses the deadline is marked
// lost and skipped in rotation.
package session

import (
	"strings"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/platform/id"
)

const (
	// DefaultTurnTimeLimit is how long a writer has to add a segment.
	DefaultTurnTimeLimit = 5 * time.Minute
	// DefaultGhostChance is the default ghost injection probability.
	DefaultGhostChance = 0.10
	// LostReasonTimeout marks a writer dropped for missing the deadline.
	LostReasonTimeout = "timeout"
)

var (
	// ErrEmptyTitle indicates a missing session title.
	ErrEmptyTitle = apperrors.New(apperrors.CodeSessionEmptyTitle, "session title is required")
	// ErrNotActive indicates the session does not accept segments.
	ErrNotActive = apperrors.New(apperrors.CodeSessionNotActive, "session is not active")
	// ErrNotWaiting indicates the session already started.
	ErrNotWaiting = apperrors.New(apperrors.CodeSessionNotWaiting, "session is not waiting to start")
	// ErrNoEligibleTurn indicates every participant is lost.
	ErrNoEligibleTurn = apperrors.New(apperrors.CodeSessionNoEligibleTurn, "no eligible participant for the turn")
	// ErrInvalidTurnLimit indicates a non-positive turn time limit.
	ErrInvalidTurnLimit = apperrors.New(apperrors.CodeSessionInvalidTurnLimit, "turn time limit must be positive")
	// ErrInvalidGhostChance indicates a chance outside [0, 1].
	ErrInvalidGhostChance = apperrors.New(apperrors.CodeSessionInvalidChance, "ghost segment chance must be within [0, 1]")
)

// Status describes the lifecycle state of a session.
type Status int

const (
	// StatusUnspecified represents an invalid status value.
	StatusUnspecified Status = iota
	// StatusWaiting indicates the session gathers participants.
	StatusWaiting
	// StatusActive indicates turns are rotating.
	StatusActive
	// StatusCompleted indicates the session ended.
	StatusCompleted
)

// StatusLabel returns the string label for a session status.
func StatusLabel(status Status) string {
	switch status {
	case StatusWaiting:
		return "WAITING"
	case StatusActive:
		return "ACTIVE"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "WAITING":
		return StatusWaiting
	case "ACTIVE":
		return StatusActive
	case "COMPLETED":
		return StatusCompleted
	default:
		return StatusUnspecified
	}
}

// Participant is a writer in the session rotation. Join order is the turn
// order; a lost participant keeps their slot but is skipped.
type Participant struct {
	UserID       string
	DisplayName  string
	JoinedAt     time.Time
	SegmentCount int
	IsLost       bool
	LostAt       *time.Time
	LostReason   string
}

// Session is a Turn Curse writing session.
//
// While active, CurrentTurn references a participant with IsLost false; the
// session completes once no eligible participant remains.
type Session struct {
	ID                  string
	Title               string
	Participants        []Participant
	Segments            []Segment
	Status              Status
	CurrentTurn         string
	TurnStartedAt       time.Time
	TurnTimeLimit       time.Duration
	EnableGhostSegments bool
	GhostSegmentChance  float64
	CreatedAt           time.Time
	LastSegmentAt       time.Time
	CompletedAt         *time.Time
}

// CreateInput describes the metadata needed to create a session.
type CreateInput struct {
	Title               string
	TurnTimeLimit       time.Duration
	EnableGhostSegments bool
	GhostSegmentChance  float64
}

// Create creates a waiting session. Zero values for TurnTimeLimit and
// GhostSegmentChance select the defaults.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Session{}, ErrEmptyTitle
	}
	if input.TurnTimeLimit == 0 {
		input.TurnTimeLimit = DefaultTurnTimeLimit
	}
	if input.TurnTimeLimit < 0 {
		return Session{}, ErrInvalidTurnLimit
	}
	if input.EnableGhostSegments && input.GhostSegmentChance == 0 {
		input.GhostSegmentChance = DefaultGhostChance
	}
	if input.GhostSegmentChance < 0 || input.GhostSegmentChance > 1 {
		return Session{}, ErrInvalidGhostChance
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeUnknown, "generate session id", err)
	}

	return Session{
		ID:                  sessionID,
		Title:               input.Title,
		Status:              StatusWaiting,
		TurnTimeLimit:       input.TurnTimeLimit,
		EnableGhostSegments: input.EnableGhostSegments,
		GhostSegmentChance:  input.GhostSegmentChance,
		CreatedAt:           now().UTC(),
	}, nil
}

// Join adds a writer to the rotation. Joining twice is a no-op; the second
// call returns the session unchanged.
func (s Session) Join(userID, displayName string, now func() time.Time) (Session, error) {
	if now == nil {
		now = time.Now
	}

	if s.Status == StatusCompleted {
		return Session{}, ErrNotActive
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Session{}, apperrors.New(apperrors.CodeUnauthenticated, "user id is required")
	}
	for _, participant := range s.Participants {
		if participant.UserID == userID {
			return s, nil
		}
	}

	s.Participants = append(append([]Participant(nil), s.Participants...), Participant{
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		JoinedAt:    now().UTC(),
	})
	return s, nil
}

// Start moves a waiting session to active and assigns the first turn to the
// earliest joined eligible participant.
func (s Session) Start(now func() time.Time) (Session, error) {
	if now == nil {
		now = time.Now
	}

	if s.Status != StatusWaiting {
		return Session{}, ErrNotWaiting
	}
	first, ok := s.firstEligible()
	if !ok {
		return Session{}, ErrNoEligibleTurn
	}

	s.Status = StatusActive
	s.CurrentTurn = first
	s.TurnStartedAt = now().UTC()
	return s, nil
}

// Complete ends an active session explicitly.
func (s Session) Complete(now func() time.Time) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if s.Status != StatusActive {
		return Session{}, ErrNotActive
	}
	completedAt := now().UTC()
	s.Status = StatusCompleted
	s.CurrentTurn = ""
	s.CompletedAt = &completedAt
	return s, nil
}

// SweepTurnTimeout applies the timeout rule once: if the current holder's
// deadline has passed, they are marked lost and the turn advances to the next
// eligible participant in join order, wrapping around. With no eligible
// participant left the session completes.
//
// The second return reports whether anything changed; a sweep of an inactive
// session or an unexpired turn is a no-op.
func (s Session) SweepTurnTimeout(now func() time.Time) (Session, bool, error) {
	if now == nil {
		now = time.Now
	}

	if s.Status != StatusActive {
		return s, false, nil
	}
	sweptAt := now().UTC()
	deadline := s.TurnStartedAt.Add(s.TurnTimeLimit)
	if sweptAt.Before(deadline) {
		return s, false, nil
	}

	participants := append([]Participant(nil), s.Participants...)
	for index := range participants {
		if participants[index].UserID == s.CurrentTurn {
			lostAt := sweptAt
			participants[index].IsLost = true
			participants[index].LostAt = &lostAt
			participants[index].LostReason = LostReasonTimeout
		}
	}
	s.Participants = participants

	next, ok := s.nextEligible(s.CurrentTurn)
	if !ok {
		s.Status = StatusCompleted
		s.CurrentTurn = ""
		s.CompletedAt = &sweptAt
		return s, true, nil
	}
	s.CurrentTurn = next
	s.TurnStartedAt = sweptAt
	return s, true, nil
}

// firstEligible returns the earliest joined participant not marked lost.
func (s Session) firstEligible() (string, bool) {
	for _, participant := range s.Participants {
		if !participant.IsLost {
			return participant.UserID, true
		}
	}
	return "", false
}

// nextEligible returns the first participant after afterUserID in join order
// who is not lost, wrapping around the rotation.
func (s Session) nextEligible(afterUserID string) (string, bool) {
	start := 0
	for index, participant := range s.Participants {
		if participant.UserID == afterUserID {
			start = index + 1
			break
		}
	}
	for offset := 0; offset < len(s.Participants); offset++ {
		participant := s.Participants[(start+offset)%len(s.Participants)]
		if !participant.IsLost {
			return participant.UserID, true
		}
	}
	return "", false
}

// EligibleCount counts participants still in the rotation.
func (s Session) EligibleCount() int {
	count := 0
	for _, participant := range s.Participants {
		if !participant.IsLost {
			count++
		}
	}
	return count
}
