package session

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/platform/id"
)

// SystemAuthorID is the synthetic identity that authors ghost segments.
const SystemAuthorID = "system"

// GhostFragments is the fixed pool of system-authored filler lines.
var GhostFragments = []string{
	"...and then the lights went out.",
	"A cold hand rested on the last writer's shoulder.",
	"The ink on the previous page was still wet. Nobody had written it.",
	"Somewhere below, a door that had no hinges creaked open.",
	"The words rearranged themselves when no one was looking.",
	"It had been reading along the entire time.",
	"The next chapter was already written, in a hand none of them knew.",
	"Static swallowed the sentence before it could end.",
}

// GhostDraw decides whether a ghost segment fires. The draw is a uniform
// sample from [0, 1); injection happens when it lands under chance.
func GhostDraw(draw func() float64, chance float64) bool {
	if draw == nil {
		return false
	}
	return draw() < chance
}

// PickGhostFragment selects a fragment with pick, an injectable uniform
// choice over [0, n).
func PickGhostFragment(pick func(n int) int) string {
	if pick == nil || len(GhostFragments) == 0 {
		return ""
	}
	index := pick(len(GhostFragments))
	if index < 0 || index >= len(GhostFragments) {
		index = 0
	}
	return GhostFragments[index]
}

// InjectGhost appends a system-authored ghost segment. Ghost segments never
// touch the turn bookkeeping or any participant's segment count.
func (s Session) InjectGhost(fragment string, now func() time.Time, idGenerator func() (string, error)) (Session, Segment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if s.Status != StatusActive {
		return Session{}, Segment{}, ErrNotActive
	}
	if strings.TrimSpace(fragment) == "" {
		return Session{}, Segment{}, ErrEmptyContent
	}

	segmentID, err := idGenerator()
	if err != nil {
		return Session{}, Segment{}, apperrors.Wrap(apperrors.CodeUnknown, "generate ghost segment id", err)
	}

	segment := Segment{
		ID:             segmentID,
		AuthorID:       SystemAuthorID,
		Content:        fragment,
		CreatedAt:      now().UTC(),
		Hash:           ContentHash(fragment),
		IsGhostSegment: true,
		GhostFragment:  fragment,
		WordCount:      len(strings.Fields(fragment)),
		CharacterCount: utf8.RuneCountInString(fragment),
	}
	s.Segments = append(append([]Segment(nil), s.Segments...), segment)
	return s, segment, nil
}
