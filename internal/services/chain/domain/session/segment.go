package session

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/platform/id"
)

var (
	// ErrEmptyContent indicates empty segment content.
	ErrEmptyContent = apperrors.New(apperrors.CodeInvalidContent, "segment content is required")
	// ErrSegmentNotFound indicates an unknown segment id.
	ErrSegmentNotFound = apperrors.New(apperrors.CodeNotFound, "segment not found")
)

// Segment is one contribution to a session document. The hash is a
// non-cryptographic content checksum used to detect accidental corruption.
type Segment struct {
	ID             string
	AuthorID       string
	Content        string
	CreatedAt      time.Time
	Hash           string
	IsGhostSegment bool
	GhostFragment  string
	WordCount      int
	CharacterCount int
}

// ContentHash returns the FNV-64a checksum of content, hex encoded.
func ContentHash(content string) string {
	hasher := fnv.New64a()
	hasher.Write([]byte(content))
	return fmt.Sprintf("%016x", hasher.Sum64())
}

// AddSegment appends a segment by the given author to an active session.
//
// When the author holds the current turn the rotation advances to the next
// eligible participant and the turn clock restarts. Writers outside the
// rotation may still contribute; their segments never move the turn.
func (s Session) AddSegment(content, authorID string, now func() time.Time, idGenerator func() (string, error)) (Session, Segment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if s.Status != StatusActive {
		return Session{}, Segment{}, ErrNotActive
	}
	if strings.TrimSpace(content) == "" {
		return Session{}, Segment{}, ErrEmptyContent
	}
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return Session{}, Segment{}, apperrors.New(apperrors.CodeUnauthenticated, "author id is required")
	}

	segmentID, err := idGenerator()
	if err != nil {
		return Session{}, Segment{}, apperrors.Wrap(apperrors.CodeUnknown, "generate segment id", err)
	}

	addedAt := now().UTC()
	segment := Segment{
		ID:             segmentID,
		AuthorID:       authorID,
		Content:        content,
		CreatedAt:      addedAt,
		Hash:           ContentHash(content),
		WordCount:      len(strings.Fields(content)),
		CharacterCount: utf8.RuneCountInString(content),
	}

	s.Segments = append(append([]Segment(nil), s.Segments...), segment)
	s.LastSegmentAt = addedAt

	participants := append([]Participant(nil), s.Participants...)
	for index := range participants {
		if participants[index].UserID == authorID {
			participants[index].SegmentCount++
		}
	}
	s.Participants = participants

	if authorID == s.CurrentTurn {
		if next, ok := s.nextEligible(authorID); ok {
			s.CurrentTurn = next
		}
		s.TurnStartedAt = addedAt
	}
	return s, segment, nil
}

// UpdateSegment replaces a segment's content in place, recomputing the hash
// and counts. The segment keeps its position and ghost marking.
func (s Session) UpdateSegment(segmentID, newContent string) (Session, error) {
	if strings.TrimSpace(newContent) == "" {
		return Session{}, ErrEmptyContent
	}

	segments := append([]Segment(nil), s.Segments...)
	for index := range segments {
		if segments[index].ID != segmentID {
			continue
		}
		segments[index].Content = newContent
		segments[index].Hash = ContentHash(newContent)
		segments[index].WordCount = len(strings.Fields(newContent))
		segments[index].CharacterCount = utf8.RuneCountInString(newContent)
		s.Segments = segments
		return s, nil
	}
	return Session{}, ErrSegmentNotFound
}

// DeleteSegment removes a segment; the order of the remaining segments is
// unchanged. Deleting does not touch participant segment counts, so a
// participant's contribution record survives removal of the text.
func (s Session) DeleteSegment(segmentID string) (Session, error) {
	segments := make([]Segment, 0, len(s.Segments))
	found := false
	for _, segment := range s.Segments {
		if segment.ID == segmentID {
			found = true
			continue
		}
		segments = append(segments, segment)
	}
	if !found {
		return Session{}, ErrSegmentNotFound
	}
	s.Segments = segments
	return s, nil
}

// VerifySegmentHashes reports the ids of segments whose stored hash no longer
// matches their content.
func VerifySegmentHashes(segments []Segment) []string {
	var corrupted []string
	for _, segment := range segments {
		if ContentHash(segment.Content) != segment.Hash {
			corrupted = append(corrupted, segment.ID)
		}
	}
	return corrupted
}
