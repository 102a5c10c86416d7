// Package chain models the chain letter: a collaboratively authored
// document extended one chapter at a time under exclusive custody.
package chain

import (
	"strings"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/platform/id"
)

// CustodyWindow is how long the current holder has to extend or pass the
// chain before it expires.
const CustodyWindow = 7 * 24 * time.Hour

var (
	// ErrEmptyTitle indicates a missing chain title.
	ErrEmptyTitle = apperrors.New(apperrors.CodeChainEmptyTitle, "chain title is required")
	// ErrInvalidGenre indicates an unknown genre value.
	ErrInvalidGenre = apperrors.New(apperrors.CodeChainInvalidGenre, "chain genre is invalid")
	// ErrEmptyContent indicates empty chapter content.
	ErrEmptyContent = apperrors.New(apperrors.CodeInvalidContent, "chapter content is required")
	// ErrEmptyAuthorID indicates a missing author identity.
	ErrEmptyAuthorID = apperrors.New(apperrors.CodeUnauthenticated, "author id is required")
)

// Genre classifies the chain letter's fiction genre.
type Genre int

const (
	// GenreUnspecified represents an invalid genre value.
	GenreUnspecified Genre = iota
	// GenreHorror is the platform's home turf.
	GenreHorror
	// GenreThriller is suspense-driven fiction.
	GenreThriller
	// GenreMystery is puzzle-driven fiction.
	GenreMystery
	// GenreRomance is relationship-driven fiction.
	GenreRomance
)

// GenreLabel returns the string label for a genre.
func GenreLabel(genre Genre) string {
	switch genre {
	case GenreHorror:
		return "HORROR"
	case GenreThriller:
		return "THRILLER"
	case GenreMystery:
		return "MYSTERY"
	case GenreRomance:
		return "ROMANCE"
	default:
		return "UNSPECIFIED"
	}
}

// GenreFromLabel converts a genre label to a Genre value.
func GenreFromLabel(label string) Genre {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "HORROR":
		return GenreHorror
	case "THRILLER":
		return GenreThriller
	case "MYSTERY":
		return GenreMystery
	case "ROMANCE":
		return GenreRomance
	default:
		return GenreUnspecified
	}
}

// Status describes the lifecycle state of a chain letter.
type Status int

const (
	// StatusUnspecified represents an invalid status value.
	StatusUnspecified Status = iota
	// StatusActive indicates the chain can still be extended.
	StatusActive
	// StatusCompleted indicates the chain was finished deliberately.
	StatusCompleted
	// StatusBroken indicates a holder refused to continue the chain.
	StatusBroken
	// StatusExpired indicates the custody window lapsed.
	StatusExpired
)

// IsTerminal reports whether the status permits no further mutation.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusBroken, StatusExpired:
		return true
	default:
		return false
	}
}

// StatusLabel returns the string label for a chain status.
func StatusLabel(status Status) string {
	switch status {
	case StatusActive:
		return "ACTIVE"
	case StatusCompleted:
		return "COMPLETED"
	case StatusBroken:
		return "BROKEN"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "ACTIVE":
		return StatusActive
	case "COMPLETED":
		return StatusCompleted
	case "BROKEN":
		return StatusBroken
	case "EXPIRED":
		return StatusExpired
	default:
		return StatusUnspecified
	}
}

// Chapter is one immutable contribution to a chain letter.
type Chapter struct {
	ID            string
	AuthorID      string
	Content       string
	ChapterNumber int
	WordCount     int
	CreatedAt     time.Time
	TimeToWrite   time.Duration // zero when unknown
}

// Letter is a chain letter document. Chapters are append-only; the aggregate
// fields (ChainLength, TotalWords, CurseLevel) are caches over Chapters and
// every mutation path must keep them in step.
type Letter struct {
	ID              string
	Title           string
	Genre           Genre
	OriginatorID    string
	CurrentHolderID string
	Status          Status
	Chapters        []Chapter
	ChainLength     int
	TotalWords      int
	CurseLevel      int
	CursedBy        []string
	CreatedAt       time.Time
	LastPassedAt    time.Time
	ExpiresAt       time.Time
	CompletedAt     *time.Time
}

// WordCount counts whitespace-separated tokens in content.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// StartChainInput describes the metadata needed to start a chain letter.
type StartChainInput struct {
	Title    string
	Genre    Genre
	Content  string
	AuthorID string
}

// StartChain creates a chain letter with its first chapter. The author holds
// custody and is the first name on the cursed list.
func StartChain(input StartChainInput, now func() time.Time, idGenerator func() (string, error)) (Letter, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeStartChainInput(input)
	if err != nil {
		return Letter{}, err
	}

	chainID, err := idGenerator()
	if err != nil {
		return Letter{}, apperrors.Wrap(apperrors.CodeUnknown, "generate chain id", err)
	}

	createdAt := now().UTC()
	first, err := NewChapter(ChapterInput{
		Content:  normalized.Content,
		AuthorID: normalized.AuthorID,
	}, 1, now, idGenerator)
	if err != nil {
		return Letter{}, err
	}

	return Letter{
		ID:              chainID,
		Title:           normalized.Title,
		Genre:           normalized.Genre,
		OriginatorID:    normalized.AuthorID,
		CurrentHolderID: normalized.AuthorID,
		Status:          StatusActive,
		Chapters:        []Chapter{first},
		ChainLength:     1,
		TotalWords:      first.WordCount,
		CurseLevel:      CurseLevel(1),
		CursedBy:        []string{normalized.AuthorID},
		CreatedAt:       createdAt,
		LastPassedAt:    createdAt,
		ExpiresAt:       createdAt.Add(CustodyWindow),
	}, nil
}

// NormalizeStartChainInput trims and validates chain creation metadata.
func NormalizeStartChainInput(input StartChainInput) (StartChainInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return StartChainInput{}, ErrEmptyTitle
	}
	if input.Genre == GenreUnspecified {
		return StartChainInput{}, ErrInvalidGenre
	}
	if strings.TrimSpace(input.Content) == "" {
		return StartChainInput{}, ErrEmptyContent
	}
	input.AuthorID = strings.TrimSpace(input.AuthorID)
	if input.AuthorID == "" {
		return StartChainInput{}, ErrEmptyAuthorID
	}
	return input, nil
}

// ChapterInput describes the metadata needed to create a chapter.
type ChapterInput struct {
	Content     string
	AuthorID    string
	TimeToWrite time.Duration
}

// NewChapter creates an immutable chapter with the given 1-based number.
func NewChapter(input ChapterInput, number int, now func() time.Time, idGenerator func() (string, error)) (Chapter, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if strings.TrimSpace(input.Content) == "" {
		return Chapter{}, ErrEmptyContent
	}
	input.AuthorID = strings.TrimSpace(input.AuthorID)
	if input.AuthorID == "" {
		return Chapter{}, ErrEmptyAuthorID
	}

	chapterID, err := idGenerator()
	if err != nil {
		return Chapter{}, apperrors.Wrap(apperrors.CodeUnknown, "generate chapter id", err)
	}

	return Chapter{
		ID:            chapterID,
		AuthorID:      input.AuthorID,
		Content:       input.Content,
		ChapterNumber: number,
		WordCount:     WordCount(input.Content),
		CreatedAt:     now().UTC(),
		TimeToWrite:   input.TimeToWrite,
	}, nil
}

// AppendChapter appends a chapter written by the current holder and refreshes
// the cached aggregates and the custody window.
//
// The caller persists the returned letter with a compare-and-set on the
// version it read; a failed precondition surfaces as ConcurrentModification.
func (l Letter) AppendChapter(input ChapterInput, now func() time.Time, idGenerator func() (string, error)) (Letter, Chapter, error) {
	if now == nil {
		now = time.Now
	}

	if l.Status != StatusActive {
		return Letter{}, Chapter{}, apperrors.New(apperrors.CodeAlreadyTerminal, "chain is no longer active")
	}
	authorID := strings.TrimSpace(input.AuthorID)
	if authorID == "" {
		return Letter{}, Chapter{}, ErrEmptyAuthorID
	}
	if authorID != l.CurrentHolderID {
		return Letter{}, Chapter{}, apperrors.New(apperrors.CodeNotHolder, "author does not hold the chain")
	}

	chapter, err := NewChapter(input, l.ChainLength+1, now, idGenerator)
	if err != nil {
		return Letter{}, Chapter{}, err
	}

	passedAt := now().UTC()
	l.Chapters = append(append([]Chapter(nil), l.Chapters...), chapter)
	l.ChainLength++
	l.TotalWords += chapter.WordCount
	l.CurseLevel = CurseLevel(l.ChainLength)
	l.LastPassedAt = passedAt
	l.ExpiresAt = passedAt.Add(CustodyWindow)
	return l, chapter, nil
}

// PassTo transfers custody to another writer and restarts the custody window.
func (l Letter) PassTo(fromUserID, toUserID string, now func() time.Time) (Letter, error) {
	if now == nil {
		now = time.Now
	}

	if l.Status != StatusActive {
		return Letter{}, apperrors.New(apperrors.CodeAlreadyTerminal, "chain is no longer active")
	}
	fromUserID = strings.TrimSpace(fromUserID)
	if fromUserID == "" || fromUserID != l.CurrentHolderID {
		return Letter{}, apperrors.New(apperrors.CodeNotHolder, "sender does not hold the chain")
	}
	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" {
		return Letter{}, apperrors.New(apperrors.CodeInvitationEmptyRecipient, "recipient id is required")
	}

	passedAt := now().UTC()
	l.CurrentHolderID = toUserID
	l.LastPassedAt = passedAt
	l.ExpiresAt = passedAt.Add(CustodyWindow)
	l.CursedBy = appendCursed(l.CursedBy, toUserID)
	return l, nil
}

// Complete marks the chain completed. The final chapter must already be
// appended via AppendChapter.
func (l Letter) Complete(now func() time.Time) (Letter, error) {
	if now == nil {
		now = time.Now
	}
	if l.Status != StatusActive {
		return Letter{}, apperrors.New(apperrors.CodeAlreadyTerminal, "chain is no longer active")
	}
	completedAt := now().UTC()
	l.Status = StatusCompleted
	l.CompletedAt = &completedAt
	return l, nil
}

// Break marks the chain broken by the given user.
func (l Letter) Break(now func() time.Time) (Letter, error) {
	if now == nil {
		now = time.Now
	}
	if l.Status != StatusActive {
		return Letter{}, apperrors.New(apperrors.CodeAlreadyTerminal, "chain is no longer active")
	}
	brokenAt := now().UTC()
	l.Status = StatusBroken
	l.CompletedAt = &brokenAt
	return l, nil
}

// Expire marks an active chain expired. It is a no-op guard at the domain
// level; the sweep relies on the storage compare-and-set for idempotency.
func (l Letter) Expire(now func() time.Time) (Letter, error) {
	if now == nil {
		now = time.Now
	}
	if l.Status != StatusActive {
		return Letter{}, apperrors.New(apperrors.CodeAlreadyTerminal, "chain is no longer active")
	}
	expiredAt := now().UTC()
	l.Status = StatusExpired
	l.CompletedAt = &expiredAt
	return l, nil
}

// Aggregates holds the cached fields derivable from a chapter list.
type Aggregates struct {
	ChainLength int
	TotalWords  int
	CurseLevel  int
}

// RecomputeAggregates derives the cached aggregate fields from chapters.
// Stored values must always equal the recomputed ones.
func RecomputeAggregates(chapters []Chapter) Aggregates {
	totalWords := 0
	for _, chapter := range chapters {
		totalWords += chapter.WordCount
	}
	return Aggregates{
		ChainLength: len(chapters),
		TotalWords:  totalWords,
		CurseLevel:  CurseLevel(len(chapters)),
	}
}

// ValidateChapterNumbers reports whether chapter numbers are exactly
// 1..len(chapters) in order, with no gaps or repeats.
func ValidateChapterNumbers(chapters []Chapter) bool {
	for index, chapter := range chapters {
		if chapter.ChapterNumber != index+1 {
			return false
		}
	}
	return true
}

func appendCursed(cursedBy []string, userID string) []string {
	for _, existing := range cursedBy {
		if existing == userID {
			return cursedBy
		}
	}
	return append(append([]string(nil), cursedBy...), userID)
}
