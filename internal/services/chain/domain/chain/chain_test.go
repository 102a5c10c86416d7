package chain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequenceIDs(ids ...string) func() (string, error) {
	index := 0
	return func() (string, error) {
		if index >= len(ids) {
			return "", errors.New("id sequence exhausted")
		}
		value := ids[index]
		index++
		return value, nil
	}
}

func startTestChain(t *testing.T, at time.Time) Letter {
	t.Helper()
	letter, err := StartChain(StartChainInput{
		Title:    "The Hollow Door",
		Genre:    GenreHorror,
		Content:  "The door had been nailed shut for a reason.",
		AuthorID: "user-origin",
	}, fixedClock(at), sequenceIDs("chain-1", "chapter-1"))
	if err != nil {
		t.Fatalf("start chain: %v", err)
	}
	return letter
}

func TestStartChainInitializesAggregates(t *testing.T) {
	createdAt := time.Date(2026, 3, 13, 21, 0, 0, 0, time.UTC)
	letter := startTestChain(t, createdAt)

	if letter.ID != "chain-1" {
		t.Fatalf("letter.ID = %q, want %q", letter.ID, "chain-1")
	}
	if letter.Status != StatusActive {
		t.Fatalf("letter.Status = %v, want active", letter.Status)
	}
	if letter.CurrentHolderID != "user-origin" {
		t.Fatalf("letter.CurrentHolderID = %q, want originator", letter.CurrentHolderID)
	}
	if letter.ChainLength != 1 {
		t.Fatalf("letter.ChainLength = %d, want 1", letter.ChainLength)
	}
	if letter.TotalWords != 9 {
		t.Fatalf("letter.TotalWords = %d, want 9", letter.TotalWords)
	}
	if letter.CurseLevel != 1 {
		t.Fatalf("letter.CurseLevel = %d, want 1", letter.CurseLevel)
	}
	if want := createdAt.Add(CustodyWindow); !letter.ExpiresAt.Equal(want) {
		t.Fatalf("letter.ExpiresAt = %v, want %v", letter.ExpiresAt, want)
	}
	if len(letter.CursedBy) != 1 || letter.CursedBy[0] != "user-origin" {
		t.Fatalf("letter.CursedBy = %v, want [user-origin]", letter.CursedBy)
	}
}

func TestStartChainValidation(t *testing.T) {
	cases := []struct {
		name  string
		input StartChainInput
		code  apperrors.Code
	}{
		{
			name:  "empty title",
			input: StartChainInput{Genre: GenreHorror, Content: "text", AuthorID: "u"},
			code:  apperrors.CodeChainEmptyTitle,
		},
		{
			name:  "unspecified genre",
			input: StartChainInput{Title: "t", Content: "text", AuthorID: "u"},
			code:  apperrors.CodeChainInvalidGenre,
		},
		{
			name:  "blank content",
			input: StartChainInput{Title: "t", Genre: GenreMystery, Content: "   ", AuthorID: "u"},
			code:  apperrors.CodeInvalidContent,
		},
		{
			name:  "missing author",
			input: StartChainInput{Title: "t", Genre: GenreMystery, Content: "text"},
			code:  apperrors.CodeUnauthenticated,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := StartChain(tc.input, nil, nil)
			if apperrors.CodeOf(err) != tc.code {
				t.Fatalf("StartChain error code = %v, want %v", apperrors.CodeOf(err), tc.code)
			}
		})
	}
}

func TestAppendChapterAdvancesAggregates(t *testing.T) {
	createdAt := time.Date(2026, 3, 13, 21, 0, 0, 0, time.UTC)
	letter := startTestChain(t, createdAt)

	// Extend to length 2 so the next append crosses the curse boundary.
	second, _, err := letter.AppendChapter(ChapterInput{
		Content:  "It opened anyway.",
		AuthorID: "user-origin",
	}, fixedClock(createdAt.Add(time.Hour)), sequenceIDs("chapter-2"))
	if err != nil {
		t.Fatalf("append second chapter: %v", err)
	}

	appendedAt := createdAt.Add(2 * time.Hour)
	third, chapter, err := second.AppendChapter(ChapterInput{
		Content:  "one two three four five",
		AuthorID: "user-origin",
	}, fixedClock(appendedAt), sequenceIDs("chapter-3"))
	if err != nil {
		t.Fatalf("append third chapter: %v", err)
	}

	if chapter.ChapterNumber != 3 {
		t.Fatalf("chapter.ChapterNumber = %d, want 3", chapter.ChapterNumber)
	}
	if third.ChainLength != 3 {
		t.Fatalf("third.ChainLength = %d, want 3", third.ChainLength)
	}
	if want := second.TotalWords + 5; third.TotalWords != want {
		t.Fatalf("third.TotalWords = %d, want %d", third.TotalWords, want)
	}
	if third.CurseLevel != 2 {
		t.Fatalf("third.CurseLevel = %d, want 2", third.CurseLevel)
	}
	if want := appendedAt.Add(CustodyWindow); !third.ExpiresAt.Equal(want) {
		t.Fatalf("third.ExpiresAt = %v, want %v", third.ExpiresAt, want)
	}
	if !ValidateChapterNumbers(third.Chapters) {
		t.Fatalf("chapter numbers %v are not contiguous", third.Chapters)
	}
}

func TestAppendChapterRejectsNonHolder(t *testing.T) {
	createdAt := time.Date(2026, 3, 13, 21, 0, 0, 0, time.UTC)
	letter := startTestChain(t, createdAt)

	_, _, err := letter.AppendChapter(ChapterInput{
		Content:  "I was never invited.",
		AuthorID: "user-intruder",
	}, fixedClock(createdAt), sequenceIDs("chapter-x"))
	if apperrors.CodeOf(err) != apperrors.CodeNotHolder {
		t.Fatalf("append error code = %v, want NOT_HOLDER", apperrors.CodeOf(err))
	}
	// The receiver is unchanged: AppendChapter is by-value.
	if letter.ChainLength != 1 {
		t.Fatalf("letter.ChainLength = %d, want 1", letter.ChainLength)
	}
}

func TestAppendChapterRejectsTerminalChain(t *testing.T) {
	createdAt := time.Date(2026, 3, 13, 21, 0, 0, 0, time.UTC)
	letter := startTestChain(t, createdAt)
	completed, err := letter.Complete(fixedClock(createdAt))
	if err != nil {
		t.Fatalf("complete chain: %v", err)
	}

	_, _, err = completed.AppendChapter(ChapterInput{
		Content:  "postscript",
		AuthorID: "user-origin",
	}, fixedClock(createdAt), sequenceIDs("chapter-x"))
	if apperrors.CodeOf(err) != apperrors.CodeAlreadyTerminal {
		t.Fatalf("append error code = %v, want ALREADY_TERMINAL", apperrors.CodeOf(err))
	}
}

func TestPassToTransfersCustody(t *testing.T) {
	createdAt := time.Date(2026, 3, 13, 21, 0, 0, 0, time.UTC)
	letter := startTestChain(t, createdAt)

	passedAt := createdAt.Add(24 * time.Hour)
	passed, err := letter.PassTo("user-origin", "user-next", fixedClock(passedAt))
	if err != nil {
		t.Fatalf("pass chain: %v", err)
	}
	if passed.CurrentHolderID != "user-next" {
		t.Fatalf("passed.CurrentHolderID = %q, want user-next", passed.CurrentHolderID)
	}
	if want := passedAt.Add(CustodyWindow); !passed.ExpiresAt.Equal(want) {
		t.Fatalf("passed.ExpiresAt = %v, want %v", passed.ExpiresAt, want)
	}
	if len(passed.CursedBy) != 2 || passed.CursedBy[1] != "user-next" {
		t.Fatalf("passed.CursedBy = %v, want originator and recipient", passed.CursedBy)
	}

	// Passing back does not duplicate the cursed entry.
	again, err := passed.PassTo("user-next", "user-origin", fixedClock(passedAt.Add(time.Hour)))
	if err != nil {
		t.Fatalf("pass back: %v", err)
	}
	if len(again.CursedBy) != 2 {
		t.Fatalf("again.CursedBy = %v, want no duplicates", again.CursedBy)
	}
}

func TestPassToRejectsNonHolder(t *testing.T) {
	createdAt := time.Date(2026, 3, 13, 21, 0, 0, 0, time.UTC)
	letter := startTestChain(t, createdAt)

	_, err := letter.PassTo("user-other", "user-next", fixedClock(createdAt))
	if apperrors.CodeOf(err) != apperrors.CodeNotHolder {
		t.Fatalf("pass error code = %v, want NOT_HOLDER", apperrors.CodeOf(err))
	}
}

func TestTerminalTransitions(t *testing.T) {
	createdAt := time.Date(2026, 3, 13, 21, 0, 0, 0, time.UTC)

	letter := startTestChain(t, createdAt)
	completed, err := letter.Complete(fixedClock(createdAt))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("completed.Status = %v CompletedAt = %v, want completed with timestamp", completed.Status, completed.CompletedAt)
	}
	if _, err := completed.Break(fixedClock(createdAt)); apperrors.CodeOf(err) != apperrors.CodeAlreadyTerminal {
		t.Fatalf("break after complete code = %v, want ALREADY_TERMINAL", apperrors.CodeOf(err))
	}
	if _, err := completed.Expire(fixedClock(createdAt)); apperrors.CodeOf(err) != apperrors.CodeAlreadyTerminal {
		t.Fatalf("expire after complete code = %v, want ALREADY_TERMINAL", apperrors.CodeOf(err))
	}

	broken, err := letter.Break(fixedClock(createdAt))
	if err != nil {
		t.Fatalf("break: %v", err)
	}
	if broken.Status != StatusBroken {
		t.Fatalf("broken.Status = %v, want broken", broken.Status)
	}

	expired, err := letter.Expire(fixedClock(createdAt))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired.Status != StatusExpired {
		t.Fatalf("expired.Status = %v, want expired", expired.Status)
	}
}

func TestRecomputeAggregatesMatchesCachedValues(t *testing.T) {
	createdAt := time.Date(2026, 3, 13, 21, 0, 0, 0, time.UTC)
	letter := startTestChain(t, createdAt)

	contents := []string{
		"It opened anyway.",
		"Something kept the hinges oiled.",
		"We counted thirteen footsteps going down.",
		"Nobody counted them coming back up.",
	}
	for index, content := range contents {
		next, _, err := letter.AppendChapter(ChapterInput{
			Content:  content,
			AuthorID: letter.CurrentHolderID,
		}, fixedClock(createdAt.Add(time.Duration(index)*time.Hour)), sequenceIDs("chapter-extra"))
		if err != nil {
			t.Fatalf("append chapter %d: %v", index+2, err)
		}
		letter = next
	}

	derived := RecomputeAggregates(letter.Chapters)
	if derived.ChainLength != letter.ChainLength {
		t.Fatalf("derived.ChainLength = %d, want %d", derived.ChainLength, letter.ChainLength)
	}
	if derived.TotalWords != letter.TotalWords {
		t.Fatalf("derived.TotalWords = %d, want %d", derived.TotalWords, letter.TotalWords)
	}
	if derived.CurseLevel != letter.CurseLevel {
		t.Fatalf("derived.CurseLevel = %d, want %d", derived.CurseLevel, letter.CurseLevel)
	}
}

func TestGenreAndStatusLabels(t *testing.T) {
	if got := GenreFromLabel(" horror "); got != GenreHorror {
		t.Fatalf("GenreFromLabel(horror) = %v, want GenreHorror", got)
	}
	if got := GenreLabel(GenreRomance); got != "ROMANCE" {
		t.Fatalf("GenreLabel(GenreRomance) = %q, want ROMANCE", got)
	}
	if got := StatusFromLabel("broken"); got != StatusBroken {
		t.Fatalf("StatusFromLabel(broken) = %v, want StatusBroken", got)
	}
	if got := StatusLabel(StatusExpired); got != "EXPIRED" {
		t.Fatalf("StatusLabel(StatusExpired) = %q, want EXPIRED", got)
	}
	if StatusActive.IsTerminal() {
		t.Fatal("active status must not be terminal")
	}
	for _, status := range []Status{StatusCompleted, StatusBroken, StatusExpired} {
		if !status.IsTerminal() {
			t.Fatalf("status %v must be terminal", status)
		}
	}
}
