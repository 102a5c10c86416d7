package httpapi

import (
	"time"

	"github.com/gravemark/ink/internal/services/chain/domain/chain"
	"github.com/gravemark/ink/internal/services/chain/domain/invitation"
	"github.com/gravemark/ink/internal/services/chain/domain/session"
	"github.com/gravemark/ink/internal/services/chain/domain/stats"
	"github.com/gravemark/ink/internal/services/chain/storage"
)

type chapterView struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"authorId"`
	Content       string    `json:"content"`
	ChapterNumber int       `json:"chapterNumber"`
	WordCount     int       `json:"wordCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type chainView struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Genre           string        `json:"genre"`
	OriginatorID    string        `json:"originatorId"`
	CurrentHolderID string        `json:"currentHolderId"`
	Status          string        `json:"status"`
	Chapters        []chapterView `json:"chapters"`
	ChainLength     int           `json:"chainLength"`
	TotalWords      int           `json:"totalWords"`
	CurseLevel      int           `json:"curseLevel"`
	CursedBy        []string      `json:"cursedBy"`
	CreatedAt       time.Time     `json:"createdAt"`
	LastPassedAt    time.Time     `json:"lastPassedAt"`
	ExpiresAt       time.Time     `json:"expiresAt"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
	Version         int64         `json:"version"`
}

func newChainView(record storage.ChainRecord) chainView {
	letter := record.Chain
	chapters := make([]chapterView, 0, len(letter.Chapters))
	for _, chapter := range letter.Chapters {
		chapters = append(chapters, chapterView{
			ID:            chapter.ID,
			AuthorID:      chapter.AuthorID,
			Content:       chapter.Content,
			ChapterNumber: chapter.ChapterNumber,
			WordCount:     chapter.WordCount,
			CreatedAt:     chapter.CreatedAt,
		})
	}
	return chainView{
		ID:              letter.ID,
		Title:           letter.Title,
		Genre:           chain.GenreLabel(letter.Genre),
		OriginatorID:    letter.OriginatorID,
		CurrentHolderID: letter.CurrentHolderID,
		Status:          chain.StatusLabel(letter.Status),
		Chapters:        chapters,
		ChainLength:     letter.ChainLength,
		TotalWords:      letter.TotalWords,
		CurseLevel:      letter.CurseLevel,
		CursedBy:        letter.CursedBy,
		CreatedAt:       letter.CreatedAt,
		LastPassedAt:    letter.LastPassedAt,
		ExpiresAt:       letter.ExpiresAt,
		CompletedAt:     letter.CompletedAt,
		Version:         record.Version,
	}
}

type invitationView struct {
	ID           string     `json:"id"`
	ChainID      string     `json:"chainId"`
	FromUserID   string     `json:"fromUserId"`
	ToUserID     string     `json:"toUserId"`
	Status       string     `json:"status"`
	ChapterCount int        `json:"chapterCount"`
	Preview      string     `json:"preview"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	RespondedAt  *time.Time `json:"respondedAt,omitempty"`
}

func newInvitationView(record storage.InvitationRecord) invitationView {
	invite := record.Invitation
	return invitationView{
		ID:           invite.ID,
		ChainID:      invite.ChainID,
		FromUserID:   invite.FromUserID,
		ToUserID:     invite.ToUserID,
		Status:       invitation.StatusLabel(invite.Status),
		ChapterCount: invite.ChapterCount,
		Preview:      invite.Preview,
		CreatedAt:    invite.CreatedAt,
		ExpiresAt:    invite.ExpiresAt,
		RespondedAt:  invite.RespondedAt,
	}
}

type participantView struct {
	UserID       string     `json:"userId"`
	DisplayName  string     `json:"displayName"`
	JoinedAt     time.Time  `json:"joinedAt"`
	SegmentCount int        `json:"segmentCount"`
	IsLost       bool       `json:"isLost"`
	LostAt       *time.Time `json:"lostAt,omitempty"`
	LostReason   string     `json:"lostReason,omitempty"`
}

type segmentView struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"authorId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	Hash           string    `json:"hash"`
	IsGhostSegment bool      `json:"isGhostSegment"`
	GhostFragment  string    `json:"ghostFragment,omitempty"`
	WordCount      int       `json:"wordCount"`
	CharacterCount int       `json:"characterCount"`
}

func newSegmentView(segment session.Segment) segmentView {
	return segmentView{
		ID:             segment.ID,
		AuthorID:       segment.AuthorID,
		Content:        segment.Content,
		CreatedAt:      segment.CreatedAt,
		Hash:           segment.Hash,
		IsGhostSegment: segment.IsGhostSegment,
		GhostFragment:  segment.GhostFragment,
		WordCount:      segment.WordCount,
		CharacterCount: segment.CharacterCount,
	}
}

type sessionView struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Participants        []participantView `json:"participants"`
	Segments            []segmentView     `json:"segments"`
	Status              string            `json:"status"`
	CurrentTurn         string            `json:"currentTurn,omitempty"`
	TurnStartedAt       *time.Time        `json:"turnStartedAt,omitempty"`
	TurnTimeLimitSecs   int               `json:"turnTimeLimitSeconds"`
	EnableGhostSegments bool              `json:"enableGhostSegments"`
	GhostSegmentChance  float64           `json:"ghostSegmentChance"`
	CreatedAt           time.Time         `json:"createdAt"`
	CompletedAt         *time.Time        `json:"completedAt,omitempty"`
	Version             int64             `json:"version"`
}

func newSessionView(record storage.SessionRecord) sessionView {
	s := record.Session
	participants := make([]participantView, 0, len(s.Participants))
	for _, participant := range s.Participants {
		participants = append(participants, participantView{
			UserID:       participant.UserID,
			DisplayName:  participant.DisplayName,
			JoinedAt:     participant.JoinedAt,
			SegmentCount: participant.SegmentCount,
			IsLost:       participant.IsLost,
			LostAt:       participant.LostAt,
			LostReason:   participant.LostReason,
		})
	}
	segments := make([]segmentView, 0, len(s.Segments))
	for _, segment := range s.Segments {
		segments = append(segments, newSegmentView(segment))
	}
	view := sessionView{
		ID:                  s.ID,
		Title:               s.Title,
		Participants:        participants,
		Segments:            segments,
		Status:              session.StatusLabel(s.Status),
		CurrentTurn:         s.CurrentTurn,
		TurnTimeLimitSecs:   int(s.TurnTimeLimit.Seconds()),
		EnableGhostSegments: s.EnableGhostSegments,
		GhostSegmentChance:  s.GhostSegmentChance,
		CreatedAt:           s.CreatedAt,
		CompletedAt:         s.CompletedAt,
		Version:             record.Version,
	}
	if !s.TurnStartedAt.IsZero() {
		turnStartedAt := s.TurnStartedAt
		view.TurnStartedAt = &turnStartedAt
	}
	return view
}

type userStatsView struct {
	UserID               string `json:"userId"`
	ChainsStarted        int    `json:"chainsStarted"`
	ChainsContributed    int    `json:"chainsContributed"`
	ChainsCompleted      int    `json:"chainsCompleted"`
	ChainsBroken         int    `json:"chainsBroken"`
	TotalChaptersWritten int    `json:"totalChaptersWritten"`
	TotalWordsInChains   int    `json:"totalWordsInChains"`
	InvitationsSent      int    `json:"invitationsSent"`
	InvitationsReceived  int    `json:"invitationsReceived"`
	InvitationsAccepted  int    `json:"invitationsAccepted"`
	LongestChain         int    `json:"longestChain"`
	HighestCurseLevel    int    `json:"highestCurseLevel"`
}

func newUserStatsView(record stats.UserStats) userStatsView {
	return userStatsView(record)
}
