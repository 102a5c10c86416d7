// Package stats models derived per-writer counters. The counters are caches;
// chain, invitation, and session records remain the authoritative truth.
package stats

import (
	"strings"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
)

// Kind names a stat event type.
type Kind string

const (
	// KindChainStarted counts chains a writer originated.
	KindChainStarted Kind = "chain_started"
	// KindChainContributed counts chains a writer took custody of.
	KindChainContributed Kind = "chain_contributed"
	// KindChainCompleted counts chains a writer was cursed by at completion.
	KindChainCompleted Kind = "chain_completed"
	// KindChainBroken counts chains a writer broke.
	KindChainBroken Kind = "chain_broken"
	// KindChapterWritten counts chapters a writer authored.
	KindChapterWritten Kind = "chapter_written"
	// KindWordsWritten accumulates a writer's chapter word counts.
	KindWordsWritten Kind = "words_written"
	// KindInvitationSent counts invitations a writer sent.
	KindInvitationSent Kind = "invitation_sent"
	// KindInvitationReceived counts invitations a writer received.
	KindInvitationReceived Kind = "invitation_received"
	// KindInvitationAccepted counts invitations a writer accepted.
	KindInvitationAccepted Kind = "invitation_accepted"
	// KindLongestChain tracks the longest chain a writer touched.
	KindLongestChain Kind = "longest_chain"
	// KindHighestCurse tracks the highest curse level a writer reached.
	KindHighestCurse Kind = "highest_curse"
)

// IsHighWater reports whether the kind keeps a maximum instead of a sum.
func (k Kind) IsHighWater() bool {
	return k == KindLongestChain || k == KindHighestCurse
}

// Event is one stat increment. The key is a stable identity derived from the
// underlying record, so redelivery of the same event applies at most once.
type Event struct {
	Key    string
	UserID string
	Kind   Kind
	Value  int
}

// NewEvent builds an event keyed by kind, subject record, and writer.
func NewEvent(kind Kind, subjectID, userID string, value int) Event {
	return Event{
		Key:    string(kind) + ":" + subjectID + ":" + userID,
		UserID: userID,
		Kind:   kind,
		Value:  value,
	}
}

// Validate rejects events with no identity or no subject writer.
func Validate(event Event) error {
	if strings.TrimSpace(event.Key) == "" {
		return apperrors.New(apperrors.CodeInvalidContent, "stat event key is required")
	}
	if strings.TrimSpace(event.UserID) == "" {
		return apperrors.New(apperrors.CodeInvalidContent, "stat event user id is required")
	}
	if event.Kind == "" {
		return apperrors.New(apperrors.CodeInvalidContent, "stat event kind is required")
	}
	return nil
}

// UserStats is the derived counter set for one writer.
type UserStats struct {
	UserID               string
	ChainsStarted        int
	ChainsContributed    int
	ChainsCompleted      int
	ChainsBroken         int
	TotalChaptersWritten int
	TotalWordsInChains   int
	InvitationsSent      int
	InvitationsReceived  int
	InvitationsAccepted  int
	LongestChain         int
	HighestCurseLevel    int
}

// Apply folds one event into the counters. Sum kinds add their value; high
// water kinds only ever raise the stored value. Unknown kinds are ignored so
// newer writers can emit kinds older processes do not track yet.
func (s UserStats) Apply(event Event) UserStats {
	switch event.Kind {
	case KindChainStarted:
		s.ChainsStarted += event.Value
	case KindChainContributed:
		s.ChainsContributed += event.Value
	case KindChainCompleted:
		s.ChainsCompleted += event.Value
	case KindChainBroken:
		s.ChainsBroken += event.Value
	case KindChapterWritten:
		s.TotalChaptersWritten += event.Value
	case KindWordsWritten:
		s.TotalWordsInChains += event.Value
	case KindInvitationSent:
		s.InvitationsSent += event.Value
	case KindInvitationReceived:
		s.InvitationsReceived += event.Value
	case KindInvitationAccepted:
		s.InvitationsAccepted += event.Value
	case KindLongestChain:
		if event.Value > s.LongestChain {
			s.LongestChain = event.Value
		}
	case KindHighestCurse:
		if event.Value > s.HighestCurseLevel {
			s.HighestCurseLevel = event.Value
		}
	}
	return s
}
