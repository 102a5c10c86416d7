// Package invitation models custody handoff offers between writers.
package invitation

import (
	"strings"
	"time"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
	"github.com/gravemark/ink/internal/platform/id"
)

// Window is how long a pending invitation stays acceptable.
const Window = 48 * time.Hour

// PreviewLimit bounds the snapshot of the latest chapter, in runes.
const PreviewLimit = 200

var (
	// ErrEmptyChainID indicates a missing chain reference.
	ErrEmptyChainID = apperrors.New(apperrors.CodeNotFound, "chain id is required")
	// ErrEmptySender indicates a missing sender identity.
	ErrEmptySender = apperrors.New(apperrors.CodeUnauthenticated, "sender id is required")
	// ErrEmptyRecipient indicates a missing recipient identity.
	ErrEmptyRecipient = apperrors.New(apperrors.CodeInvitationEmptyRecipient, "recipient id is required")
	// ErrNotPending indicates the invitation already reached a terminal state
	// or its acceptance window lapsed.
	ErrNotPending = apperrors.New(apperrors.CodeInvitationExpired, "invitation is no longer pending")
	// ErrWrongRecipient indicates the caller is not the invited writer.
	ErrWrongRecipient = apperrors.New(apperrors.CodeForbidden, "invitation belongs to another writer")
)

// Status describes the lifecycle state of an invitation.
type Status int

const (
	// StatusUnspecified represents an invalid status value.
	StatusUnspecified Status = iota
	// StatusPending indicates the invitation awaits a response.
	StatusPending
	// StatusAccepted indicates the recipient took custody.
	StatusAccepted
	// StatusDeclined indicates the recipient refused custody.
	StatusDeclined
	// StatusExpired indicates the acceptance window lapsed.
	StatusExpired
)

// IsTerminal reports whether the status permits no further response.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusDeclined, StatusExpired:
		return true
	default:
		return false
	}
}

// StatusLabel returns the string label for an invitation status.
func StatusLabel(status Status) string {
	switch status {
	case StatusPending:
		return "PENDING"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusDeclined:
		return "DECLINED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PENDING":
		return StatusPending
	case "ACCEPTED":
		return StatusAccepted
	case "DECLINED":
		return StatusDeclined
	case "EXPIRED":
		return StatusExpired
	default:
		return StatusUnspecified
	}
}

// Invitation is an offer to take custody of a chain letter. ChapterCount and
// Preview are snapshots taken at creation and never refreshed.
type Invitation struct {
	ID           string
	ChainID      string
	FromUserID   string
	ToUserID     string
	Status       Status
	ChapterCount int
	Preview      string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	RespondedAt  *time.Time
}

// CreateInput describes the metadata needed to create an invitation.
type CreateInput struct {
	ChainID      string
	FromUserID   string
	ToUserID     string
	ChapterCount int
	LastChapter  string
}

// Create creates a pending invitation with a 48 hour acceptance window.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Invitation, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Invitation{}, err
	}

	invitationID, err := idGenerator()
	if err != nil {
		return Invitation{}, apperrors.Wrap(apperrors.CodeUnknown, "generate invitation id", err)
	}

	createdAt := now().UTC()
	return Invitation{
		ID:           invitationID,
		ChainID:      normalized.ChainID,
		FromUserID:   normalized.FromUserID,
		ToUserID:     normalized.ToUserID,
		Status:       StatusPending,
		ChapterCount: normalized.ChapterCount,
		Preview:      Preview(normalized.LastChapter),
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(Window),
	}, nil
}

// NormalizeCreateInput trims and validates invitation creation metadata.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.ChainID = strings.TrimSpace(input.ChainID)
	if input.ChainID == "" {
		return CreateInput{}, ErrEmptyChainID
	}
	input.FromUserID = strings.TrimSpace(input.FromUserID)
	if input.FromUserID == "" {
		return CreateInput{}, ErrEmptySender
	}
	input.ToUserID = strings.TrimSpace(input.ToUserID)
	if input.ToUserID == "" {
		return CreateInput{}, ErrEmptyRecipient
	}
	if input.ToUserID == input.FromUserID {
		return CreateInput{}, apperrors.New(apperrors.CodeInvitationEmptyRecipient, "cannot invite yourself")
	}
	if input.ChapterCount < 0 {
		input.ChapterCount = 0
	}
	return input, nil
}

// Preview truncates chapter content to the snapshot limit, rune-safe.
func Preview(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= PreviewLimit {
		return content
	}
	return string(runes[:PreviewLimit])
}

// Accept marks the invitation accepted by its recipient. The caller commits
// the returned invitation and the custody transfer in one transaction.
func (i Invitation) Accept(asUserID string, now func() time.Time) (Invitation, error) {
	if now == nil {
		now = time.Now
	}

	respondedAt := now().UTC()
	if i.Status != StatusPending || !respondedAt.Before(i.ExpiresAt) {
		return Invitation{}, ErrNotPending
	}
	if strings.TrimSpace(asUserID) != i.ToUserID {
		return Invitation{}, ErrWrongRecipient
	}

	i.Status = StatusAccepted
	i.RespondedAt = &respondedAt
	return i, nil
}

// Decline marks the invitation declined by its recipient.
func (i Invitation) Decline(asUserID string, now func() time.Time) (Invitation, error) {
	if now == nil {
		now = time.Now
	}

	respondedAt := now().UTC()
	if i.Status != StatusPending || !respondedAt.Before(i.ExpiresAt) {
		return Invitation{}, ErrNotPending
	}
	if strings.TrimSpace(asUserID) != i.ToUserID {
		return Invitation{}, ErrWrongRecipient
	}

	i.Status = StatusDeclined
	i.RespondedAt = &respondedAt
	return i, nil
}

// Expire marks a pending invitation expired once its window has lapsed.
func (i Invitation) Expire(now func() time.Time) (Invitation, error) {
	if now == nil {
		now = time.Now
	}

	expiredAt := now().UTC()
	if i.Status != StatusPending {
		return Invitation{}, ErrNotPending
	}
	if expiredAt.Before(i.ExpiresAt) {
		return Invitation{}, apperrors.New(apperrors.CodeInvitationExpired, "invitation window has not lapsed")
	}

	i.Status = StatusExpired
	i.RespondedAt = &expiredAt
	return i, nil
}
