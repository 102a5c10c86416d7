// Package errors provides structured error handling for the chain engine.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Identity errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"

	// Chain errors
	CodeInvalidContent         Code = "INVALID_CONTENT"
	CodeChainEmptyTitle        Code = "CHAIN_EMPTY_TITLE"
	CodeChainInvalidGenre      Code = "CHAIN_INVALID_GENRE"
	CodeNotHolder              Code = "NOT_HOLDER"
	CodeAlreadyTerminal        Code = "ALREADY_TERMINAL"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"

	// Invitation errors
	CodeInvitationExpired        Code = "INVITATION_EXPIRED"
	CodeInvitationPendingExists  Code = "INVITATION_PENDING_EXISTS"
	CodeInvitationEmptyRecipient Code = "INVITATION_EMPTY_RECIPIENT"

	// Session errors
	CodeSessionEmptyTitle       Code = "SESSION_EMPTY_TITLE"
	CodeSessionNotActive        Code = "SESSION_NOT_ACTIVE"
	CodeSessionNotWaiting       Code = "SESSION_NOT_WAITING"
	CodeSessionNoEligibleTurn   Code = "SESSION_NO_ELIGIBLE_TURN"
	CodeSessionInvalidTurnLimit Code = "SESSION_INVALID_TURN_LIMIT"
	CodeSessionInvalidChance    Code = "SESSION_INVALID_CHANCE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Random/seed errors
	CodeSeedUnavailable Code = "SEED_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeInvalidContent,
		CodeChainEmptyTitle,
		CodeChainInvalidGenre,
		CodeInvitationEmptyRecipient,
		CodeSessionEmptyTitle,
		CodeSessionInvalidTurnLimit,
		CodeSessionInvalidChance:
		return http.StatusBadRequest

	// Unauthorized/Forbidden - identity does not allow operation
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden,
		CodeNotHolder:
		return http.StatusForbidden

	// Conflict - state doesn't allow operation
	case CodeAlreadyTerminal,
		CodeInvitationExpired,
		CodeInvitationPendingExists,
		CodeSessionNotActive,
		CodeSessionNotWaiting,
		CodeSessionNoEligibleTurn,
		CodeConcurrentModification:
		return http.StatusConflict

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
