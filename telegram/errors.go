package telegram

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for well-known Bot API failure modes. An *APIError
// wraps the matching sentinel, so callers test with errors.Is.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrChatNotFound       = errors.New("chat not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrRestrictAdmin      = errors.New("cannot restrict an administrator")
	ErrInsufficientRights = errors.New("not enough rights")
	ErrDeleteMessage      = errors.New("message cannot be deleted")
	ErrInvalidFileID      = errors.New("invalid file id")
	ErrFilePath           = errors.New("file path missing or expired")
	ErrJoinRequestGone    = errors.New("join request not found")
	ErrAlreadyParticipant = errors.New("user already a participant")
)

// APIError is returned when the Bot API answers with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	kind        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api request %q failed: %s", e.Method, e.Description)
}

// Unwrap exposes the classified sentinel, if any.
func (e *APIError) Unwrap() error {
	return e.kind
}

// newAPIError builds an *APIError and classifies its description into
// one of the sentinel errors above. The Bot API reports failure modes
// only through human-readable descriptions, so substring matching is
// the wire contract here.
func newAPIError(method string, code int, description string) *APIError {
	e := &APIError{Method: method, Code: code, Description: description}
	switch {
	case strings.Contains(description, "user not found"):
		e.kind = ErrUserNotFound
	case strings.Contains(description, "chat not found"):
		e.kind = ErrChatNotFound
	case strings.Contains(description, "message to edit not found"),
		strings.Contains(description, "message to forward not found"):
		e.kind = ErrMessageNotFound
	case strings.Contains(description, "user is an administrator"),
		strings.Contains(description, "can't remove chat owner"):
		e.kind = ErrRestrictAdmin
	case strings.Contains(description, "not enough rights to restrict/unrestrict chat member"):
		e.kind = ErrInsufficientRights
	case strings.Contains(description, "not enough rights"):
		e.kind = ErrRestrictAdmin
	case strings.Contains(description, "message can't be deleted"),
		strings.Contains(description, "message to delete not found"),
		strings.Contains(description, "message identifier is not specified"):
		e.kind = ErrDeleteMessage
	case strings.Contains(description, "invalid file_id"):
		e.kind = ErrInvalidFileID
	case strings.Contains(description, "USER_ALREADY_PARTICIPANT"):
		e.kind = ErrAlreadyParticipant
	case strings.Contains(description, "USER_ID_INVALID"),
		strings.Contains(description, "HIDE_REQUESTER_MISSING"):
		e.kind = ErrJoinRequestGone
	}
	return e
}
