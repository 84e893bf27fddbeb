package moderation

import (
	"errors"
	"fmt"
)

var (
	ErrCaseNotFound           = errors.New("case not found")
	ErrTempBanNotFound        = errors.New("temp ban not found")
	ErrTempBanExpiryNotFuture = errors.New("temp ban expiry must be in the future")

	ErrInvalidReason   = errors.New("invalid reason")
	ErrInvalidDuration = errors.New("invalid duration")

	// Platform failures the adapters translate their API errors into.
	ErrDMBlocked       = errors.New("user has direct messages disabled")
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrBanNotFound     = errors.New("ban not found")

	ErrTargetIsSelf    = errors.New("you can't moderate yourself")
	ErrTargetIsOwner   = errors.New("the server owner can't be moderated")
	ErrTargetIsBot     = errors.New("this bot can't moderate itself")
	ErrHierarchy       = errors.New("target has an equal or higher role than you")
	ErrTargetNotMember = errors.New("target is not a member of this server")
)

// ValidationError is returned when an action is rejected before any side
// effect happened.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// EnactError is returned when the platform rejected the mutation. The case
// record already existed at that point.
type EnactError struct {
	Action ActionType
	Err    error
}

func (e *EnactError) Error() string {
	return fmt.Sprintf("Discord action failed: %v", e.Err)
}

func (e *EnactError) Unwrap() error { return e.Err }
