package chat

import "errors"

// Sentinel errors returned by the chat service. Handlers map these onto
// HTTP status codes with errors.Is.
var (
	// ErrEmptyText is returned when a message trims down to nothing
	ErrEmptyText = errors.New("chat: message text is empty")

	// ErrTextTooLong is returned when a message exceeds the text limit
	ErrTextTooLong = errors.New("chat: message text exceeds the allowed length")

	// ErrMissingTarget is returned when an admin send or read omits the target user
	ErrMissingTarget = errors.New("chat: target user is required")

	// ErrUnauthorized is returned when a non-admin caller hits an admin-only operation
	ErrUnauthorized = errors.New("chat: caller is not allowed to perform this operation")

	// ErrAdminNotConfigured is returned when no support admin account exists
	ErrAdminNotConfigured = errors.New("chat: no support admin is configured")

	// ErrStorageUnavailable is returned when the message log cannot be read or written
	ErrStorageUnavailable = errors.New("chat: message storage unavailable")
)
