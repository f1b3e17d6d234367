// Package common defines shared constants and sentinel errors used across
// the chat gateway, the file service and the admin tool. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// storage errors
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// service errors
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// session errors
	ErrAlreadyOnline = errors.New("already online")
	ErrPeerClosed    = errors.New("peer connection closed")

	// friend graph errors
	ErrAlreadyFriends   = errors.New("already friends")
	ErrAlreadyRequested = errors.New("friend request already pending")
	ErrSelfRequest      = errors.New("cannot befriend yourself")
	ErrIndexOutOfRange  = errors.New("index out of range")

	// file service errors
	ErrFileTooLarge = errors.New("file too large")

	// webhook errors
	ErrWebhookNotConfigured = errors.New("webhook not configured")
)
