package domain

import "errors"

var (
	// ConnectionError family.
	ErrNotConnected     = errors.New("not connected to session")
	ErrAlreadyConnected = errors.New("already connected")
	ErrJoinWindowClosed = errors.New("session is outside its join window")

	// PermissionDenied family.
	ErrPermissionDenied    = errors.New("permission denied")
	ErrScreenAlreadyShared = errors.New("screen already shared")

	ErrStaleEvent         = errors.New("stale event")
	ErrOptimisticRollback = errors.New("media call failed, flag rolled back")

	ErrEmptyMessage   = errors.New("message empty")
	ErrMessageTooLong = errors.New("message too long")
	ErrUnknownKind    = errors.New("unknown media kind")
	ErrUnknownAction  = errors.New("unknown moderation action")
)
