package registry

import "errors"

var (
	// ErrNotFound is returned by Find when no entry matches (kind, name).
	ErrNotFound = errors.New("registry: not found")

	// ErrAlreadyExists is returned by Create when (kind, name) is already
	// occupied.
	ErrAlreadyExists = errors.New("registry: already exists")

	// ErrTypeMismatch is returned when a handle is requested with a Go type
	// different from the one recorded when the entry was created. The type
	// tag is always recorded and always checked.
	ErrTypeMismatch = errors.New("registry: type mismatch")

	// ErrEmptyHandle is returned by operations performed on a handle that
	// does not point to a live entry.
	ErrEmptyHandle = errors.New("registry: empty handle access")

	// ErrInvalidKind is returned when an ObjectKind outside the closed
	// enumeration is used.
	ErrInvalidKind = errors.New("registry: invalid kind")
)
