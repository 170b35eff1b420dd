package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no link exists for a key
	ErrNotFound = errors.New("link not found")

	// ErrConflict is returned when a link already exists for a forward location
	ErrConflict = errors.New("link already exists for forward location")

	// ErrAlreadyResolved is returned when resolving a link that is not pending
	ErrAlreadyResolved = errors.New("link already resolved")

	// ErrDelivery marks a failed outbound send
	ErrDelivery = errors.New("delivery failed")

	// ErrLinkNotPersisted marks a forwarded copy that has no route back
	ErrLinkNotPersisted = errors.New("forwarded but link not persisted")
)

// LinkPersistError reports a forward that succeeded without a stored link
type LinkPersistError struct {
	Forward Location
	Err     error
}

func (e *LinkPersistError) Error() string {
	return fmt.Sprintf("forwarded to %s but failed to persist link: %v", e.Forward, e.Err)
}

func (e *LinkPersistError) Unwrap() []error {
	return []error{ErrLinkNotPersisted, e.Err}
}
