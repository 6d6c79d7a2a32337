package change

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package.
var (
	ErrMalformedEvent = errors.New("malformed change event")
	ErrUnknownKind    = errors.New("unknown change kind")
)

func malformed(e Event, reason string) error {
	return fmt.Errorf("%w: %s %T: %s", ErrMalformedEvent, e.Kind(), e, reason)
}
