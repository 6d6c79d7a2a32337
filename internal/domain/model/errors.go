package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMalformedRecord   = errors.New("malformed record")
	ErrIdentityCollision = errors.New("identity collision")
)

// CollisionError reports two records of one dataset sharing a Key.
type CollisionError struct {
	Dataset string
	Key     Key
	First   int
	Second  int
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %s dataset has %s at positions %d and %d",
		ErrIdentityCollision, e.Dataset, e.Key, e.First, e.Second)
}

func (e *CollisionError) Unwrap() error { return ErrIdentityCollision }
