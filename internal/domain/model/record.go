// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Domain ranges for the tracked tiers.
const (
	MinLevel = 1
	MaxLevel = 10
	MinMood  = 1
	MaxMood  = 4
)

// Key is the composite identity of a ClientRecord within one dataset.
type Key struct {
	OwnerID  string
	ClientID string
}

func (k Key) String() string { return k.OwnerID + "/" + k.ClientID }

// ClientRecord is one tracked owner/client relationship.
// JSON names follow the record store document so exported datasets can be
// fed back without translation.
type ClientRecord struct {
	OwnerID           string    `json:"playerId" validate:"required"`
	ClientID          string    `json:"cliente_id" validate:"required"`
	DisplayName       string    `json:"nome_cliente,omitempty"`
	Level             int       `json:"nivel" validate:"min=1,max=10"`
	Mood              int       `json:"humor" validate:"min=1,max=4"`
	AtRisk            bool      `json:"risco_cancelamento"`
	LastInteractionAt time.Time `json:"ultima_interacao,omitzero"`
	StorageKey        string    `json:"_id,omitempty"`
}

// Key returns the record identity.
func (r ClientRecord) Key() Key {
	return Key{OwnerID: r.OwnerID, ClientID: r.ClientID}
}

// Label is the human label, falling back to the client id.
func (r ClientRecord) Label() string {
	if strings.TrimSpace(r.DisplayName) != "" {
		return r.DisplayName
	}
	return r.ClientID
}

var recordValidate = validator.New()

// Validate reports whether r can be classified. The returned error wraps
// ErrMalformedRecord and names every offending field.
func (r ClientRecord) Validate() error {
	err := recordValidate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %s: %v", ErrMalformedRecord, r.Key(), err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformedRecord, r.Key(), strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s=%v outside allowed range", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// Index maps every key in records to its position. Duplicate keys fail with
// a *CollisionError naming dataset.
func Index(dataset string, records []ClientRecord) (map[Key]int, error) {
	idx := make(map[Key]int, len(records))
	for i, r := range records {
		k := r.Key()
		if first, dup := idx[k]; dup {
			return nil, &CollisionError{Dataset: dataset, Key: k, First: first, Second: i}
		}
		idx[k] = i
	}
	return idx, nil
}

// Clone returns a copy of records that shares no backing array with the input.
func Clone(records []ClientRecord) []ClientRecord {
	if records == nil {
		return nil
	}
	out := make([]ClientRecord, len(records))
	copy(out, records)
	return out
}
