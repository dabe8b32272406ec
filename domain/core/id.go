package core

import (
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// namespace for name-based (v5) identifiers; fixed so IDs are stable across runs
var namespace = uuid.MustParse("6f1c3e0a-4f7d-5b8e-9a51-2d0c8b7e4a10")

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// DeriveID creates a deterministic identifier from the given key parts.
// Equal parts always produce the same ID.
func DeriveID(parts ...string) ID {
	return ID(uuid.NewSHA1(namespace, []byte(strings.Join(parts, "\x1f"))).String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	TaskID ID
	RunID  ID
)

func (id TaskID) String() string { return ID(id).String() }
func (id RunID) String() string  { return ID(id).String() }
