package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID is a custom type that wraps a UUID string.
// It provides type-safe UUID generation, validation, and serialization for
// every entity loreguard persists (rules, review entries, events, agents).
type ID string

// NewID generates a new UUID v4 and returns it as an ID.
// uuid.New() uses crypto/rand and only panics on system-level entropy
// failures, so this never returns an error.
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses and validates a string as a UUID, returning an ID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}

	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}

	return ID(parsed.String()), nil
}

// Validate checks if the ID is a valid UUID.
func (id ID) Validate() error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}

	if _, err := uuid.Parse(string(id)); err != nil {
		return fmt.Errorf("invalid UUID format: %w", err)
	}

	return nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty.
func (id ID) IsZero() bool {
	return id == ""
}

// MarshalJSON implements json.Marshaler. Zero IDs serialize as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON implements json.Unmarshaler. null and "" both produce the
// zero ID; anything else must be a valid UUID.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*id = ""
		return nil
	}

	parsed, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
