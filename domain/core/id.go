package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
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
	StudyID ID
	RunID   ID
)

func (id StudyID) String() string { return ID(id).String() }
func (id RunID) String() string   { return ID(id).String() }

func NewStudyID() StudyID { return StudyID(NewID()) }
func NewRunID() RunID     { return RunID(NewID()) }

// ParseStudyID validates a study identifier received from outside the process.
func ParseStudyID(s string) (StudyID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("study id cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid study id %q: %w", s, err)
	}
	return StudyID(s), nil
}
