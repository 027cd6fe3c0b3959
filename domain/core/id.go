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

// Short returns the first eight characters, used in logs and file names.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Domain-specific ID types
type (
	DatasetID  ID
	SessionID  ID
	RunID      ID
	AnalysisID string
)

func (id DatasetID) String() string  { return ID(id).String() }
func (id SessionID) String() string  { return ID(id).String() }
func (id RunID) String() string      { return ID(id).String() }
func (id AnalysisID) String() string { return string(id) }

// NewDatasetID returns a fresh dataset identity. Every load gets its own,
// even when the same file is loaded twice.
func NewDatasetID() DatasetID { return DatasetID(NewID()) }

// NewSessionID returns a fresh browser session identity.
func NewSessionID() SessionID { return SessionID(NewID()) }

// NewRunID returns a fresh run identity.
func NewRunID() RunID { return RunID(NewID()) }

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid session ID %q: %w", s, err)
	}
	return SessionID(s), nil
}

// ParseAnalysisID parses a string into AnalysisID
func ParseAnalysisID(s string) (AnalysisID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("analysis ID cannot be empty")
	}
	return AnalysisID(s), nil
}
