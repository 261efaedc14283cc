package miner

import (
	"time"

	"github.com/google/uuid"
)

// Session is the mutable mining session state. It is owned exclusively by
// the loop and handed to the checkpoint store as a snapshot at save points.
type Session struct {
	ID             string          `json:"id"`
	StartedAt      time.Time       `json:"started_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Accepted       int             `json:"accepted"`
	Abandoned      int             `json:"abandoned"`
	CurrentDataset string          `json:"current_dataset"`
	CurrentAttempt int             `json:"current_attempt"`
	AcceptedKeys   map[string]bool `json:"accepted_keys"`
}

// NewSession creates a fresh session
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		StartedAt:    now,
		UpdatedAt:    now,
		AcceptedKeys: make(map[string]bool),
	}
}

// acceptedKey identifies an accepted candidate across resumed runs
func acceptedKey(datasetID, expression string) string {
	return datasetID + "|" + expression
}

// MarkAccepted records an acceptance
func (s *Session) MarkAccepted(datasetID, expression string) {
	if s.AcceptedKeys == nil {
		s.AcceptedKeys = make(map[string]bool)
	}
	s.AcceptedKeys[acceptedKey(datasetID, expression)] = true
	s.Accepted++
	s.UpdatedAt = time.Now()
}

// AlreadyAccepted reports whether an expression was accepted before,
// guarding against duplicate re-acceptance after a resume
func (s *Session) AlreadyAccepted(datasetID, expression string) bool {
	return s.AcceptedKeys[acceptedKey(datasetID, expression)]
}

// Clone returns a deep copy safe to hand to other goroutines
func (s *Session) Clone() *Session {
	copied := *s
	copied.AcceptedKeys = make(map[string]bool, len(s.AcceptedKeys))
	for k, v := range s.AcceptedKeys {
		copied.AcceptedKeys[k] = v
	}
	return &copied
}
