package models

import (
	"fmt"
	"time"
)

// ActivityRecord is one entry in the activity broadcast log.
type ActivityRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Type      string    `json:"type"`
	EntityID  string    `json:"entityId,omitempty"`
	Zone      Zone      `json:"zone,omitempty"`
	Payload   string    `json:"payload,omitempty"`
}

// Validate checks if the record is valid.
func (r *ActivityRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	if r.Type == "" {
		return fmt.Errorf("type is required")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}
