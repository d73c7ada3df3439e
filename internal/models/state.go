package models

import (
	"time"
)

// SetupState is the body of the setup marker. Only the marker's existence is
// consulted; the body is for operators.
type SetupState struct {
	RunID       string    `yaml:"run_id" json:"runId"`
	CompletedAt time.Time `yaml:"completed_at" json:"completedAt"`
	Services    []string  `yaml:"services" json:"services"`
}
