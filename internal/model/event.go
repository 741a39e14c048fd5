package model

import "time"

// LifecyclePhase labels coordinator progress events.
type LifecyclePhase string

const (
	PhaseQueued       LifecyclePhase = "queued"
	PhaseScanning     LifecyclePhase = "scanning"
	PhaseStrategizing LifecyclePhase = "strategizing"
	PhasePersisting   LifecyclePhase = "persisting"
	PhaseSeeding      LifecyclePhase = "seeding"
	PhaseComplete     LifecyclePhase = "complete"
	PhaseError        LifecyclePhase = "error"
)

// LifecycleEvent is a coarse progress report addressed by subject id.
type LifecycleEvent struct {
	SubjectID string         `json:"subject_id"`
	Phase     LifecyclePhase `json:"phase"`
	Progress  int            `json:"progress_percentage"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}
