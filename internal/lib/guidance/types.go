package guidance

import (
	"context"
	"time"
)

// Cue sources
const (
	SourceRule   = "rule"
	SourceOpenAI = "openai"
)

// MaxCueLength bounds the overlay phrase so it fits above the camera view
const MaxCueLength = 40

// Cue is a short phrase rendered in the AR overlay for a route step
type Cue struct {
	Text     string `json:"text"`
	Maneuver string `json:"maneuver"`
	Street   string `json:"street,omitempty"`
	Source   string `json:"source"`
}

// Condenser turns a raw step instruction into an overlay cue
type Condenser interface {
	// Condense a single instruction, which may contain HTML markup
	Condense(ctx context.Context, instruction string) (Cue, error)

	// Health check for the backing service
	HealthCheck(ctx context.Context) error
}

// CueCache stores condensed cues by content hash
type CueCache interface {
	SetCue(contentHash string, cue Cue, ttl time.Duration) error
	GetCue(contentHash string) (Cue, bool, error)
	IsCueCached(contentHash string) bool
}
