package guidance

import (
	"context"

	"github.com/dpup/geonav/server/internal/lib/navigation"
)

// RuleCondenser derives cues deterministically from the instruction text
type RuleCondenser struct{}

// NewRuleCondenser creates a rule based condenser
func NewRuleCondenser() *RuleCondenser {
	return &RuleCondenser{}
}

// Condense implements Condenser. It never fails.
func (RuleCondenser) Condense(_ context.Context, instruction string) (Cue, error) {
	return ruleCue(instruction), nil
}

// HealthCheck implements Condenser
func (RuleCondenser) HealthCheck(context.Context) error {
	return nil
}

func ruleCue(instruction string) Cue {
	maneuver, street := navigation.SplitInstruction(StripMarkup(instruction))
	text := maneuver
	if runes := []rune(text); len(runes) > MaxCueLength {
		text = string(runes[:MaxCueLength-3]) + "..."
	}
	return Cue{
		Text:     text,
		Maneuver: maneuver,
		Street:   street,
		Source:   SourceRule,
	}
}
