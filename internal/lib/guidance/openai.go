package guidance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// SystemPrompt instructs the model to produce overlay cues
const SystemPrompt = `You write the text overlay for an augmented reality walking and driving navigation app.
Given one turn-by-turn instruction from a directions service, produce the shortest phrase a traveler
can read at a glance while looking through their camera.

Return valid JSON object with these exact fields:
- cue (string) – imperative overlay phrase, max 40 chars, no punctuation at the end
- maneuver (string) – the action only, e.g. "Turn left", "Continue", "Merge"
- street (string) – the street or path name, empty if none

Rules:
- No distances, times or destination names in cue
- Keep street names recognizable; abbreviate "Street" to "St", "Avenue" to "Ave"
- Drop notes such as "Destination will be on the right"

Good examples:
- Left on Ocean Ave
- Right onto Main St
- Merge onto I-280 S

Bad examples:
- Turn left in 300 meters onto Ocean Avenue
- Head north toward your destination, which is on the right`

// ErrInvalidCue is returned when the model output cannot be used as a cue
var ErrInvalidCue = errors.New("invalid cue")

// ChatCompleter is the subset of the OpenAI client used for condensing
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// openAICondenser implements the Condenser interface using OpenAI
type openAICondenser struct {
	client ChatCompleter
	model  string
}

// NewOpenAICondenser creates a Condenser backed by the OpenAI chat API.
// An empty API key yields a condenser whose calls fail.
func NewOpenAICondenser(apiKey, model string) Condenser {
	if apiKey == "" {
		return &openAICondenser{model: model}
	}
	return NewOpenAICondenserWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewOpenAICondenserWithConfig creates a Condenser with a custom client configuration
func NewOpenAICondenserWithConfig(cfg openai.ClientConfig, model string) Condenser {
	return &openAICondenser{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

type condensedResponse struct {
	Cue      string `json:"cue"`
	Maneuver string `json:"maneuver"`
	Street   string `json:"street"`
}

// Condense asks the model for an overlay cue
func (o *openAICondenser) Condense(ctx context.Context, instruction string) (Cue, error) {
	if o.client == nil {
		return Cue{}, errors.New("OpenAI client not initialized - missing API key")
	}

	plain := StripMarkup(instruction)
	if plain == "" {
		return Cue{}, fmt.Errorf("%w: empty instruction", ErrInvalidCue)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Instruction: %s", plain),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
		MaxTokens:   100,
	})
	if err != nil {
		return Cue{}, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Cue{}, errors.New("no response from OpenAI API")
	}

	var parsed condensedResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return Cue{}, fmt.Errorf("failed to parse OpenAI JSON response: %w", err)
	}

	text := strings.TrimSpace(parsed.Cue)
	if text == "" || len([]rune(text)) > MaxCueLength {
		return Cue{}, fmt.Errorf("%w: %q", ErrInvalidCue, parsed.Cue)
	}

	// Fill gaps from the deterministic split
	fallback := ruleCue(plain)
	if parsed.Maneuver == "" {
		parsed.Maneuver = fallback.Maneuver
	}

	street := strings.TrimSpace(parsed.Street)
	if street != "" && !strings.HasPrefix(street, "on ") {
		street = "on " + street
	}

	return Cue{
		Text:     text,
		Maneuver: parsed.Maneuver,
		Street:   street,
		Source:   SourceOpenAI,
	}, nil
}

// HealthCheck verifies OpenAI API connectivity
func (o *openAICondenser) HealthCheck(ctx context.Context) error {
	if o.client == nil {
		return errors.New("OpenAI client not initialized")
	}

	_, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Test",
			},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("OpenAI API health check failed: %w", err)
	}

	return nil
}
