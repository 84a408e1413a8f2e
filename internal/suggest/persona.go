package suggest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/michaelbrown/mentor/internal/llm"
)

const defaultSystemPrompt = `You are an encouraging JavaScript mentor for beginners. Guide the student toward a fix without ever handing over a finished, working solution.

Rules:
- Never write complete working code for their task.
- Give hints: name the kind of error, say where to look, and suggest which concept to review.
- Ask a leading question when it helps them think.
- Celebrate progress and keep the tone friendly and conversational ("you could try", "what if you").

Reply with a JSON array only, using this shape:
[{"type": "error-fix" | "improvement" | "learning", "title": "Short title", "description": "Guidance without the full answer", "codeExample": "A small partial hint, not a solution"}]`

// Persona is the mentor voice sent to the remote model.
type Persona struct {
	Name         string  `yaml:"name"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
	MaxTokens    int64   `yaml:"max_tokens"`
}

// DefaultPersona returns the built-in hints-only mentor.
func DefaultPersona() *Persona {
	opts := llm.SuggestionOptions()
	return &Persona{
		Name:         "mentor",
		SystemPrompt: defaultSystemPrompt,
		Temperature:  opts.Temperature,
		TopP:         opts.TopP,
		MaxTokens:    opts.MaxTokens,
	}
}

// LoadPersona reads a persona from a YAML file. Fields left empty keep the
// default persona's values.
func LoadPersona(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persona %s: %w", path, err)
	}

	p := DefaultPersona()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing persona %s: %w", path, err)
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = defaultSystemPrompt
	}
	return p, nil
}
