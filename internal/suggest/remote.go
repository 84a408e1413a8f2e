package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/michaelbrown/mentor/internal/llm"
)

// ErrNoArray is returned by ParseSuggestions when the text holds no
// bracketed array at all.
var ErrNoArray = errors.New("no JSON array in response")

// UnavailableFallback is returned whenever the remote model cannot be
// reached or answers with something unparseable.
func UnavailableFallback() Suggestion {
	return Suggestion{
		Type:        TypeLearning,
		Title:       "AI Assistant Offline",
		Description: "Don't worry! Use this as an opportunity to debug on your own. Look at error messages carefully and try to understand what they're telling you.",
		CodeExample: "// Debugging tip:\nconsole.log('Check your variables:', yourVariable);",
	}
}

// ExploreFallback is returned when the model answers in prose without any
// suggestion array.
func ExploreFallback() Suggestion {
	return Suggestion{
		Type:        TypeLearning,
		Title:       "Keep Exploring!",
		Description: "The AI is here to help guide your learning journey. Try running your code and see what happens!",
		CodeExample: "// Remember: Learning comes from trying things out!\nconsole.log('Keep coding!');",
	}
}

// Remote asks an LLM for suggestions.
type Remote struct {
	client  llm.Client
	persona *Persona
	timeout time.Duration
}

// NewRemote creates a remote source. A nil persona uses DefaultPersona; a
// zero timeout leaves the deadline to the caller's context.
func NewRemote(client llm.Client, persona *Persona, timeout time.Duration) *Remote {
	if persona == nil {
		persona = DefaultPersona()
	}
	return &Remote{client: client, persona: persona, timeout: timeout}
}

// Suggest sends one request and never fails: every fault maps to one of the
// two fallback suggestions.
func (r *Remote) Suggest(ctx context.Context, script string, errs []string) []Suggestion {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.client.ChatCompletion(ctx, r.messages(script, errs), llm.Options{
		Temperature: r.persona.Temperature,
		TopP:        r.persona.TopP,
		MaxTokens:   r.persona.MaxTokens,
	})
	if err != nil {
		log.Printf("suggest: remote request failed: %v", err)
		return []Suggestion{UnavailableFallback()}
	}

	list, err := ParseSuggestions(resp.Message.Content)
	switch {
	case errors.Is(err, ErrNoArray):
		return []Suggestion{ExploreFallback()}
	case err != nil:
		log.Printf("suggest: %v", err)
		return []Suggestion{UnavailableFallback()}
	}
	return list
}

func (r *Remote) messages(script string, errs []string) []llm.Message {
	return []llm.Message{
		llm.SystemMessage(r.persona.SystemPrompt),
		llm.UserMessage(BuildPrompt(script, errs)),
	}
}

// BuildPrompt renders the user half of the request: the script in a fenced
// block followed by the newline-joined error list.
func BuildPrompt(script string, errs []string) string {
	var b strings.Builder
	b.WriteString("Analyze this JavaScript code and any errors. Give encouraging hints that help the student learn, not complete solutions.\n\n")
	b.WriteString("Code:\n```javascript\n")
	b.WriteString(script)
	b.WriteString("\n```\n\n")
	if len(errs) > 0 {
		b.WriteString("Errors encountered:\n")
		b.WriteString(strings.Join(errs, "\n"))
	} else {
		b.WriteString("No errors detected.")
	}
	b.WriteString("\n\nRemember: guide them with hints and questions, don't solve it for them!")
	return b.String()
}

// ParseSuggestions pulls the JSON array out of free text. The array spans
// from the first '[' to the last ']'; anything around it is discarded.
func ParseSuggestions(text string) ([]Suggestion, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, ErrNoArray
	}

	var list []Suggestion
	if err := json.Unmarshal([]byte(text[start:end+1]), &list); err != nil {
		return nil, fmt.Errorf("parsing suggestion array: %w", err)
	}
	return normalize(list), nil
}
