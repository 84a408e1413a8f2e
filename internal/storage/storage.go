package storage

import (
	"context"
	"errors"
	"time"

	"github.com/michaelbrown/mentor/internal/sandbox"
)

// ErrNotFound is returned when no script matches an ID or prefix.
var ErrNotFound = errors.New("script not found")

// LanguageJavaScript is the only language the sandbox runs.
const LanguageJavaScript = "javascript"

// Script is a saved piece of learner code.
type Script struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScriptListOptions controls filtering and pagination for ListScripts.
type ScriptListOptions struct {
	Query  string // Case-insensitive title substring
	Limit  int
	Offset int
}

// Store is the persistence interface for saved scripts and their last run.
type Store interface {
	// CreateScript inserts a new script. The ID field must be set by the caller.
	CreateScript(ctx context.Context, s *Script) error

	// GetScript returns a script by ID or ID prefix.
	GetScript(ctx context.Context, id string) (*Script, error)

	// ListScripts returns scripts ordered by updated_at descending.
	ListScripts(ctx context.Context, opts ScriptListOptions) ([]Script, error)

	// UpdateScript updates mutable fields (title, code, updated_at).
	UpdateScript(ctx context.Context, s *Script) error

	// DeleteScript removes a script and its recorded run.
	DeleteScript(ctx context.Context, id string) error

	// SaveRun records the latest result for a script, replacing any earlier one.
	SaveRun(ctx context.Context, scriptID string, result sandbox.Result) error

	// LastRun returns the recorded result, or nil if the script was never run.
	LastRun(ctx context.Context, scriptID string) (*sandbox.Result, error)

	// Close releases resources.
	Close() error
}
