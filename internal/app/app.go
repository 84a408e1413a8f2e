// Package app assembles the execution engine and suggestion sources from
// configuration. The CLI, the web server and the MCP tool all start here.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/michaelbrown/mentor/internal/capture"
	"github.com/michaelbrown/mentor/internal/config"
	"github.com/michaelbrown/mentor/internal/llm"
	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/suggest"
)

// Options are per-invocation overrides of the loaded config.
type Options struct {
	Provider string
	Model    string
	Policy   string
	Host     capture.Sink // console output outside a run; nil logs it
}

// Mentor holds one engine and the suggestion sources every orchestrator
// it creates shares.
type Mentor struct {
	Engine   *sandbox.Engine
	Local    *suggest.Heuristic
	Remote   suggest.Source // nil when no provider could be configured
	Policy   suggest.Policy
	Provider string
	Model    string
}

// New builds a Mentor from cfg. A missing or unusable provider only disables
// the remote source, unless the caller named that provider explicitly.
func New(cfg *config.Config, opts Options) (*Mentor, error) {
	sandboxPolicy, err := cfg.SandboxPolicy()
	if err != nil {
		return nil, err
	}
	engine, err := sandbox.NewEngine(sandboxPolicy, opts.Host)
	if err != nil {
		return nil, err
	}

	policyName := opts.Policy
	if policyName == "" {
		policyName = cfg.Suggest.Policy
	}
	policy, err := suggest.ParsePolicy(policyName)
	if err != nil {
		return nil, err
	}

	m := &Mentor{
		Engine: engine,
		Local:  suggest.NewHeuristic(),
		Policy: policy,
	}
	if policy == suggest.PolicyHeuristic {
		return m, nil
	}

	if err := m.configureRemote(cfg, opts); err != nil {
		if opts.Provider != "" {
			return nil, err
		}
		log.Printf("Suggestions: remote disabled (%v), using heuristics", err)
	}
	return m, nil
}

func (m *Mentor) configureRemote(cfg *config.Config, opts Options) error {
	name := opts.Provider
	if name == "" {
		name = cfg.Suggest.Provider
	}
	if name == "" {
		name = cfg.DefaultProvider
	}
	provider, err := cfg.Provider(name)
	if err != nil {
		return err
	}

	model := provider.Model(opts.Model)
	if model == "" {
		return fmt.Errorf("provider %s has no model configured", name)
	}

	persona := suggest.DefaultPersona()
	if cfg.Suggest.Persona != "" {
		persona, err = suggest.LoadPersona(cfg.Suggest.Persona)
		if err != nil {
			return err
		}
	}

	client := llm.NewClient(provider.BaseURL, provider.APIKey, model)
	m.Remote = suggest.NewRemote(client, persona, cfg.Suggest.Timeout)
	m.Provider = name
	m.Model = model
	return nil
}

// NewOrchestrator returns an orchestrator using the configured policy.
func (m *Mentor) NewOrchestrator() *suggest.Orchestrator {
	return m.NewOrchestratorWith(m.Policy)
}

// NewOrchestratorWith returns an orchestrator using policy.
func (m *Mentor) NewOrchestratorWith(policy suggest.Policy) *suggest.Orchestrator {
	return suggest.NewOrchestrator(policy, m.Local, m.Remote)
}

// Suggest runs a single suggestion cycle and waits for it.
func (m *Mentor) Suggest(ctx context.Context, policy suggest.Policy, script string, errs []string) ([]suggest.Suggestion, error) {
	if policy == "" {
		policy = m.Policy
	}
	o := m.NewOrchestratorWith(policy)
	defer o.Close()

	o.OnExecutionCompleted(script, errs)
	return o.Wait(ctx)
}

// Describe names the active suggestion source for banners and logs.
func (m *Mentor) Describe() string {
	if m.Remote == nil || m.Policy == suggest.PolicyHeuristic {
		return "heuristic"
	}
	return fmt.Sprintf("%s (%s)", m.Provider, m.Model)
}
