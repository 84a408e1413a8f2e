package suggest

import (
	"context"
	"log"
	"sync"
)

// State is the orchestrator's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAnalyzing:
		return "analyzing"
	case StateReady:
		return "ready"
	default:
		return "idle"
	}
}

// Orchestrator runs one suggestion cycle per completed execution and
// publishes only the newest cycle's result. Older cycles still in flight
// are cancelled and whatever they return is dropped.
type Orchestrator struct {
	policy Policy
	local  Source
	remote Source // nil when no provider is configured

	mu          sync.Mutex
	state       State
	gen         uint64
	cancel      context.CancelFunc
	suggestions []Suggestion
	ready       chan struct{} // closed when the current generation publishes
	closed      bool
	wg          sync.WaitGroup

	// OnPublish, if set, is called with each published list and the
	// generation it belongs to. It runs outside the orchestrator's lock.
	OnPublish func(gen uint64, list []Suggestion)
}

// NewOrchestrator creates an idle orchestrator. local must not be nil.
func NewOrchestrator(policy Policy, local, remote Source) *Orchestrator {
	if policy == "" {
		policy = PolicyAuto
	}
	return &Orchestrator{
		policy: policy,
		local:  local,
		remote: remote,
	}
}

// Policy returns the configured policy.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// pick returns the single source this cycle will use and whether it is the
// local one.
func (o *Orchestrator) pick() (Source, bool) {
	if o.policy == PolicyHeuristic || o.remote == nil {
		return o.local, true
	}
	return o.remote, false
}

// OnExecutionCompleted starts a new cycle for script and its errors and
// returns the cycle's generation. The heuristic path resolves before this
// returns; the remote path resolves in the background. After Close it starts
// nothing and returns the last generation.
func (o *Orchestrator) OnExecutionCompleted(script string, errs []string) uint64 {
	o.mu.Lock()
	if o.closed {
		gen := o.gen
		o.mu.Unlock()
		return gen
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.gen++
	gen := o.gen
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	if o.state != StateAnalyzing {
		o.ready = make(chan struct{})
	}
	o.state = StateAnalyzing
	src, local := o.pick()
	if !local {
		o.wg.Add(1)
	}
	o.mu.Unlock()

	errs = append([]string(nil), errs...)

	if local {
		o.resolve(gen, cancel, src.Suggest(ctx, script, errs))
		return gen
	}

	go func() {
		defer o.wg.Done()
		o.resolve(gen, cancel, o.runRemote(ctx, src, script, errs))
	}()
	return gen
}

// runRemote calls src, substituting the local source if src panics or
// comes back empty.
func (o *Orchestrator) runRemote(ctx context.Context, src Source, script string, errs []string) (list []Suggestion) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("suggest: remote source panicked: %v", r)
			list = o.local.Suggest(ctx, script, errs)
		}
	}()

	list = src.Suggest(ctx, script, errs)
	if len(list) == 0 {
		list = o.local.Suggest(ctx, script, errs)
	}
	return list
}

// resolve publishes list if gen is still the newest cycle.
func (o *Orchestrator) resolve(gen uint64, cancel context.CancelFunc, list []Suggestion) {
	cancel()

	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.suggestions = Cap(list)
	o.state = StateReady
	o.cancel = nil
	close(o.ready)
	published := Cap(o.suggestions)
	cb := o.OnPublish
	o.mu.Unlock()

	if cb != nil {
		cb(gen, published)
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Analyzing reports whether a cycle is in flight.
func (o *Orchestrator) Analyzing() bool {
	return o.State() == StateAnalyzing
}

// Generation returns the number of cycles started so far.
func (o *Orchestrator) Generation() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen
}

// Suggestions returns a copy of the latest published list.
func (o *Orchestrator) Suggestions() []Suggestion {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Cap(o.suggestions)
}

// Wait blocks until the newest cycle has published, then returns its list.
// An idle orchestrator returns immediately with no suggestions.
func (o *Orchestrator) Wait(ctx context.Context) ([]Suggestion, error) {
	o.mu.Lock()
	ch := o.ready
	o.mu.Unlock()
	if ch == nil {
		return nil, nil
	}

	select {
	case <-ch:
		return o.Suggestions(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels the cycle in flight and waits for background fetches to
// return. Later executions are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Unlock()
	o.wg.Wait()
}
