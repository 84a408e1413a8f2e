package suggest

import (
	"context"
	"sync"
	"testing"
	"time"
)

// gatedSource blocks each call until its script is released.
type gatedSource struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	ctxs    map[string]context.Context
	calls   int
	started chan string
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		gates:   make(map[string]chan struct{}),
		ctxs:    make(map[string]context.Context),
		started: make(chan string, 16),
	}
}

func (g *gatedSource) gate(script string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[script]
	if !ok {
		ch = make(chan struct{})
		g.gates[script] = ch
	}
	return ch
}

func (g *gatedSource) release(script string) {
	close(g.gate(script))
}

func (g *gatedSource) ctx(script string) context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ctxs[script]
}

func (g *gatedSource) Suggest(ctx context.Context, script string, _ []string) []Suggestion {
	gate := g.gate(script)
	g.mu.Lock()
	g.calls++
	g.ctxs[script] = ctx
	g.mu.Unlock()
	g.started <- script

	<-gate
	return []Suggestion{{Type: TypeLearning, Title: script, Description: "from " + script}}
}

func (g *gatedSource) waitStarted(t *testing.T, script string) {
	t.Helper()
	select {
	case got := <-g.started:
		if got != script {
			t.Fatalf("started %q, want %q", got, script)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%q never started", script)
	}
}

type panicSource struct{}

func (*panicSource) Suggest(context.Context, string, []string) []Suggestion {
	panic("boom")
}

type emptySource struct{}

func (*emptySource) Suggest(context.Context, string, []string) []Suggestion {
	return nil
}

type publication struct {
	gen  uint64
	list []Suggestion
}

func recordPublications(o *Orchestrator) func() []publication {
	var mu sync.Mutex
	var pubs []publication
	o.OnPublish = func(gen uint64, list []Suggestion) {
		mu.Lock()
		defer mu.Unlock()
		pubs = append(pubs, publication{gen, list})
	}
	return func() []publication {
		mu.Lock()
		defer mu.Unlock()
		return append([]publication(nil), pubs...)
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOrchestratorLateResultDiscarded(t *testing.T) {
	src := newGatedSource()
	o := NewOrchestrator(PolicyRemote, NewHeuristic(), src)
	pubs := recordPublications(o)

	genA := o.OnExecutionCompleted("A", nil)
	src.waitStarted(t, "A")
	genB := o.OnExecutionCompleted("B", nil)
	src.waitStarted(t, "B")
	if genB != genA+1 {
		t.Fatalf("generations = %d, %d", genA, genB)
	}

	src.release("B")
	got, err := o.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(got) != 1 || got[0].Title != "B" {
		t.Fatalf("published %v, want B", titles(got))
	}

	src.release("A")
	o.Close()

	if got := o.Suggestions(); len(got) != 1 || got[0].Title != "B" {
		t.Errorf("after late A, suggestions = %v, want B", titles(got))
	}
	p := pubs()
	if len(p) != 1 || p[0].gen != genB {
		t.Errorf("publications = %+v, want one for gen %d", p, genB)
	}
}

func TestOrchestratorEarlyStaleResultDiscarded(t *testing.T) {
	src := newGatedSource()
	o := NewOrchestrator(PolicyRemote, NewHeuristic(), src)
	pubs := recordPublications(o)

	o.OnExecutionCompleted("A", nil)
	src.waitStarted(t, "A")
	genB := o.OnExecutionCompleted("B", nil)
	src.waitStarted(t, "B")

	src.release("A")
	src.release("B")
	o.Close()

	p := pubs()
	if len(p) != 1 {
		t.Fatalf("publications = %d, want 1", len(p))
	}
	if p[0].gen != genB || p[0].list[0].Title != "B" {
		t.Errorf("published gen %d %v, want gen %d B", p[0].gen, titles(p[0].list), genB)
	}
	if o.State() != StateReady {
		t.Errorf("state = %v, want ready", o.State())
	}
}

func TestOrchestratorCancelsSuperseded(t *testing.T) {
	src := newGatedSource()
	o := NewOrchestrator(PolicyAuto, NewHeuristic(), src)

	o.OnExecutionCompleted("A", nil)
	src.waitStarted(t, "A")
	if err := src.ctx("A").Err(); err != nil {
		t.Fatalf("A cancelled too early: %v", err)
	}

	o.OnExecutionCompleted("B", nil)
	src.waitStarted(t, "B")
	if src.ctx("A").Err() == nil {
		t.Error("superseded cycle's context was not cancelled")
	}
	if src.ctx("B").Err() != nil {
		t.Error("current cycle's context should still be live")
	}
	if !o.Analyzing() {
		t.Error("Analyzing() = false while B is in flight")
	}

	src.release("A")
	src.release("B")
	o.Close()
}

func TestOrchestratorHeuristicPolicy(t *testing.T) {
	src := newGatedSource()
	o := NewOrchestrator(PolicyHeuristic, NewHeuristic(), src)
	pubs := recordPublications(o)

	gen := o.OnExecutionCompleted("foo()", []string{"ReferenceError: foo is not defined"})
	if o.State() != StateReady {
		t.Fatalf("state = %v, want ready on return", o.State())
	}
	got := o.Suggestions()
	if len(got) != 1 || got[0].Type != TypeErrorFix {
		t.Errorf("suggestions = %+v, want one error-fix", got)
	}
	if src.calls != 0 {
		t.Errorf("remote called %d times under heuristic policy", src.calls)
	}
	if p := pubs(); len(p) != 1 || p[0].gen != gen {
		t.Errorf("publications = %+v", p)
	}
}

func TestOrchestratorNoRemoteConfigured(t *testing.T) {
	for _, policy := range []Policy{PolicyAuto, PolicyRemote} {
		o := NewOrchestrator(policy, NewHeuristic(), nil)
		o.OnExecutionCompleted("var x = 1;", nil)
		if o.State() != StateReady {
			t.Errorf("%s: state = %v, want ready", policy, o.State())
		}
		if got := o.Suggestions(); len(got) == 0 || got[0].Type != TypeImprovement {
			t.Errorf("%s: suggestions = %+v", policy, got)
		}
	}
}

func TestOrchestratorRemoteFallback(t *testing.T) {
	tests := []struct {
		name   string
		remote Source
	}{
		{"panic", &panicSource{}},
		{"empty", &emptySource{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOrchestrator(PolicyRemote, NewHeuristic(), tt.remote)
			errs := []string{"SyntaxError: Unexpected token"}
			o.OnExecutionCompleted("let = ;", errs)

			got, err := o.Wait(waitCtx(t))
			if err != nil {
				t.Fatalf("Wait: %v", err)
			}
			want := NewHeuristic().Analyze("let = ;", errs)
			if len(got) != len(want) || got[0] != want[0] {
				t.Errorf("got %v, want heuristic %v", titles(got), titles(want))
			}
			o.Close()
		})
	}
}

func TestOrchestratorRemoteFallbackSuggestion(t *testing.T) {
	o := NewOrchestrator(PolicyAuto, NewHeuristic(), NewRemote(&fakeClient{reply: "no array here"}, nil, 0))
	o.OnExecutionCompleted("console.log(1)", nil)

	got, err := o.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Keep Exploring!" {
		t.Errorf("got %v, want the explore fallback", titles(got))
	}
	o.Close()
}

func TestOrchestratorWait(t *testing.T) {
	o := NewOrchestrator(PolicyRemote, NewHeuristic(), newGatedSource())
	got, err := o.Wait(context.Background())
	if err != nil || got != nil {
		t.Errorf("idle Wait = %v, %v; want nil, nil", got, err)
	}
	if o.State() != StateIdle {
		t.Errorf("state = %v, want idle", o.State())
	}

	src := newGatedSource()
	o = NewOrchestrator(PolicyRemote, NewHeuristic(), src)
	o.OnExecutionCompleted("A", nil)
	src.waitStarted(t, "A")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := o.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait err = %v, want deadline exceeded", err)
	}

	src.release("A")
	o.Close()
	if got := o.Suggestions(); len(got) != 1 || got[0].Title != "A" {
		t.Errorf("suggestions = %v, want A", titles(got))
	}
}

func TestOrchestratorConsecutiveCycles(t *testing.T) {
	o := NewOrchestrator(PolicyHeuristic, NewHeuristic(), nil)
	for i := range 3 {
		gen := o.OnExecutionCompleted("x", nil)
		if gen != uint64(i+1) {
			t.Errorf("gen = %d, want %d", gen, i+1)
		}
		if _, err := o.Wait(waitCtx(t)); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if o.Generation() != 3 {
		t.Errorf("Generation = %d, want 3", o.Generation())
	}
}

func TestOrchestratorIgnoresRunsAfterClose(t *testing.T) {
	src := newGatedSource()
	o := NewOrchestrator(PolicyRemote, NewHeuristic(), src)
	pubs := recordPublications(o)

	gen := o.OnExecutionCompleted("A", nil)
	src.waitStarted(t, "A")
	src.release("A")
	o.Close()

	if got := o.OnExecutionCompleted("B", nil); got != gen {
		t.Errorf("gen after Close = %d, want %d", got, gen)
	}
	if src.calls != 1 {
		t.Errorf("remote called %d times, want 1", src.calls)
	}
	if got := o.Suggestions(); len(got) != 1 || got[0].Title != "A" {
		t.Errorf("suggestions = %v, want A", titles(got))
	}
	if p := pubs(); len(p) != 1 {
		t.Errorf("publications = %d, want 1", len(p))
	}
}

func TestOrchestratorCloseRacesRuns(t *testing.T) {
	o := NewOrchestrator(PolicyRemote, NewHeuristic(), &emptySource{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.OnExecutionCompleted("var x = 1;", nil)
		}()
	}
	o.Close()
	wg.Wait()
	o.Close()

	if o.Analyzing() {
		t.Error("still analyzing after Close returned")
	}
}
