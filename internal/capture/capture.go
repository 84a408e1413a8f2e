// Package capture redirects a script's console output into ordered buffers
// for the duration of a single run.
package capture

import (
	"log"
	"sync"
)

// Channel identifies which console stream a line was written to.
type Channel int

const (
	Stdout Channel = iota
	Stderr
)

func (c Channel) String() string {
	if c == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Sink receives formatted console lines.
type Sink interface {
	Write(ch Channel, line string)
}

// LogSink forwards console lines to the host logger. It is the sink a
// Console writes to whenever no run is capturing.
type LogSink struct {
	Logger *log.Logger // nil uses the standard logger
}

func (s LogSink) Write(ch Channel, line string) {
	prefix := "console: "
	if ch == Stderr {
		prefix = "console.error: "
	}
	if s.Logger != nil {
		s.Logger.Print(prefix + line)
		return
	}
	log.Print(prefix + line)
}

// Buffer collects lines per channel in write order.
type Buffer struct {
	mu     sync.Mutex
	stdout []string
	stderr []string
}

func (b *Buffer) Write(ch Channel, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch == Stderr {
		b.stderr = append(b.stderr, line)
		return
	}
	b.stdout = append(b.stdout, line)
}

// Stdout returns a copy of the standard channel. Never nil.
func (b *Buffer) Stdout() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.stdout...)
}

// Stderr returns a copy of the error channel. Never nil.
func (b *Buffer) Stderr() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.stderr...)
}

// Console is the diagnostic sink scripts print through. Its target can be
// swapped for the duration of a run with With.
type Console struct {
	mu       sync.Mutex // guards sink
	redirect sync.Mutex // one redirection at a time
	sink     Sink
}

// NewConsole returns a Console writing to host. A nil host means LogSink.
func NewConsole(host Sink) *Console {
	if host == nil {
		host = LogSink{}
	}
	return &Console{sink: host}
}

// Write sends a line to whatever sink is currently installed.
func (c *Console) Write(ch Channel, line string) {
	c.mu.Lock()
	s := c.sink
	c.mu.Unlock()
	s.Write(ch, line)
}

func (c *Console) swap(s Sink) Sink {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.sink
	c.sink = s
	return prev
}

// With points c at a fresh Buffer, runs fn, and puts the previous sink back
// when fn returns or panics. Concurrent calls on the same Console are
// serialized.
func With(c *Console, fn func()) *Buffer {
	c.redirect.Lock()
	defer c.redirect.Unlock()

	buf := &Buffer{}
	prev := c.swap(buf)
	defer c.swap(prev)

	fn()
	return buf
}
