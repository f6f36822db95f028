// Package toast delivers transient, non-blocking notifications to the user.
package toast

import (
	"fmt"
	"sync"
	"time"

	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/logger"
)

// Kind is the severity of a toast.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Toast is one notification.
type Toast struct {
	Kind       Kind
	Title      string
	Message    string
	Suggestion string
	Err        error
	At         time.Time
}

// Reporter accepts toasts. Paging and mutation code depend on this, not on
// Center, so tests can record synchronously.
type Reporter interface {
	Report(t Toast)
}

// Sink displays toasts.
type Sink interface {
	Show(t Toast)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(t Toast)

// Show calls f(t).
func (f SinkFunc) Show(t Toast) { f(t) }

// Failure builds a failure toast for action from err, using the error
// taxonomy for the user-facing message.
func Failure(action string, err error) Toast {
	cliErr := clierrors.CategorizeError(err)
	t := Toast{
		Kind:  KindFailure,
		Title: action + " failed",
		Err:   err,
		At:    time.Now(),
	}
	if cliErr != nil {
		t.Message = cliErr.Message
		t.Suggestion = cliErr.Suggestion
	}
	return t
}

// Success builds a success toast.
func Success(format string, args ...interface{}) Toast {
	return Toast{Kind: KindSuccess, Message: fmt.Sprintf(format, args...), At: time.Now()}
}

// Info builds an info toast.
func Info(format string, args ...interface{}) Toast {
	return Toast{Kind: KindInfo, Message: fmt.Sprintf(format, args...), At: time.Now()}
}

// Center queues toasts and shows them on a single goroutine, in order.
type Center struct {
	sink Sink

	mu     sync.RWMutex
	closed bool
	queue  chan Toast
	done   chan struct{}
}

// New starts a Center. buffer bounds the queue; when full, new toasts are
// dropped and logged.
func New(sink Sink, buffer int) *Center {
	if buffer <= 0 {
		buffer = 16
	}
	c := &Center{
		sink:  sink,
		queue: make(chan Toast, buffer),
		done:  make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Center) run() {
	defer close(c.done)
	for t := range c.queue {
		c.sink.Show(t)
	}
}

// Report enqueues t. It never blocks.
func (c *Center) Report(t Toast) {
	if t.At.IsZero() {
		t.At = time.Now()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		logger.Debug("Toast after close dropped", "kind", t.Kind, "message", t.Message)
		return
	}

	select {
	case c.queue <- t:
	default:
		logger.Warn("Toast queue full, dropping", "kind", t.Kind, "message", t.Message)
	}
}

// Close stops accepting toasts and waits until queued ones are shown.
func (c *Center) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()
	<-c.done
}

// Recorder is a synchronous Reporter and Sink that keeps every toast.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

// Report records t.
func (r *Recorder) Report(t Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

// Show records t.
func (r *Recorder) Show(t Toast) { r.Report(t) }

// Toasts returns a copy of everything recorded.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

// Failures returns only failure toasts.
func (r *Recorder) Failures() []Toast {
	var out []Toast
	for _, t := range r.Toasts() {
		if t.Kind == KindFailure {
			out = append(out, t)
		}
	}
	return out
}

// Discard drops every toast.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(Toast) {}
