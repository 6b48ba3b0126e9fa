package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/telefication/internal/event"
	"github.com/pfrederiksen/telefication/internal/logger"
	"github.com/pfrederiksen/telefication/internal/telegram"
)

// Sender delivers messages. recipient overrides the configured chat when non-empty.
type Sender interface {
	SendMessage(ctx context.Context, message, recipient string) (string, error)
	SendPhoto(ctx context.Context, caption, photoURL, recipient string) (string, error)
}

// HandlerFunc handles one event and returns the delivery outcome
type HandlerFunc func(ctx context.Context, evt event.Event) (string, error)

var (
	// ErrNoHandler means no handler is registered for the event's kind
	ErrNoHandler = errors.New("no handler registered")
	// ErrSkipped is returned by handlers that decide not to send
	ErrSkipped = errors.New("skipped")
)

// Result statuses
const (
	StatusSent     = "sent"
	StatusSkipped  = "skipped"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// Result describes what one handler did with an event
type Result struct {
	Handler string `json:"handler"`
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

type handler struct {
	name string
	fn   HandlerFunc
}

// Registry maps event kinds to handlers. Handlers for a kind run in registration order.
type Registry struct {
	handlers map[event.Kind][]handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[event.Kind][]handler)}
}

// Register adds a named handler for kind
func (r *Registry) Register(kind event.Kind, name string, fn HandlerFunc) {
	r.handlers[kind] = append(r.handlers[kind], handler{name: name, fn: fn})
}

// Handlers returns the names of the handlers registered for kind
func (r *Registry) Handlers(kind event.Kind) []string {
	var names []string
	for _, h := range r.handlers[kind] {
		names = append(names, h.name)
	}
	return names
}

// Dispatch runs every handler registered for the event's kind. Handler failures are
// reported in the results, not as an error; the error is ErrNoHandler or a nil event.
func (r *Registry) Dispatch(ctx context.Context, evt event.Event) ([]Result, error) {
	if evt == nil {
		return nil, errors.New("nil event")
	}

	kind := evt.Kind()
	hs := r.handlers[kind]
	if len(hs) == 0 {
		logger.Debug("No handler for event", logger.Fields{"kind": string(kind)})
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, kind)
	}

	results := make([]Result, 0, len(hs))
	for _, h := range hs {
		start := time.Now()
		outcome, err := h.fn(ctx, evt)
		logger.RecordTiming("dispatch.duration", time.Since(start))

		res := classify(h.name, outcome, err)
		logger.IncrCounter("dispatch." + res.Status)

		fields := logger.Fields{"kind": string(kind), "handler": h.name, "status": res.Status}
		switch res.Status {
		case StatusSent:
			logger.Info("Notification sent", fields)
		case StatusSkipped:
			logger.Debug("Notification skipped", fields)
		default:
			logger.Error("Notification failed", fields, err)
		}

		results = append(results, res)
	}
	return results, nil
}

func classify(name, outcome string, err error) Result {
	res := Result{Handler: name, Outcome: outcome}

	var rejected *telegram.RejectedError
	switch {
	case err == nil:
		res.Status = StatusSent
	case errors.Is(err, ErrSkipped), errors.Is(err, telegram.ErrNotApplicable):
		res.Status = StatusSkipped
		res.Error = err.Error()
	case errors.As(err, &rejected):
		res.Status = StatusRejected
		res.Error = rejected.Description
	default:
		res.Status = StatusFailed
		res.Error = err.Error()
	}
	return res
}
