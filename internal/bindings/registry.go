// Package bindings maps device events onto actions. A binding ties one
// (element, index, trigger) tuple to an action; the registry resolves
// incoming events and hands matches to the execution engine.
package bindings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/seagrayinc/soomfon-deck/internal/actions"
	"github.com/seagrayinc/soomfon-deck/internal/engine"
	"github.com/seagrayinc/soomfon-deck/internal/input"
)

// Binding ties one element event to one action.
type Binding struct {
	ID      string            `json:"id,omitempty"`
	Element input.ElementType `json:"element"`
	Index   int               `json:"index"`
	Trigger input.EventType   `json:"trigger"`
	Action  actions.Action    `json:"action"`
}

type bindingKey struct {
	element input.ElementType
	index   int
	trigger input.EventType
}

// NoticeKind classifies a dispatch notification.
type NoticeKind int

const (
	// Matched fires before the bound action executes.
	Matched NoticeKind = iota
	// Executed fires after the bound action settles, carrying the result.
	Executed
	// NotFound fires when no binding covers the event.
	NotFound
)

// Notice is delivered to observers synchronously, in registration order.
type Notice struct {
	Kind    NoticeKind
	Event   input.Event
	Binding *Binding
	Result  *engine.Result
}

// Observer receives dispatch notifications.
type Observer func(Notice)

// Executor runs one action to a terminal result. *engine.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, action actions.Action) engine.Result
}

// Registry holds the active binding set. Load replaces the whole set at
// once, so a profile switch is a single atomic swap; lookups concurrent
// with a Load see either the old set or the new one, never a mix.
type Registry struct {
	exec Executor
	log  *slog.Logger

	mu        sync.RWMutex
	byID      map[string]Binding
	byKey     map[bindingKey]Binding
	observers []Observer
}

func NewRegistry(exec Executor, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		exec:  exec,
		log:   log,
		byID:  make(map[string]Binding),
		byKey: make(map[bindingKey]Binding),
	}
}

// Observe registers an observer. Observers run synchronously on the
// dispatching goroutine; a slow observer delays dispatch.
func (r *Registry) Observe(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// Load validates and installs the binding set, replacing the previous
// one entirely. When two bindings claim the same (element, index,
// trigger) tuple, the later one wins. An invalid binding rejects the
// whole load and leaves the previous set active.
func (r *Registry) Load(bs []Binding) error {
	byID := make(map[string]Binding, len(bs))
	byKey := make(map[bindingKey]Binding, len(bs))

	for i := range bs {
		b := bs[i]
		if err := b.Action.Validate(); err != nil {
			return fmt.Errorf("binding %d: %w", i, err)
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		b.Action.EnsureID()

		key := bindingKey{element: b.Element, index: b.Index, trigger: b.Trigger}
		if prev, ok := byKey[key]; ok {
			r.log.Warn("binding overridden",
				"element", b.Element.String(),
				"index", b.Index,
				"trigger", b.Trigger.String(),
				"replaced", prev.ID,
				"by", b.ID,
			)
			delete(byID, prev.ID)
		}
		byKey[key] = b
		byID[b.ID] = b
	}

	r.mu.Lock()
	r.byID = byID
	r.byKey = byKey
	r.mu.Unlock()

	r.log.Info("bindings loaded", "count", len(byKey))
	return nil
}

// Get returns the binding with the given id.
func (r *Registry) Get(id string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	return b, ok
}

// Lookup returns the binding for one (element, index, trigger) tuple.
func (r *Registry) Lookup(element input.ElementType, index int, trigger input.EventType) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byKey[bindingKey{element: element, index: index, trigger: trigger}]
	return b, ok
}

// ForElement returns every binding on one element, any trigger.
func (r *Registry) ForElement(element input.ElementType, index int) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Binding
	for key, b := range r.byKey {
		if key.element == element && key.index == index {
			out = append(out, b)
		}
	}
	return out
}

// Len reports the number of active bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

// Dispatch resolves the event against the active set and executes the
// bound action, if any. It blocks until the action settles and returns
// the result, or nil when no binding matched.
func (r *Registry) Dispatch(ctx context.Context, ev input.Event) *engine.Result {
	b, ok := r.Lookup(ev.Element, ev.Index, ev.Type)
	if !ok {
		r.notify(Notice{Kind: NotFound, Event: ev})
		return nil
	}

	r.notify(Notice{Kind: Matched, Event: ev, Binding: &b})

	res := r.exec.Execute(ctx, b.Action)
	r.notify(Notice{Kind: Executed, Event: ev, Binding: &b, Result: &res})

	if res.Status != engine.Success {
		r.log.Warn("bound action did not succeed",
			"binding", b.ID,
			"status", string(res.Status),
			"error", res.Error,
		)
	}
	return &res
}

func (r *Registry) notify(n Notice) {
	r.mu.RLock()
	obs := r.observers
	r.mu.RUnlock()
	for _, o := range obs {
		o(n)
	}
}
