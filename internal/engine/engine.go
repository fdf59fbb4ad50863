// Package engine executes actions through registered per-kind handlers,
// enforcing one execution at a time, per-action timeouts, cooperative
// cancellation, and a bounded execution history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seagrayinc/soomfon-deck/internal/actions"
)

// Status is the terminal outcome of one execution.
type Status string

const (
	Success   Status = "success"
	Failure   Status = "failure"
	Cancelled Status = "cancelled"
)

// Result is produced exactly once per Execute call, even on timeout,
// cancellation, or handler panic.
type Result struct {
	Status   Status
	ActionID string
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Error    string
	Data     map[string]any
}

// Handler performs one action kind. Implementations must respect ctx
// cancellation to be interruptible; the engine survives those that don't.
type Handler interface {
	Execute(ctx context.Context, action actions.Action) (map[string]any, error)
}

// Canceler is an optional handler hook invoked on timeout or explicit
// cancellation, for adapters that hold resources ctx can't reach.
type Canceler interface {
	Cancel()
}

var (
	ErrHandlerRegistered = errors.New("handler already registered for kind")
	ErrHandlerMissing    = errors.New("no handler registered for kind")
	ErrBusy              = errors.New("another action is currently executing")
)

const (
	// DefaultTimeout bounds handlers that define no per-action override.
	DefaultTimeout = 30 * time.Second
	// DefaultHistoryCapacity caps the retained execution history.
	DefaultHistoryCapacity = 100
)

// Options configure an Engine. Zero values pick the defaults.
type Options struct {
	DefaultTimeout  time.Duration
	HistoryCapacity int
	Logger          *slog.Logger
}

// Engine is safe for concurrent use, but executions are strictly
// one-at-a-time: a second Execute while one is in flight fails fast
// rather than queueing.
type Engine struct {
	defaultTimeout time.Duration
	log            *slog.Logger

	mu              sync.Mutex
	handlers        map[actions.Kind]Handler
	executing       bool
	current         *actions.Action
	currentHandler  Handler
	cancelRequested bool
	cancelCurrent   context.CancelFunc

	history *history
}

func New(opts Options) *Engine {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		defaultTimeout: opts.DefaultTimeout,
		log:            opts.Logger,
		handlers:       make(map[actions.Kind]Handler),
		history:        newHistory(opts.HistoryCapacity),
	}
}

// Register installs the handler for one action kind. A kind has exactly
// one handler; a second registration is an error, never a silent override.
func (e *Engine) Register(kind actions.Kind, h Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.handlers[kind]; ok {
		return fmt.Errorf("%w: %q", ErrHandlerRegistered, kind)
	}
	e.handlers[kind] = h
	return nil
}

// Unregister removes the handler for kind, if any.
func (e *Engine) Unregister(kind actions.Kind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, kind)
}

// IsExecuting reports whether an action is in flight.
func (e *Engine) IsExecuting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executing
}

// CurrentAction returns the in-flight action, if any.
func (e *Engine) CurrentAction() (actions.Action, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return actions.Action{}, false
	}
	return *e.current, true
}

// Cancel signals the in-flight execution, if any, to abort. Cancellation
// is cooperative: the action's context is cancelled and the handler's
// Cancel hook runs when it has one; handlers that ignore both simply run
// to completion or hit the timeout.
func (e *Engine) Cancel() {
	e.mu.Lock()
	if !e.executing {
		e.mu.Unlock()
		return
	}
	e.cancelRequested = true
	cancel := e.cancelCurrent
	h := e.currentHandler
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c, ok := h.(Canceler); ok {
		c.Cancel()
	}
}

type handlerReturn struct {
	data map[string]any
	err  error
}

// Execute runs the action through its handler and returns the terminal
// result. Disabled actions short-circuit to cancelled without touching
// any handler; a missing handler is a failure. Every terminal result is
// recorded in history.
func (e *Engine) Execute(ctx context.Context, action actions.Action) Result {
	start := time.Now()

	if !action.IsEnabled() {
		res := e.finish(action, Result{
			Status: Cancelled, ActionID: action.ID, Start: start,
			Error: "action disabled",
		})
		return res
	}

	e.mu.Lock()
	if e.executing {
		e.mu.Unlock()
		// Callers serialize; an overlapping call is their bug, not a
		// history-worthy execution.
		return Result{
			Status: Failure, ActionID: action.ID,
			Start: start, End: start,
			Error: ErrBusy.Error(),
		}
	}
	h, ok := e.handlers[action.Kind]
	if !ok {
		e.mu.Unlock()
		return e.finish(action, Result{
			Status: Failure, ActionID: action.ID, Start: start,
			Error: fmt.Sprintf("%v: %q", ErrHandlerMissing, action.Kind),
		})
	}

	timeout := action.Timeout()
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	cctx, cancel := context.WithCancel(ctx)
	e.executing = true
	e.current = &action
	e.currentHandler = h
	e.cancelRequested = false
	e.cancelCurrent = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.executing = false
		e.current = nil
		e.currentHandler = nil
		e.cancelCurrent = nil
		e.mu.Unlock()
	}()

	done := make(chan handlerReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handlerReturn{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		data, err := h.Execute(cctx, action)
		done <- handlerReturn{data: data, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res Result
	select {
	case out := <-done:
		res = e.settle(action, start, out)

	case <-timer.C:
		// The handler is still running; give it the cancel signal and
		// report the call as timed out.
		cancel()
		if c, ok := h.(Canceler); ok {
			c.Cancel()
		}
		status := Failure
		msg := fmt.Sprintf("timed out after %s", timeout)
		if e.wasCancelRequested() {
			status = Cancelled
			msg = "cancelled"
		}
		res = Result{Status: status, ActionID: action.ID, Start: start, Error: msg}
	}

	return e.finish(action, res)
}

// settle maps a handler return onto a terminal status, honoring an
// explicit cancellation request.
func (e *Engine) settle(action actions.Action, start time.Time, out handlerReturn) Result {
	res := Result{ActionID: action.ID, Start: start, Data: out.data}
	switch {
	case out.err == nil:
		res.Status = Success
	case e.wasCancelRequested() || errors.Is(out.err, context.Canceled):
		res.Status = Cancelled
		res.Error = "cancelled"
	default:
		res.Status = Failure
		res.Error = out.err.Error()
	}
	return res
}

func (e *Engine) wasCancelRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelRequested
}

// finish stamps the result, records it, and logs the outcome.
func (e *Engine) finish(action actions.Action, res Result) Result {
	res.End = time.Now()
	res.Duration = res.End.Sub(res.Start)
	e.history.append(Entry{Action: action, Result: res})

	e.log.Debug("action executed",
		"kind", string(action.Kind),
		"action", action.ID,
		"status", string(res.Status),
		"duration", res.Duration,
		"error", res.Error,
	)
	return res
}

// History returns retained entries, oldest first.
func (e *Engine) History() []Entry {
	return e.history.entries()
}

// ClearHistory drops all retained entries.
func (e *Engine) ClearHistory() {
	e.history.clear()
}

// Stats aggregates over retained history only, not all-time.
func (e *Engine) Stats() Stats {
	return e.history.stats()
}
