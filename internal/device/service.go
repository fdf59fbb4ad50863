// Package device wires the transport, protocol codec, input parser, and
// binding registry into one running controller. It owns the keepalive and
// long-press tickers and the dispatch goroutine, so callers deal only in
// high-level operations.
package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seagrayinc/soomfon-deck/internal/bindings"
	"github.com/seagrayinc/soomfon-deck/internal/input"
	"github.com/seagrayinc/soomfon-deck/internal/protocol"
	"github.com/seagrayinc/soomfon-deck/internal/transport"
)

const (
	// DefaultKeepalive matches the interval the device tolerates before it
	// falls back to standalone mode.
	DefaultKeepalive = 10 * time.Second
	// DefaultPollInterval is how often held keys are checked against the
	// long-press threshold.
	DefaultPollInterval = 25 * time.Millisecond

	// eventBuffer absorbs bursts from the read loop while an action is
	// still executing. Overflow drops the newest event rather than
	// stalling reads.
	eventBuffer = 64
)

// Options configure a Service. Zero values pick the defaults.
type Options struct {
	LongPress    time.Duration
	Debounce     time.Duration
	Brightness   int // applied on every (re)connect; 0 keeps the device default
	Keepalive    time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Service is the top-level controller runtime. Construct it, register any
// event listeners, then call Run.
type Service struct {
	tm    *transport.Manager
	codec *protocol.Codec
	reg   *bindings.Registry
	log   *slog.Logger
	opts  Options

	// parserMu guards the parser: reports arrive on the read loop while
	// the poll ticker fires long presses from another goroutine.
	parserMu sync.Mutex
	parser   *input.Parser

	events chan input.Event

	mu       sync.Mutex
	eventFns []func(input.Event)
}

// NewService wires a transport manager to a binding registry. reg may be
// nil when the caller only wants raw events via OnEvent.
func NewService(tm *transport.Manager, reg *bindings.Registry, opts Options) *Service {
	if opts.Keepalive <= 0 {
		opts.Keepalive = DefaultKeepalive
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Service{
		tm:     tm,
		codec:  protocol.NewCodec(tm),
		reg:    reg,
		log:    opts.Logger,
		opts:   opts,
		parser: input.NewParser(opts.LongPress, opts.Debounce),
		events: make(chan input.Event, eventBuffer),
	}
	tm.OnData(s.handleReport)
	tm.OnStateChange(s.handleState)
	return s
}

// OnEvent registers a listener for every decoded input event, called on
// the dispatch goroutine before any bound action runs. Register before Run.
func (s *Service) OnEvent(fn func(input.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventFns = append(s.eventFns, fn)
}

// Run drives the transport, the long-press and keepalive tickers, and the
// event dispatcher until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.dispatchLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.pollLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.keepaliveLoop(ctx)
	}()

	err := s.tm.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// handleReport runs on the transport read loop for every raw report.
func (s *Service) handleReport(data []byte) {
	s.parserMu.Lock()
	evs := s.parser.HandleReport(data, time.Now())
	s.parserMu.Unlock()
	for _, ev := range evs {
		s.queue(ev)
	}
}

// handleState brings the panel up whenever the transport (re)connects.
func (s *Service) handleState(st transport.State) {
	if st != transport.Connected {
		return
	}
	if err := s.codec.Initialize(); err != nil {
		s.log.Warn("device init failed", "error", err)
		return
	}
	if s.opts.Brightness > 0 {
		if err := s.codec.SetBrightness(s.opts.Brightness); err != nil {
			s.log.Warn("set brightness failed", "error", err)
		}
	}
}

func (s *Service) queue(ev input.Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event dropped, dispatch queue full",
			"element", ev.Element.String(),
			"index", ev.Index,
			"type", ev.Type.String(),
		)
	}
}

// dispatchLoop delivers events to listeners and the binding registry, one
// at a time. Actions execute here, off the read loop.
func (s *Service) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.mu.Lock()
			fns := make([]func(input.Event), len(s.eventFns))
			copy(fns, s.eventFns)
			s.mu.Unlock()
			for _, fn := range fns {
				fn(ev)
			}
			if s.reg != nil {
				s.reg.Dispatch(ctx, ev)
			}
		}
	}
}

func (s *Service) pollLoop(ctx context.Context) {
	t := time.NewTicker(s.opts.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.parserMu.Lock()
			evs := s.parser.PollLongPress(now)
			s.parserMu.Unlock()
			for _, ev := range evs {
				s.queue(ev)
			}
		}
	}
}

func (s *Service) keepaliveLoop(ctx context.Context) {
	t := time.NewTicker(s.opts.Keepalive)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.tm.State() != transport.Connected {
				continue
			}
			if err := s.codec.Keepalive(); err != nil {
				s.log.Warn("keepalive failed", "error", err)
			}
		}
	}
}

// SetButtonImage uploads one raw RGB565 image to an LCD button and commits
// it with a refresh.
func (s *Service) SetButtonImage(button int, pixels []byte) error {
	if err := s.codec.SetButtonImage(button, pixels); err != nil {
		return err
	}
	return s.codec.RefreshSync()
}

// SetBrightness sets panel brightness as a percentage.
func (s *Service) SetBrightness(percent int) error {
	return s.codec.SetBrightness(percent)
}

// ClearScreen blanks one LCD button.
func (s *Service) ClearScreen(button int) error {
	if err := s.codec.ClearScreen(button); err != nil {
		return err
	}
	return s.codec.RefreshSync()
}

// ClearAll blanks every LCD button.
func (s *Service) ClearAll() error {
	if err := s.codec.ClearAll(); err != nil {
		return err
	}
	return s.codec.RefreshSync()
}

// State reports the transport connection state.
func (s *Service) State() transport.State {
	return s.tm.State()
}

// Shutdown clears the panel, halts the device, and closes the transport.
// Reconnection is disabled first, so a live Run loop winds down instead
// of reopening the device it just halted.
func (s *Service) Shutdown() error {
	s.tm.DisableReconnect()
	if s.tm.State() == transport.Connected {
		if err := s.codec.Shutdown(); err != nil {
			s.log.Warn("device shutdown sequence failed", "error", err)
		}
	}
	return s.tm.Close()
}
