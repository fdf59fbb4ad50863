// Package transport owns the HID connection to the device: discovery by
// vendor/product id, a background read loop, a serialized write path, and
// exponential-backoff reconnection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/seagrayinc/soomfon-deck/internal/hid"
)

// State is the connection state of the managed device.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotConnected = errors.New("device not connected")
	ErrNotFound     = errors.New("device not found")
	ErrFrameSize    = errors.New("frame size mismatch")

	errReconnectDisabled = errors.New("reconnect disabled")
)

// Options configure a Manager. Zero values pick the defaults.
type Options struct {
	VendorID  uint16
	ProductID uint16

	// UsagePage selects among multiple HID interfaces under the same
	// VID/PID (the controller also enumerates a keyboard interface).
	// Zero accepts any interface.
	UsagePage uint16

	// FrameSize is the exact length every written frame must have.
	FrameSize int

	// InitialBackoff seeds the reconnect backoff (default 2s).
	InitialBackoff time.Duration
	// MaxBackoff caps the reconnect interval (default 30s).
	MaxBackoff time.Duration

	Logger *slog.Logger
}

// Manager owns at most one open device handle at a time. Reads happen on a
// background loop started by Run; writes are serialized so multi-frame
// commands never interleave.
type Manager struct {
	hw   hid.Manager
	opts Options
	log  *slog.Logger

	mu          sync.Mutex
	dev         hid.Device
	info        hid.Info
	state       State
	noReconnect bool

	// writeMu serializes the write path independently of reads. A batch
	// holds it for the whole frame sequence.
	writeMu sync.Mutex

	stateFns []func(State)
	dataFns  []func([]byte)
}

func NewManager(hw hid.Manager, opts Options) *Manager {
	if opts.FrameSize <= 0 {
		opts.FrameSize = 64
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 2 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{hw: hw, opts: opts, log: opts.Logger, state: Disconnected}
}

// OnStateChange registers a connection-state listener. Listeners run
// synchronously in registration order; register before Run.
func (m *Manager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateFns = append(m.stateFns, fn)
}

// OnData registers a raw-report listener. Same ordering rules as
// OnStateChange.
func (m *Manager) OnData(fn func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataFns = append(m.dataFns, fn)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Info returns the descriptor of the connected device.
func (m *Manager) Info() hid.Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Discover locates the device by vendor/product id. When a usage page is
// configured it picks the matching interface, so the vendor channel wins
// over the keyboard interface regardless of enumeration order. Candidates
// that report no usage page at all (some OS HID stacks omit it) fall back
// to first-match.
func (m *Manager) Discover() (hid.Info, error) {
	devs, err := m.hw.List()
	if err != nil {
		return hid.Info{}, fmt.Errorf("enumerate: %w", err)
	}

	var first hid.Info
	found := false
	pageSeen := false
	for _, d := range devs {
		if d.VendorID != m.opts.VendorID || d.ProductID != m.opts.ProductID {
			continue
		}
		if m.opts.UsagePage != 0 && d.UsagePage == m.opts.UsagePage {
			return d, nil
		}
		if d.UsagePage != 0 {
			pageSeen = true
		}
		if !found {
			first = d
			found = true
		}
	}
	if found && (m.opts.UsagePage == 0 || !pageSeen) {
		return first, nil
	}
	return hid.Info{}, fmt.Errorf("%w (VID:0x%04X PID:0x%04X)", ErrNotFound, m.opts.VendorID, m.opts.ProductID)
}

// Connect discovers and opens the device.
func (m *Manager) Connect() error {
	m.setState(Connecting)

	info, err := m.Discover()
	if err != nil {
		m.setState(Disconnected)
		return err
	}
	dev, err := m.hw.Open(info)
	if err != nil {
		m.setState(Disconnected)
		return fmt.Errorf("open %s: %w", info.Path, err)
	}

	m.mu.Lock()
	m.dev = dev
	m.info = info
	m.mu.Unlock()

	m.log.Info("device connected", "path", info.Path, "product", info.Product)
	m.setState(Connected)
	return nil
}

// Close releases the device handle, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	dev := m.dev
	m.dev = nil
	m.info = hid.Info{}
	m.mu.Unlock()

	if dev == nil {
		return nil
	}
	err := dev.Close()
	m.setState(Disconnected)
	return err
}

// Write sends one frame. The buffer must match the frame size exactly;
// short or long buffers are protocol errors, never padded.
func (m *Manager) Write(frame []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.writeLocked(frame)
}

// WriteBatch sends a multi-frame logical command under one hold of the
// write lock, so frames from another command cannot interleave. The first
// failed frame aborts the remainder.
func (m *Manager) WriteBatch(frames [][]byte) error {
	for i, f := range frames {
		if len(f) != m.opts.FrameSize {
			return fmt.Errorf("%w: frame %d is %d bytes, want %d", ErrFrameSize, i, len(f), m.opts.FrameSize)
		}
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	for i, f := range frames {
		if err := m.writeLocked(f); err != nil {
			return fmt.Errorf("frame %d/%d: %w", i+1, len(frames), err)
		}
	}
	return nil
}

func (m *Manager) writeLocked(frame []byte) error {
	if len(frame) != m.opts.FrameSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(frame), m.opts.FrameSize)
	}
	m.mu.Lock()
	dev := m.dev
	m.mu.Unlock()
	if dev == nil {
		return ErrNotConnected
	}
	if _, err := dev.Write(frame); err != nil {
		m.log.Warn("write failed", "error", err)
		m.dropDevice()
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Run drives the read loop and reconnection until ctx is cancelled. If no
// device is connected yet, it connects first.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			m.Close()
			return ctx.Err()
		}

		m.mu.Lock()
		dev := m.dev
		m.mu.Unlock()

		if dev == nil {
			if err := m.reconnect(ctx); err != nil {
				if errors.Is(err, errReconnectDisabled) {
					return nil
				}
				return err
			}
			continue
		}

		m.readLoop(ctx, dev)

		if ctx.Err() != nil {
			m.Close()
			return ctx.Err()
		}
		// Read path failed: drop the handle and fall through to reconnect.
		m.dropDevice()
	}
}

// readLoop performs blocking reads until the device errors out or ctx is
// cancelled. A zero-length read is a timeout and simply retries.
func (m *Manager) readLoop(ctx context.Context, dev hid.Device) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			dev.Close() // unblock the pending read
		case <-done:
		}
	}()

	buf := make([]byte, m.opts.FrameSize)
	for {
		n, err := dev.Read(buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.log.Warn("read failed", "error", err)
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		m.emitData(data)
	}
}

// DisableReconnect makes Run stop instead of reopening the device once
// the current handle is gone. Callers use it ahead of a device halt so
// the shutdown frames are not followed by a fresh connect.
func (m *Manager) DisableReconnect() {
	m.mu.Lock()
	m.noReconnect = true
	m.mu.Unlock()
}

func (m *Manager) reconnectDisabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.noReconnect
}

// reconnect retries Connect with exponential backoff until it succeeds or
// ctx is cancelled.
func (m *Manager) reconnect(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.opts.InitialBackoff
	bo.MaxInterval = m.opts.MaxBackoff
	bo.MaxElapsedTime = 0 // retry until cancelled

	return backoff.Retry(func() error {
		if m.reconnectDisabled() {
			return backoff.Permanent(errReconnectDisabled)
		}
		if err := m.Connect(); err != nil {
			m.log.Debug("reconnect attempt failed", "error", err)
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

// dropDevice closes the handle after an I/O failure and walks the state
// machine through error to disconnected, which kicks Run into reconnecting.
func (m *Manager) dropDevice() {
	m.mu.Lock()
	dev := m.dev
	m.dev = nil
	m.info = hid.Info{}
	m.mu.Unlock()

	if dev == nil {
		return
	}
	dev.Close()
	m.setState(Error)
	m.setState(Disconnected)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	fns := make([]func(State), len(m.stateFns))
	copy(fns, m.stateFns)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (m *Manager) emitData(data []byte) {
	m.mu.Lock()
	fns := make([]func([]byte), len(m.dataFns))
	copy(fns, m.dataFns)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(data)
	}
}
