package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/soomfon-deck/internal/hid"
)

const (
	testVID uint16 = 0x1500
	testPID uint16 = 0x3001
)

func testInfo() hid.Info {
	return hid.Info{Path: "/dev/hidraw9", VendorID: testVID, ProductID: testPID, Product: "Stream Controller"}
}

func newTestManager(devs ...hid.Device) (*Manager, *hid.FakeManager) {
	fm := &hid.FakeManager{Infos: []hid.Info{testInfo()}, Devices: devs}
	m := NewManager(fm, Options{
		VendorID:       testVID,
		ProductID:      testPID,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	return m, fm
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

func TestDiscover(t *testing.T) {
	m, _ := newTestManager(hid.NewFakeDevice())
	info, err := m.Discover()
	require.NoError(t, err)
	assert.Equal(t, "/dev/hidraw9", info.Path)
}

func TestDiscoverPicksVendorUsagePage(t *testing.T) {
	// The controller enumerates a keyboard interface under the same
	// VID/PID; enumeration order is OS-dependent, so list it first.
	fm := &hid.FakeManager{Infos: []hid.Info{
		{Path: "/dev/hidraw0", VendorID: testVID, ProductID: testPID, UsagePage: 0x0001},
		{Path: "/dev/hidraw1", VendorID: testVID, ProductID: testPID, UsagePage: 0xFFA0},
	}}
	m := NewManager(fm, Options{VendorID: testVID, ProductID: testPID, UsagePage: 0xFFA0})

	info, err := m.Discover()
	require.NoError(t, err)
	assert.Equal(t, "/dev/hidraw1", info.Path)
	assert.Equal(t, uint16(0xFFA0), info.UsagePage)
}

func TestDiscoverUsagePageFallback(t *testing.T) {
	// Backends that report no usage page still match by VID/PID alone.
	fm := &hid.FakeManager{Infos: []hid.Info{
		{Path: "/dev/hidraw3", VendorID: testVID, ProductID: testPID},
	}}
	m := NewManager(fm, Options{VendorID: testVID, ProductID: testPID, UsagePage: 0xFFA0})

	info, err := m.Discover()
	require.NoError(t, err)
	assert.Equal(t, "/dev/hidraw3", info.Path)
}

func TestDiscoverRejectsWrongUsagePage(t *testing.T) {
	// Only the keyboard interface is visible: binding it would send CRT
	// frames to the wrong endpoint, so this is not-found.
	fm := &hid.FakeManager{Infos: []hid.Info{
		{Path: "/dev/hidraw0", VendorID: testVID, ProductID: testPID, UsagePage: 0x0001},
	}}
	m := NewManager(fm, Options{VendorID: testVID, ProductID: testPID, UsagePage: 0xFFA0})

	_, err := m.Discover()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiscoverNotFound(t *testing.T) {
	fm := &hid.FakeManager{Infos: []hid.Info{{VendorID: 0xDEAD, ProductID: 0xBEEF}}}
	m := NewManager(fm, Options{VendorID: testVID, ProductID: testPID})
	_, err := m.Discover()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnectStateTransitions(t *testing.T) {
	m, _ := newTestManager(hid.NewFakeDevice())
	rec := &stateRecorder{}
	m.OnStateChange(rec.record)

	require.NoError(t, m.Connect())
	assert.Equal(t, Connected, m.State())
	assert.Equal(t, []State{Connecting, Connected}, rec.get())
	assert.Equal(t, "Stream Controller", m.Info().Product)
}

func TestWriteRequiresExactFrameSize(t *testing.T) {
	dev := hid.NewFakeDevice()
	m, _ := newTestManager(dev)
	require.NoError(t, m.Connect())

	assert.ErrorIs(t, m.Write(make([]byte, 63)), ErrFrameSize)
	assert.ErrorIs(t, m.Write(make([]byte, 65)), ErrFrameSize)
	assert.Empty(t, dev.Writes(), "invalid frame must not reach the device")

	require.NoError(t, m.Write(make([]byte, 64)))
	assert.Len(t, dev.Writes(), 1)
}

func TestWriteNotConnected(t *testing.T) {
	m, _ := newTestManager()
	assert.ErrorIs(t, m.Write(make([]byte, 64)), ErrNotConnected)
}

func TestWriteBatchValidatesBeforeIO(t *testing.T) {
	dev := hid.NewFakeDevice()
	m, _ := newTestManager(dev)
	require.NoError(t, m.Connect())

	frames := [][]byte{make([]byte, 64), make([]byte, 10), make([]byte, 64)}
	assert.ErrorIs(t, m.WriteBatch(frames), ErrFrameSize)
	assert.Empty(t, dev.Writes(), "batch with a bad frame must not start writing")

	require.NoError(t, m.WriteBatch([][]byte{make([]byte, 64), make([]byte, 64)}))
	assert.Len(t, dev.Writes(), 2)
}

func TestWriteFailureDropsConnection(t *testing.T) {
	dev := hid.NewFakeDevice()
	dev.WriteErr = errors.New("pipe broken")
	m, _ := newTestManager(dev)
	rec := &stateRecorder{}
	require.NoError(t, m.Connect())
	m.OnStateChange(rec.record)

	err := m.Write(make([]byte, 64))
	require.Error(t, err)
	assert.Equal(t, []State{Error, Disconnected}, rec.get())
	assert.ErrorIs(t, m.Write(make([]byte, 64)), ErrNotConnected)
}

func TestRunEmitsData(t *testing.T) {
	dev := hid.NewFakeDevice()
	m, _ := newTestManager(dev)

	got := make(chan []byte, 1)
	m.OnData(func(b []byte) { got <- b })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	report := make([]byte, 64)
	copy(report, "ACK")
	dev.Emit(report)

	select {
	case b := <-got:
		assert.Equal(t, byte('A'), b[0])
	case <-time.After(time.Second):
		t.Fatal("no data emitted")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestRunReconnectsAfterReadError(t *testing.T) {
	first := hid.NewFakeDevice()
	second := hid.NewFakeDevice()
	m, fm := newTestManager(first, second)

	got := make(chan []byte, 4)
	m.OnData(func(b []byte) { got <- b })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// Wait for the initial connect, then kill the read path.
	require.Eventually(t, func() bool { return m.State() == Connected }, time.Second, time.Millisecond)
	first.FailReads(errors.New("unplugged"))

	// The manager reopens against the second device.
	require.Eventually(t, func() bool { return fm.OpenCount() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return m.State() == Connected }, time.Second, time.Millisecond)

	report := make([]byte, 64)
	report[0] = 0x7F
	second.Emit(report)
	select {
	case b := <-got:
		assert.Equal(t, byte(0x7F), b[0])
	case <-time.After(time.Second):
		t.Fatal("no data from reconnected device")
	}
}

func TestDisableReconnectStopsRun(t *testing.T) {
	first := hid.NewFakeDevice()
	second := hid.NewFakeDevice()
	m, fm := newTestManager(first, second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return m.State() == Connected }, time.Second, time.Millisecond)

	// With reconnection disabled, losing the device ends Run cleanly
	// instead of opening the next handle.
	m.DisableReconnect()
	first.FailReads(errors.New("unplugged"))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after reconnect was disabled")
	}
	assert.Equal(t, 1, fm.OpenCount(), "halted manager must not reopen the device")
}

func TestZeroLengthReadIsNotAnError(t *testing.T) {
	dev := hid.NewFakeDevice()
	m, fm := newTestManager(dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool { return m.State() == Connected }, time.Second, time.Millisecond)
	dev.Emit(nil) // read timeout: zero bytes, no error
	dev.Emit(nil)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 1, fm.OpenCount(), "timeouts must not trigger reconnects")
}
