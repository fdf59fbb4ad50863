package hid

import (
	"errors"
	"io"
	"sync"
)

// FakeDevice is an in-memory Device for tests. Reads block on an internal
// channel until Emit is called or the device is closed.
type FakeDevice struct {
	mu      sync.Mutex
	closed  bool
	writes  [][]byte
	reports chan []byte

	WriteErr error // returned by Write when set
	ReadErr  error // returned by Read when set
}

func NewFakeDevice() *FakeDevice {
	return &FakeDevice{reports: make(chan []byte, 16)}
}

func (f *FakeDevice) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errors.New("device closed")
	}
	if f.WriteErr != nil {
		return 0, f.WriteErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	f.writes = append(f.writes, buf)
	return len(p), nil
}

func (f *FakeDevice) Read(p []byte) (int, error) {
	f.mu.Lock()
	err := f.ReadErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	buf, ok := <-f.reports
	if !ok {
		return 0, io.EOF
	}
	return copy(p, buf), nil
}

func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.reports)
	}
	return nil
}

// Emit queues one input report for the next Read.
func (f *FakeDevice) Emit(p []byte) {
	buf := make([]byte, len(p))
	copy(buf, p)
	f.reports <- buf
}

// FailReads makes subsequent Reads return err.
func (f *FakeDevice) FailReads(err error) {
	f.mu.Lock()
	f.ReadErr = err
	f.mu.Unlock()
	// Unblock a pending Read.
	select {
	case f.reports <- nil:
	default:
	}
}

// Writes returns a copy of every report written so far.
func (f *FakeDevice) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// FakeManager serves a fixed device list and hands out the configured
// devices in order on each successful open.
type FakeManager struct {
	mu      sync.Mutex
	Infos   []Info
	Devices []Device
	ListErr error
	OpenErr error
	opens   int
}

func (m *FakeManager) List() ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Infos, nil
}

func (m *FakeManager) Open(Info) (Device, error) {
	return m.next()
}

func (m *FakeManager) OpenVIDPID(vendorID, productID uint16) (Device, error) {
	m.mu.Lock()
	found := false
	for _, i := range m.Infos {
		if i.VendorID == vendorID && i.ProductID == productID {
			found = true
			break
		}
	}
	m.mu.Unlock()
	if !found {
		return nil, errors.New("device not found")
	}
	return m.next()
}

func (m *FakeManager) next() (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.opens >= len(m.Devices) {
		return nil, errors.New("no device available")
	}
	d := m.Devices[m.opens]
	m.opens++
	return d, nil
}

// OpenCount reports how many opens succeeded.
func (m *FakeManager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}
