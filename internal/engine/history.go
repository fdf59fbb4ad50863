package engine

import (
	"sync"
	"time"

	"github.com/seagrayinc/soomfon-deck/internal/actions"
)

// Entry pairs a terminal result with the action that produced it.
type Entry struct {
	Action actions.Action
	Result Result
}

// Stats aggregates the retained history.
type Stats struct {
	Total        int
	Succeeded    int
	Failed       int
	Cancelled    int
	MeanDuration time.Duration
}

// history is a capped ring buffer; oldest entries drop first. Only the
// engine mutates it.
type history struct {
	mu    sync.Mutex
	buf   []Entry
	start int
	count int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]Entry, capacity)}
}

func (h *history) append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count < len(h.buf) {
		h.buf[(h.start+h.count)%len(h.buf)] = e
		h.count++
		return
	}
	// Full: overwrite the oldest slot.
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.start = 0
	h.count = 0
}

func (h *history) stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{Total: h.count}
	var total time.Duration
	for i := 0; i < h.count; i++ {
		e := h.buf[(h.start+i)%len(h.buf)]
		total += e.Result.Duration
		switch e.Result.Status {
		case Success:
			s.Succeeded++
		case Failure:
			s.Failed++
		case Cancelled:
			s.Cancelled++
		}
	}
	if h.count > 0 {
		s.MeanDuration = total / time.Duration(h.count)
	}
	return s
}
