package input

import (
	"time"

	"github.com/seagrayinc/soomfon-deck/internal/protocol"
)

const (
	// DefaultLongPress is how long a key must stay down before a single
	// longPress fires.
	DefaultLongPress = 500 * time.Millisecond
	// DefaultDebounce is the guard window in which a repeated edge is
	// treated as contact bounce.
	DefaultDebounce = 50 * time.Millisecond
)

type keyID struct {
	typ   ElementType
	index int
}

type keyState struct {
	pressed     bool
	longFired   bool
	pressedAt   time.Time
	lastRelease time.Time
}

// Parser is the per-key press/release/long-press state machine. It is a
// pure function of (previous state, new raw report, current time); the
// caller supplies the clock, which keeps it deterministic under test.
// Keys are independent: no cross-key locking is needed, and the parser
// itself is not safe for concurrent use.
type Parser struct {
	longPress time.Duration
	debounce  time.Duration
	keys      map[keyID]*keyState
}

// NewParser builds a parser with the given thresholds. Zero or negative
// values pick the defaults for both.
func NewParser(longPress, debounce time.Duration) *Parser {
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Parser{
		longPress: longPress,
		debounce:  debounce,
		keys:      make(map[keyID]*keyState),
	}
}

// HandleReport decodes one raw input report and returns the events it
// produces, in order. Reports that are not events (command echoes, empty
// ACKs, unknown ids) produce nothing.
func (p *Parser) HandleReport(data []byte, now time.Time) []Event {
	raw, ok := protocol.ParseEvent(data)
	if !ok {
		return nil
	}
	el, ok := rawElements[raw.ID]
	if !ok {
		return nil
	}

	if el.isRot {
		delta := 1
		if el.rotate == RotateCCW {
			delta = -1
		}
		return []Event{{Element: el.typ, Index: el.index, Type: el.rotate, Delta: delta, Time: now}}
	}

	id := keyID{typ: el.typ, index: el.index}
	st := p.keys[id]
	if st == nil {
		st = &keyState{}
		p.keys[id] = st
	}

	if raw.Down() {
		if st.pressed {
			// Identical raw state repeated: one physical actuation,
			// never a second press.
			return nil
		}
		if !st.lastRelease.IsZero() && now.Sub(st.lastRelease) < p.debounce {
			// Bounce on the release edge.
			return nil
		}
		st.pressed = true
		st.longFired = false
		st.pressedAt = now
		return []Event{{Element: el.typ, Index: el.index, Type: Press, Time: now}}
	}

	if !st.pressed {
		return nil
	}
	st.pressed = false
	st.lastRelease = now
	return []Event{{Element: el.typ, Index: el.index, Type: Release, Time: now}}
}

// PollLongPress fires longPress for every key held past the threshold.
// Each hold fires at most once; the key stays in pressed until release.
// Callers poll this alongside the transport read loop.
func (p *Parser) PollLongPress(now time.Time) []Event {
	var out []Event
	for id, st := range p.keys {
		if st.pressed && !st.longFired && now.Sub(st.pressedAt) >= p.longPress {
			st.longFired = true
			out = append(out, Event{Element: id.typ, Index: id.index, Type: LongPress, Time: now})
		}
	}
	return out
}
