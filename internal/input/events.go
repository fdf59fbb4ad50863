// Package input decodes raw device reports into typed button and encoder
// events, applying per-key debounce and long-press detection. It knows
// nothing about bindings or actions.
package input

import (
	"encoding/json"
	"fmt"
	"time"
)

// ElementType identifies the class of physical control an event came from.
type ElementType int

const (
	LCDButton ElementType = iota
	Button
	Encoder
)

func (t ElementType) String() string {
	switch t {
	case LCDButton:
		return "lcdButton"
	case Button:
		return "button"
	case Encoder:
		return "encoder"
	default:
		return fmt.Sprintf("elementType(%d)", int(t))
	}
}

// EventType is the semantic event on an element.
type EventType int

const (
	Press EventType = iota
	Release
	LongPress
	RotateCW
	RotateCCW
)

func (t EventType) String() string {
	switch t {
	case Press:
		return "press"
	case Release:
		return "release"
	case LongPress:
		return "longPress"
	case RotateCW:
		return "rotateCW"
	case RotateCCW:
		return "rotateCCW"
	default:
		return fmt.Sprintf("eventType(%d)", int(t))
	}
}

// ParseElementType maps the wire/config name onto an ElementType.
func ParseElementType(s string) (ElementType, error) {
	switch s {
	case "lcdButton":
		return LCDButton, nil
	case "button":
		return Button, nil
	case "encoder":
		return Encoder, nil
	default:
		return 0, fmt.Errorf("unknown element type %q", s)
	}
}

// ParseEventType maps the wire/config name onto an EventType.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "press":
		return Press, nil
	case "release":
		return Release, nil
	case "longPress":
		return LongPress, nil
	case "rotateCW":
		return RotateCW, nil
	case "rotateCCW":
		return RotateCCW, nil
	default:
		return 0, fmt.Errorf("unknown event type %q", s)
	}
}

func (t ElementType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ElementType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseElementType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseEventType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Event is one decoded input event.
type Event struct {
	Element ElementType
	Index   int
	Type    EventType
	// Delta is the signed rotation magnitude for rotate events, zero
	// otherwise. Each rotation report is one discrete tick.
	Delta int
	Time  time.Time
}

// element is a decode-table entry for one raw event id.
type element struct {
	typ    ElementType
	index  int
	rotate EventType // RotateCW/RotateCCW for rotation ids
	isRot  bool
}

// rawElements maps the device's event ids onto the control surface, as
// observed in USB captures: LCD buttons 1..6, three plain buttons, three
// encoders with distinct push and rotation ids.
var rawElements = map[byte]element{
	0x01: {typ: LCDButton, index: 0},
	0x02: {typ: LCDButton, index: 1},
	0x03: {typ: LCDButton, index: 2},
	0x04: {typ: LCDButton, index: 3},
	0x05: {typ: LCDButton, index: 4},
	0x06: {typ: LCDButton, index: 5},

	0x25: {typ: Button, index: 0},
	0x30: {typ: Button, index: 1},
	0x31: {typ: Button, index: 2},

	0x35: {typ: Encoder, index: 0},
	0x33: {typ: Encoder, index: 1},
	0x34: {typ: Encoder, index: 2},

	0x50: {typ: Encoder, index: 0, rotate: RotateCCW, isRot: true},
	0x51: {typ: Encoder, index: 0, rotate: RotateCW, isRot: true},
	0x90: {typ: Encoder, index: 1, rotate: RotateCCW, isRot: true},
	0x91: {typ: Encoder, index: 1, rotate: RotateCW, isRot: true},
	0x60: {typ: Encoder, index: 2, rotate: RotateCCW, isRot: true},
	0x61: {typ: Encoder, index: 2, rotate: RotateCW, isRot: true},
}
