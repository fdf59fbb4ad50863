package protocol

import "encoding/binary"

// Command frames are 64 bytes, "CRT" + two null bytes, then an ASCII opcode
// at offset 5. Parameters, when present, start at offset 10.

func commandFrame(opcode string) []byte {
	frame := make([]byte, ReportSize)
	copy(frame[0:3], "CRT")
	copy(frame[5:], opcode)
	return frame
}

// WakeDisplayFrame builds the CRT..DIS display-init frame.
func WakeDisplayFrame() []byte {
	return commandFrame("DIS")
}

// BrightnessFrame builds the CRT..LIG frame. level must already be
// validated to [0,100].
func BrightnessFrame(level int) []byte {
	frame := commandFrame("LIG")
	frame[10] = byte(level)
	return frame
}

// QuickCommandFrame builds the CRT..QUCMD setup frame with the parameter
// block observed in captures of the official software.
func QuickCommandFrame() []byte {
	frame := commandFrame("QUCMD")
	copy(frame[10:16], []byte{0x11, 0x11, 0x00, 0x11, 0x00, 0x11})
	return frame
}

// KeepaliveFrame builds the CRT..CONNECT frame. The device drops into
// standalone mode unless it sees one every ~10s.
func KeepaliveFrame() []byte {
	return commandFrame("CONNECT")
}

// RefreshSyncFrame builds the CRT..STP commit frame. Required after DIS/LIG
// during init to enable button event mode.
func RefreshSyncFrame() []byte {
	return commandFrame("STP")
}

// ClearAllFrame builds the CRT..CLE frame clearing every LCD.
func ClearAllFrame() []byte {
	return commandFrame("CLE")
}

// ClearScreenFrame builds a CRT..CLE frame targeting one LCD button.
// Buttons are 1-indexed on the wire; index must already be validated.
func ClearScreenFrame(button int) []byte {
	frame := commandFrame("CLE")
	frame[12] = byte(button + 1)
	return frame
}

// ClearLCDFrame builds the CRT..CLE.DC frame from the shutdown sequence.
func ClearLCDFrame() []byte {
	frame := commandFrame("CLE")
	copy(frame[9:11], "DC")
	return frame
}

// ClearButtonsFrame builds the CRT..CLB.DC frame from the shutdown sequence.
func ClearButtonsFrame() []byte {
	frame := commandFrame("CLB")
	copy(frame[9:11], "DC")
	return frame
}

// HaltFrame builds the CRT..HAH frame, last in the shutdown sequence.
func HaltFrame() []byte {
	return commandFrame("HAH")
}

// ImageHeaderFrame builds the CRT..BAT frame announcing an image upload:
// total payload size big-endian at 10..11, 1-indexed button at 12.
func ImageHeaderFrame(button int, payloadLen int) []byte {
	frame := commandFrame("BAT")
	binary.BigEndian.PutUint16(frame[10:12], uint16(payloadLen))
	frame[12] = byte(button + 1)
	return frame
}

// ImageDataFrame builds one sequenced data frame. chunk must be at most
// MaxPayloadPerFrame bytes.
func ImageDataFrame(seq uint16, chunk []byte, last bool) []byte {
	frame := make([]byte, ReportSize)
	frame[0] = 0x02
	binary.BigEndian.PutUint16(frame[1:3], seq)
	if last {
		frame[3] = 0x01
	}
	frame[4] = byte(len(chunk))
	copy(frame[dataFramePrefixSize:], chunk)
	return frame
}

// RawEvent is the undecoded input event carried by an ACK report:
// a device-assigned event id plus a down/up state byte.
type RawEvent struct {
	ID    byte
	State byte
}

// Down reports whether the event is a key-down edge.
func (e RawEvent) Down() bool { return e.State == 0x01 }

// ACK report structure: "ACK" at 0, "OK" at 5, event id at 9, state at 10.

// IsACK reports whether data looks like an ACK response, with or without
// an embedded event.
func IsACK(data []byte) bool {
	return len(data) >= 7 && string(data[0:3]) == "ACK" && string(data[5:7]) == "OK"
}

// IsCRT reports whether data is an echo of a CRT command frame.
func IsCRT(data []byte) bool {
	return len(data) >= 3 && string(data[0:3]) == "CRT"
}

// ParseEvent extracts the raw event from an ACK report. Reports without a
// valid header, and ACKs carrying event id 0 (no event), return ok=false.
func ParseEvent(data []byte) (RawEvent, bool) {
	if len(data) < 11 || !IsACK(data) {
		return RawEvent{}, false
	}
	ev := RawEvent{ID: data[9], State: data[10]}
	if ev.ID == 0x00 {
		return RawEvent{}, false
	}
	return ev, true
}
