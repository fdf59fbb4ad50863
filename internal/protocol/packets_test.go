package protocol

import (
	"bytes"
	"testing"
)

func TestCommandFrameLayout(t *testing.T) {
	tests := []struct {
		name   string
		frame  []byte
		opcode string
	}{
		{"wake", WakeDisplayFrame(), "DIS"},
		{"refresh", RefreshSyncFrame(), "STP"},
		{"clear all", ClearAllFrame(), "CLE"},
		{"keepalive", KeepaliveFrame(), "CONNECT"},
		{"halt", HaltFrame(), "HAH"},
	}
	for _, tt := range tests {
		if len(tt.frame) != ReportSize {
			t.Fatalf("%s: frame length %d, want %d", tt.name, len(tt.frame), ReportSize)
		}
		if !bytes.Equal(tt.frame[0:3], []byte("CRT")) {
			t.Fatalf("%s: missing CRT header", tt.name)
		}
		if tt.frame[3] != 0 || tt.frame[4] != 0 {
			t.Fatalf("%s: header padding not zero", tt.name)
		}
		if !bytes.Equal(tt.frame[5:5+len(tt.opcode)], []byte(tt.opcode)) {
			t.Fatalf("%s: opcode mismatch: %q", tt.name, tt.frame[5:5+len(tt.opcode)])
		}
	}
}

func TestBrightnessFrame(t *testing.T) {
	frame := BrightnessFrame(75)
	if !bytes.Equal(frame[5:8], []byte("LIG")) {
		t.Fatalf("opcode mismatch")
	}
	if frame[10] != 75 {
		t.Fatalf("level byte = %d, want 75", frame[10])
	}
}

func TestQuickCommandFrame(t *testing.T) {
	frame := QuickCommandFrame()
	if !bytes.Equal(frame[5:10], []byte("QUCMD")) {
		t.Fatalf("opcode mismatch")
	}
	want := []byte{0x11, 0x11, 0x00, 0x11, 0x00, 0x11}
	if !bytes.Equal(frame[10:16], want) {
		t.Fatalf("parameter block = %v, want %v", frame[10:16], want)
	}
}

func TestClearScreenFrameIsOneIndexed(t *testing.T) {
	frame := ClearScreenFrame(0)
	if frame[12] != 1 {
		t.Fatalf("button byte = %d, want 1", frame[12])
	}
	frame = ClearScreenFrame(5)
	if frame[12] != 6 {
		t.Fatalf("button byte = %d, want 6", frame[12])
	}
}

func TestShutdownFrames(t *testing.T) {
	lcd := ClearLCDFrame()
	if !bytes.Equal(lcd[5:8], []byte("CLE")) || lcd[8] != 0 || !bytes.Equal(lcd[9:11], []byte("DC")) {
		t.Fatalf("CLE.DC layout wrong: %v", lcd[:12])
	}
	btn := ClearButtonsFrame()
	if !bytes.Equal(btn[5:8], []byte("CLB")) || !bytes.Equal(btn[9:11], []byte("DC")) {
		t.Fatalf("CLB.DC layout wrong: %v", btn[:12])
	}
}

func TestImageHeaderFrame(t *testing.T) {
	frame := ImageHeaderFrame(0, 1234)
	if !bytes.Equal(frame[5:8], []byte("BAT")) {
		t.Fatalf("opcode mismatch")
	}
	// 1234 = 0x04D2 big-endian
	if frame[10] != 0x04 || frame[11] != 0xD2 {
		t.Fatalf("size bytes = %02x %02x, want 04 d2", frame[10], frame[11])
	}
	if frame[12] != 1 {
		t.Fatalf("button byte = %d, want 1", frame[12])
	}

	frame = ImageHeaderFrame(5, 100)
	if frame[12] != 6 {
		t.Fatalf("button byte = %d, want 6", frame[12])
	}
}

func TestImageDataFrame(t *testing.T) {
	chunk := bytes.Repeat([]byte{0xAB}, MaxPayloadPerFrame)
	frame := ImageDataFrame(0x0102, chunk, false)
	if len(frame) != ReportSize {
		t.Fatalf("frame length %d, want %d", len(frame), ReportSize)
	}
	if frame[0] != 0x02 {
		t.Fatalf("marker = %02x", frame[0])
	}
	if frame[1] != 0x01 || frame[2] != 0x02 {
		t.Fatalf("sequence bytes = %02x %02x", frame[1], frame[2])
	}
	if frame[3] != 0x00 {
		t.Fatalf("last flag set on non-final frame")
	}
	if int(frame[4]) != MaxPayloadPerFrame {
		t.Fatalf("chunk length byte = %d, want %d", frame[4], MaxPayloadPerFrame)
	}
	if frame[5] != 0xAB || frame[ReportSize-1] != 0xAB {
		t.Fatalf("payload not copied through")
	}
}

func TestImageDataFramePartial(t *testing.T) {
	frame := ImageDataFrame(3, []byte{0xCD, 0xCD}, true)
	if frame[3] != 0x01 {
		t.Fatalf("last flag not set")
	}
	if frame[4] != 2 {
		t.Fatalf("chunk length byte = %d, want 2", frame[4])
	}
	if frame[5] != 0xCD || frame[6] != 0xCD {
		t.Fatalf("payload not copied through")
	}
	if frame[7] != 0x00 || frame[ReportSize-1] != 0x00 {
		t.Fatalf("padding not zero")
	}
}

func ackReport(id, state byte) []byte {
	data := make([]byte, ReportSize)
	copy(data[0:3], "ACK")
	copy(data[5:7], "OK")
	data[9] = id
	data[10] = state
	return data
}

func TestParseEvent(t *testing.T) {
	ev, ok := ParseEvent(ackReport(0x01, 0x01))
	if !ok {
		t.Fatalf("expected event")
	}
	if ev.ID != 0x01 || !ev.Down() {
		t.Fatalf("unexpected event: %+v", ev)
	}

	ev, ok = ParseEvent(ackReport(0x51, 0x00))
	if !ok {
		t.Fatalf("expected rotation event")
	}
	if ev.ID != 0x51 || ev.Down() {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestParseEventRejects(t *testing.T) {
	if _, ok := ParseEvent(make([]byte, ReportSize)); ok {
		t.Fatalf("accepted report without ACK header")
	}
	if _, ok := ParseEvent([]byte("ACK")); ok {
		t.Fatalf("accepted truncated report")
	}
	if _, ok := ParseEvent(ackReport(0x00, 0x00)); ok {
		t.Fatalf("accepted empty event")
	}
}

func TestIsACKIsCRT(t *testing.T) {
	if !IsACK(ackReport(0x00, 0x00)) {
		t.Fatalf("IsACK rejected valid ACK")
	}
	if IsACK(make([]byte, 10)) {
		t.Fatalf("IsACK accepted zero report")
	}
	if !IsCRT(WakeDisplayFrame()) {
		t.Fatalf("IsCRT rejected CRT echo")
	}
	if IsCRT(ackReport(0x01, 0x01)) {
		t.Fatalf("IsCRT accepted ACK report")
	}
}
