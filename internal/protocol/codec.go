package protocol

import "fmt"

// Writer is the transport-side write path. Write sends one frame;
// WriteBatch sends a multi-frame logical command without interleaving
// writes from other commands.
type Writer interface {
	Write(frame []byte) error
	WriteBatch(frames [][]byte) error
}

// Codec translates device commands into frames on a Writer. All argument
// validation happens before the first write, so invalid input never causes
// partial I/O.
type Codec struct {
	w Writer
}

func NewCodec(w Writer) *Codec {
	return &Codec{w: w}
}

// WakeDisplay wakes the panel from sleep.
func (c *Codec) WakeDisplay() error {
	return c.w.Write(WakeDisplayFrame())
}

// SetBrightness sets panel brightness as a percentage.
func (c *Codec) SetBrightness(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %d", ErrBrightnessRange, percent)
	}
	return c.w.Write(BrightnessFrame(percent))
}

// ClearScreen blanks one LCD button.
func (c *Codec) ClearScreen(button int) error {
	if button < 0 || button >= NumLCDButtons {
		return fmt.Errorf("%w: %d (want 0..%d)", ErrButtonIndex, button, NumLCDButtons-1)
	}
	return c.w.Write(ClearScreenFrame(button))
}

// ClearAll blanks every LCD button.
func (c *Codec) ClearAll() error {
	return c.w.Write(ClearAllFrame())
}

// RefreshSync commits pending display operations.
func (c *Codec) RefreshSync() error {
	return c.w.Write(RefreshSyncFrame())
}

// QuickCommand sends the quick-command setup block from the init sequence.
func (c *Codec) QuickCommand() error {
	return c.w.Write(QuickCommandFrame())
}

// Keepalive keeps the device out of standalone mode.
func (c *Codec) Keepalive() error {
	return c.w.Write(KeepaliveFrame())
}

// SendRaw passes one pre-built frame through unchanged. The frame must be
// exactly ReportSize bytes.
func (c *Codec) SendRaw(frame []byte) error {
	if len(frame) != ReportSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(frame), ReportSize)
	}
	return c.w.Write(frame)
}

// Initialize wakes the display and commits, the minimal sequence to bring
// the panel up and enable button events.
func (c *Codec) Initialize() error {
	if err := c.WakeDisplay(); err != nil {
		return err
	}
	return c.RefreshSync()
}

// SetButtonImage uploads one raw RGB565 image to an LCD button. The header
// and data frames go out as a single batch; a failed frame aborts the rest
// of the sequence, leaving the device's image buffer undefined until a
// fresh transfer succeeds.
func (c *Codec) SetButtonImage(button int, pixels []byte) error {
	frames, err := ImageFrames(button, pixels)
	if err != nil {
		return err
	}
	return c.w.WriteBatch(frames)
}

// Shutdown runs the clear-displays, clear-buttons, halt sequence.
func (c *Codec) Shutdown() error {
	return c.w.WriteBatch([][]byte{
		ClearLCDFrame(),
		ClearButtonsFrame(),
		HaltFrame(),
	})
}
