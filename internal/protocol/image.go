package protocol

import "fmt"

// ImageFrames splits a raw RGB565 button image into the on-wire frame
// sequence: one BAT header followed by ceil(len/MaxPayloadPerFrame)
// sequenced data frames. The pixel buffer must be exactly
// ImagePayloadSize bytes; conversion from arbitrary source images is the
// caller's problem.
func ImageFrames(button int, pixels []byte) ([][]byte, error) {
	if button < 0 || button >= NumLCDButtons {
		return nil, fmt.Errorf("%w: %d (want 0..%d)", ErrButtonIndex, button, NumLCDButtons-1)
	}
	if len(pixels) != ImagePayloadSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d (%dx%dx%d)",
			ErrImageSize, len(pixels), ImagePayloadSize, LCDWidth, LCDHeight, BytesPerPixel)
	}

	total := (len(pixels) + MaxPayloadPerFrame - 1) / MaxPayloadPerFrame
	frames := make([][]byte, 0, total+1)
	frames = append(frames, ImageHeaderFrame(button, len(pixels)))

	for i := 0; i < total; i++ {
		start := i * MaxPayloadPerFrame
		end := start + MaxPayloadPerFrame
		if end > len(pixels) {
			end = len(pixels)
		}
		frames = append(frames, ImageDataFrame(uint16(i), pixels[start:end], i == total-1))
	}

	return frames, nil
}
