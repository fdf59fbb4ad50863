// Package protocol implements the SOOMFON stream-controller wire protocol:
// fixed 64-byte CRT command frames, ACK input reports, and the chunked
// image-upload sequence. Frame layouts come from USB captures of the
// official software.
package protocol

import "errors"

const (
	// SOOMFON stream controller identifiers.
	VendorID  uint16 = 0x1500
	ProductID uint16 = 0x3001

	// The device exposes two HID interfaces: a vendor-defined channel for
	// commands, images and input events, and a standard keyboard channel
	// the driver never reads.
	VendorUsagePage   uint16 = 0xFFA0
	KeyboardUsagePage uint16 = 0x0001
	KeyboardUsage     uint16 = 0x0006

	// ReportSize is the fixed frame size for both directions.
	ReportSize = 64

	// Control surface layout.
	NumLCDButtons = 6
	NumButtons    = 3
	NumEncoders   = 3

	// LCD panel geometry. Images are raw RGB565.
	LCDWidth      = 72
	LCDHeight     = 72
	BytesPerPixel = 2

	// ImagePayloadSize is the exact byte length of one button image.
	ImagePayloadSize = LCDWidth * LCDHeight * BytesPerPixel

	// Image data frames carry a 5-byte prefix (marker, u16 sequence,
	// flags, chunk length) ahead of the pixel bytes.
	dataFramePrefixSize = 5

	// MaxPayloadPerFrame is the pixel-byte capacity of one data frame.
	MaxPayloadPerFrame = ReportSize - dataFramePrefixSize
)

// Validation errors, raised before any I/O happens.
var (
	ErrBrightnessRange = errors.New("brightness out of range [0,100]")
	ErrButtonIndex     = errors.New("button index out of range")
	ErrImageSize       = errors.New("image payload size mismatch")
	ErrFrameSize       = errors.New("frame size mismatch")
)
