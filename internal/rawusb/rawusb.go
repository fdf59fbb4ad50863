// Package rawusb opens the controller over raw USB when no HID driver is
// bound, and enumerates the bus for diagnostics. The HID path in
// internal/hid is the primary transport; this one exists for probing and
// for hosts where the vendor interface is not exposed as a HID device.
package rawusb

import (
	"fmt"
	"time"

	"github.com/karalabe/usb"

	"github.com/seagrayinc/soomfon-deck/internal/protocol"
)

// Info describes one enumerated USB device.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	Serial       string
	UsagePage    uint16
	Usage        uint16
}

// Enumerate lists devices matching vid/pid; zero matches any.
func Enumerate(vid, pid uint16) ([]Info, error) {
	infos, err := usb.Enumerate(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	out := make([]Info, 0, len(infos))
	for _, di := range infos {
		out = append(out, Info{
			Path:         di.Path,
			VendorID:     di.VendorID,
			ProductID:    di.ProductID,
			Manufacturer: di.Manufacturer,
			Product:      di.Product,
			Serial:       di.Serial,
			UsagePage:    di.UsagePage,
			Usage:        di.Usage,
		})
	}
	return out, nil
}

// Device is the controller opened over raw USB.
type Device struct {
	dev usb.Device
}

// Open finds and opens the controller by its VID/PID. When nothing
// matches it reports how many other devices were seen, which separates
// "not plugged in" from "wrong driver bound".
func Open() (*Device, error) {
	infos, err := usb.Enumerate(protocol.VendorID, protocol.ProductID)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	if len(infos) == 0 {
		all, allErr := usb.Enumerate(0, 0)
		if allErr != nil {
			return nil, fmt.Errorf("controller not found (VID:0x%04X PID:0x%04X); enumerate all failed: %w",
				protocol.VendorID, protocol.ProductID, allErr)
		}
		return nil, fmt.Errorf("controller not found (VID:0x%04X PID:0x%04X); %d other USB devices present",
			protocol.VendorID, protocol.ProductID, len(all))
	}

	dev, err := infos[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &Device{dev: dev}, nil
}

// Close releases the device.
func (d *Device) Close() error {
	return d.dev.Close()
}

// Write sends one report-sized frame to the OUT endpoint.
func (d *Device) Write(frame []byte) error {
	if len(frame) != protocol.ReportSize {
		return fmt.Errorf("%w: got %d, want %d", protocol.ErrFrameSize, len(frame), protocol.ReportSize)
	}
	if _, err := d.dev.Write(frame); err != nil {
		return fmt.Errorf("usb write: %w", err)
	}
	return nil
}

// Read blocks for one report from the IN endpoint. The timeout parameter
// is advisory; karalabe/usb reads carry their own internal timeout.
func (d *Device) Read(_ time.Duration) ([]byte, error) {
	buf := make([]byte, protocol.ReportSize)
	n, err := d.dev.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("usb read: %w", err)
	}
	return buf[:n], nil
}
