//go:build windows

package hid

import (
	"fmt"

	sshid "github.com/sstallion/go-hid"
)

// Windows backend over hidapi via sstallion/go-hid. The vendor interface of
// the controller enumerates as a separate HID collection, so the usage page
// is preserved in Info for callers that need to pick it.

type winManager struct{}

func newManager() (Manager, error) {
	if err := sshid.Init(); err != nil {
		return nil, fmt.Errorf("hidapi init: %w", err)
	}
	return &winManager{}, nil
}

func (m *winManager) List() ([]Info, error) {
	var out []Info
	err := sshid.Enumerate(sshid.VendorIDAny, sshid.ProductIDAny, func(info *sshid.DeviceInfo) error {
		out = append(out, Info{
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			UsagePage:    info.UsagePage,
			Serial:       info.SerialNbr,
			Product:      info.ProductStr,
			Manufacturer: info.MfrStr,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *winManager) Open(info Info) (Device, error) {
	d, err := sshid.OpenPath(info.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", info.Path, err)
	}
	return &winDevice{d: d}, nil
}

func (m *winManager) OpenVIDPID(vendorID, productID uint16) (Device, error) {
	devs, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, d := range devs {
		if d.VendorID == vendorID && d.ProductID == productID {
			return m.Open(d)
		}
	}
	return nil, fmt.Errorf("device not found (VID:0x%04X PID:0x%04X)", vendorID, productID)
}

type winDevice struct{ d *sshid.Device }

func (d *winDevice) Write(p []byte) (int, error) {
	// hidapi wants the report ID as byte 0. The controller uses
	// unnumbered reports, so prepend a zero rather than eating the
	// first payload byte.
	buf := make([]byte, len(p)+1)
	copy(buf[1:], p)
	n, err := d.d.Write(buf)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		n--
	}
	return n, nil
}

func (d *winDevice) Read(p []byte) (int, error) {
	return d.d.Read(p)
}

func (d *winDevice) Close() error { return d.d.Close() }
