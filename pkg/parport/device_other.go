// ppdev is Linux-only. This stub keeps the package building elsewhere so
// the simulated register and the driver logic stay usable.

//go:build !linux

package parport

import (
	"fmt"
	"os"
)

// Device is a parallel port node. Only Open/Close work off Linux.
type Device struct {
	f    *os.File
	path string
}

// Open opens the device node for reading and writing.
func Open(path string) (*Device, error) {
	if path == "" {
		return nil, fmt.Errorf("parport: device path required")
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("parport: open %s: %w", path, err)
	}
	return &Device{f: f, path: path}, nil
}

// Claim always fails off Linux.
func (d *Device) Claim() error { return ErrUnsupported }

// Release always fails off Linux.
func (d *Device) Release() error { return ErrUnsupported }

// Read always fails off Linux.
func (d *Device) Read() (byte, error) { return 0, ErrUnsupported }

// Write always fails off Linux.
func (d *Device) Write(byte) error { return ErrUnsupported }

// Close closes the underlying file.
func (d *Device) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
