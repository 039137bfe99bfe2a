//go:build linux

package parport

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is a ppdev parallel port node (e.g. /dev/parport0).
type Device struct {
	mu      sync.Mutex
	fd      int
	path    string
	claimed bool
	closed  bool
}

// Open opens the device node for reading and writing. The port is not
// claimed; call Claim before touching the DATA register.
func Open(path string) (*Device, error) {
	if path == "" {
		return nil, fmt.Errorf("parport: device path required")
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("parport: open %s: %w", path, err)
	}
	return &Device{fd: fd, path: path}, nil
}

// Claim acquires exclusive access to the port (PPCLAIM).
func (d *Device) Claim() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.claimed {
		return nil
	}
	if err := ioctl(d.fd, ioctlPPCLAIM, nil); err != nil {
		return fmt.Errorf("parport: PPCLAIM %s: %w", d.path, err)
	}
	d.claimed = true
	return nil
}

// Release gives up exclusive access (PPRELEASE).
func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releaseLocked()
}

func (d *Device) releaseLocked() error {
	if d.closed {
		return ErrClosed
	}
	if !d.claimed {
		return nil
	}
	d.claimed = false
	if err := ioctl(d.fd, ioctlPPRELEASE, nil); err != nil {
		return fmt.Errorf("parport: PPRELEASE %s: %w", d.path, err)
	}
	return nil
}

// Read returns the current DATA register value (PPRDATA).
func (d *Device) Read() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return 0, err
	}
	var b byte
	if err := ioctl(d.fd, ioctlPPRDATA, unsafe.Pointer(&b)); err != nil {
		return 0, fmt.Errorf("parport: PPRDATA %s: %w", d.path, err)
	}
	return b, nil
}

// Write sets the DATA register to b (PPWDATA).
func (d *Device) Write(b byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkLocked(); err != nil {
		return err
	}
	if err := ioctl(d.fd, ioctlPPWDATA, unsafe.Pointer(&b)); err != nil {
		return fmt.Errorf("parport: PPWDATA %s: %w", d.path, err)
	}
	return nil
}

// Close releases any claim and closes the descriptor. Closing twice is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	relErr := d.releaseLocked()
	d.closed = true
	if err := unix.Close(d.fd); err != nil {
		return fmt.Errorf("parport: close %s: %w", d.path, err)
	}
	return relErr
}

func (d *Device) checkLocked() error {
	if d.closed {
		return ErrClosed
	}
	if !d.claimed {
		return ErrNotClaimed
	}
	return nil
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
