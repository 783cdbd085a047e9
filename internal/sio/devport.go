package sio

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// DefaultDevPort is the kernel's byte-addressed view of the I/O port space.
const DefaultDevPort = "/dev/port"

// DevPort accesses I/O ports through a /dev/port style file. Exclusive use
// of the register pair is enforced with a lock file, since the index/data
// protocol breaks if two processes interleave selector writes.
type DevPort struct {
	path string
	lock *flock.Flock
	f    *os.File
}

// NewDevPort creates a port accessor for path, guarded by lockPath.
// Nothing is opened until Acquire.
func NewDevPort(path, lockPath string) *DevPort {
	return &DevPort{
		path: path,
		lock: flock.New(lockPath),
	}
}

// Acquire takes the lock and opens the port file read-write.
func (d *DevPort) Acquire() error {
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", d.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("io ports 0x%03X-0x%03X busy: %s is held by another process",
			IndexRegister, IndexRegister+PortCount-1, d.lock.Path())
	}

	f, err := os.OpenFile(d.path, os.O_RDWR, 0)
	if err != nil {
		d.lock.Unlock()
		return fmt.Errorf("open %s: %w", d.path, err)
	}
	d.f = f
	return nil
}

// Release closes the port file and drops the lock. Both steps are attempted.
func (d *DevPort) Release() error {
	var errs []error
	if d.f != nil {
		if err := d.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", d.path, err))
		}
		d.f = nil
	}
	if err := d.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock %s: %w", d.lock.Path(), err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}

// Inb reads one byte at addr.
func (d *DevPort) Inb(addr uint16) (byte, error) {
	if d.f == nil {
		return 0, ErrNotAcquired
	}
	var b [1]byte
	if _, err := d.f.ReadAt(b[:], int64(addr)); err != nil {
		return 0, fmt.Errorf("inb 0x%03X: %w", addr, err)
	}
	return b[0], nil
}

// Outb writes value at addr.
func (d *DevPort) Outb(value byte, addr uint16) error {
	if d.f == nil {
		return ErrNotAcquired
	}
	if _, err := d.f.WriteAt([]byte{value}, int64(addr)); err != nil {
		return fmt.Errorf("outb 0x%03X: %w", addr, err)
	}
	return nil
}
