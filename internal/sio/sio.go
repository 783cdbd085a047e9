// Package sio provides bit-level access to the Super I/O chip's digital lines.
// The default implementation drives the chip's index/data register pair
// through /dev/port. The gpiochip implementation goes through the kernel
// gpio-f7188x driver instead. Fakes allow testing without hardware.
package sio

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/qhal-nas/qhal/internal/catalog"
)

// Index/data register pair of the F71869A GPIO block.
const (
	IndexRegister uint16 = 0xA05
	DataRegister  uint16 = IndexRegister + 1
	PortCount            = 2
)

// ErrNotAcquired is returned when a line is accessed before Acquire.
var ErrNotAcquired = errors.New("sio: hardware not acquired")

// LineIO reads and writes logical line levels.
type LineIO interface {
	// ReadLine returns true when the line is active (LED lit, button held).
	// Lines are active-low on the chip: a raw 0 bit reads as active.
	ReadLine(l catalog.Line) (bool, error)

	// WriteLine drives the line to the given logical level.
	WriteLine(l catalog.Line, active bool) error
}

// Bus is a LineIO backed by hardware that must be acquired exclusively
// before use and released afterwards.
type Bus interface {
	LineIO
	Acquire() error
	Release() error
}

// Port is byte-wide access to the I/O port space.
type Port interface {
	Acquire() error
	Release() error
	Inb(addr uint16) (byte, error)
	Outb(value byte, addr uint16) error
}

// Registers implements Bus on top of the index/data register pair.
type Registers struct {
	port Port
	log  logrus.FieldLogger
}

// NewRegisters returns a Bus that addresses lines through port.
func NewRegisters(port Port, log logrus.FieldLogger) *Registers {
	return &Registers{port: port, log: log}
}

// Acquire obtains exclusive access to the register pair.
func (r *Registers) Acquire() error {
	return r.port.Acquire()
}

// Release gives up access to the register pair.
func (r *Registers) Release() error {
	return r.port.Release()
}

// ReadLine selects the line's register and returns the inverted bit.
func (r *Registers) ReadLine(l catalog.Line) (bool, error) {
	raw, err := r.selectAndRead(l)
	if err != nil {
		return false, err
	}
	bit := raw&(1<<l.Bit) != 0
	r.log.WithField("line", l.Name).Debugf("raw 0x%02x, bit %d=%t", raw, l.Bit, bit)
	return !bit, nil
}

// WriteLine performs a read-modify-write of the line's data byte. Other bits
// in the byte are preserved.
func (r *Registers) WriteLine(l catalog.Line, active bool) error {
	pre, err := r.selectAndRead(l)
	if err != nil {
		return err
	}

	mask := byte(1) << l.Bit
	post := pre | mask
	if active {
		post = pre &^ mask
	}
	r.log.WithField("line", l.Name).Debugf("raw 0x%02x -> 0x%02x", pre, post)

	if err := r.port.Outb(post, DataRegister); err != nil {
		return fmt.Errorf("write %s: %w", l.Name, err)
	}
	return nil
}

func (r *Registers) selectAndRead(l catalog.Line) (byte, error) {
	if err := r.port.Outb(l.Port, IndexRegister); err != nil {
		return 0, fmt.Errorf("select %s: %w", l.Name, err)
	}
	v, err := r.port.Inb(DataRegister)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", l.Name, err)
	}
	return v, nil
}
