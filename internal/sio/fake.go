package sio

import (
	"github.com/qhal-nas/qhal/internal/catalog"
)

// FakePort is an in-memory register file used as a test double for DevPort.
// Each selector addresses its own data byte.
type FakePort struct {
	// Regs holds the raw data byte for every selector.
	Regs [256]byte

	// DataReads and DataWrites count accesses to the data register.
	DataReads  int
	DataWrites int

	// Acquired tracks whether Acquire was called without a matching Release.
	Acquired bool

	// AcquireError, if set, is returned by Acquire.
	AcquireError error

	// ReleaseError, if set, is returned by Release.
	ReleaseError error

	// IOError, if set, is returned by Inb and Outb.
	IOError error

	index byte
}

// NewFakePort returns a FakePort with every raw bit set, i.e. every line
// logically inactive.
func NewFakePort() *FakePort {
	f := &FakePort{}
	for i := range f.Regs {
		f.Regs[i] = 0xFF
	}
	return f
}

// Acquire marks the port as acquired.
func (f *FakePort) Acquire() error {
	if f.AcquireError != nil {
		return f.AcquireError
	}
	f.Acquired = true
	return nil
}

// Release marks the port as released.
func (f *FakePort) Release() error {
	f.Acquired = false
	return f.ReleaseError
}

// Inb returns the selected data byte.
func (f *FakePort) Inb(addr uint16) (byte, error) {
	if f.IOError != nil {
		return 0, f.IOError
	}
	if addr != DataRegister {
		return 0xFF, nil
	}
	f.DataReads++
	return f.Regs[f.index], nil
}

// Outb sets the selector or the selected data byte.
func (f *FakePort) Outb(value byte, addr uint16) error {
	if f.IOError != nil {
		return f.IOError
	}
	switch addr {
	case IndexRegister:
		f.index = value
	case DataRegister:
		f.DataWrites++
		f.Regs[f.index] = value
	}
	return nil
}

// RawBit returns the raw (non-inverted) bit backing l.
func (f *FakePort) RawBit(l catalog.Line) bool {
	return f.Regs[l.Port]&(1<<l.Bit) != 0
}

// SetRawBit sets the raw (non-inverted) bit backing l.
func (f *FakePort) SetRawBit(l catalog.Line, set bool) {
	if set {
		f.Regs[l.Port] |= 1 << l.Bit
	} else {
		f.Regs[l.Port] &^= 1 << l.Bit
	}
}

// Write records a single WriteLine call on FakeLines.
type Write struct {
	Line   string
	Active bool
}

// FakeLines is a line-level test double that records every access.
type FakeLines struct {
	// Levels holds the logical level per line name. Missing means inactive.
	Levels map[string]bool

	// Reads counts ReadLine calls.
	Reads int

	// Writes records WriteLine calls in order.
	Writes []Write

	// ReadError and WriteError, if set, are returned by ReadLine and WriteLine.
	ReadError  error
	WriteError error
}

// NewFakeLines creates FakeLines with all lines inactive.
func NewFakeLines() *FakeLines {
	return &FakeLines{Levels: make(map[string]bool)}
}

// ReadLine returns the scripted level.
func (f *FakeLines) ReadLine(l catalog.Line) (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	f.Reads++
	return f.Levels[l.Name], nil
}

// WriteLine records the write and updates the level.
func (f *FakeLines) WriteLine(l catalog.Line, active bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, Write{Line: l.Name, Active: active})
	f.Levels[l.Name] = active
	return nil
}

// Reset clears recorded accesses but keeps levels.
func (f *FakeLines) Reset() {
	f.Reads = 0
	f.Writes = nil
}
