//go:build !linux

package sio

import (
	"errors"

	"github.com/qhal-nas/qhal/internal/catalog"
)

var errChipUnsupported = errors.New("sio: gpiochip backend not supported on this platform (requires Linux)")

// ChipLines is not available on non-Linux platforms.
type ChipLines struct{}

// NewChipLines returns a ChipLines whose Acquire always fails.
func NewChipLines(chip string, offsets map[string]int, outputs, inputs []catalog.Line) *ChipLines {
	return &ChipLines{}
}

// Acquire is not implemented on non-Linux platforms.
func (c *ChipLines) Acquire() error {
	return errChipUnsupported
}

// ReadLine is not implemented on non-Linux platforms.
func (c *ChipLines) ReadLine(l catalog.Line) (bool, error) {
	return false, errChipUnsupported
}

// WriteLine is not implemented on non-Linux platforms.
func (c *ChipLines) WriteLine(l catalog.Line, active bool) error {
	return errChipUnsupported
}

// Release is a no-op on non-Linux platforms.
func (c *ChipLines) Release() error {
	return nil
}
