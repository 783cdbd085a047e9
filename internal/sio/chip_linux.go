//go:build linux

package sio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/qhal-nas/qhal/internal/catalog"
)

const consumer = "qhal"

// ChipLines drives the lines through the Linux GPIO character device, for
// systems where the gpio-f7188x driver has claimed the Super I/O GPIO block.
// Lines are requested active-low so logical levels match Registers.
type ChipLines struct {
	name    string
	offsets map[string]int
	outputs []catalog.Line
	inputs  []catalog.Line

	chip  *gpiocdev.Chip
	lines map[string]*gpiocdev.Line
}

// NewChipLines creates a Bus for the named chip. offsets maps line names to
// chip offsets; every output and input must have one.
func NewChipLines(chip string, offsets map[string]int, outputs, inputs []catalog.Line) *ChipLines {
	return &ChipLines{
		name:    chip,
		offsets: offsets,
		outputs: outputs,
		inputs:  inputs,
	}
}

// Acquire opens the chip and requests every line. Outputs keep their current
// level so acquiring does not flicker the LEDs.
func (c *ChipLines) Acquire() error {
	chip, err := gpiocdev.NewChip(c.name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return fmt.Errorf("open gpio chip %s: %w", c.name, err)
	}
	c.chip = chip
	c.lines = make(map[string]*gpiocdev.Line)

	for _, l := range c.outputs {
		if err := c.requestOutput(l); err != nil {
			c.Release()
			return err
		}
	}
	for _, l := range c.inputs {
		off, err := c.offset(l)
		if err != nil {
			c.Release()
			return err
		}
		line, err := chip.RequestLine(off, gpiocdev.AsInput, gpiocdev.AsActiveLow)
		if err != nil {
			c.Release()
			return fmt.Errorf("request input %s (offset %d): %w", l.Name, off, err)
		}
		c.lines[l.Name] = line
	}
	return nil
}

func (c *ChipLines) requestOutput(l catalog.Line) error {
	off, err := c.offset(l)
	if err != nil {
		return err
	}

	probe, err := c.chip.RequestLine(off, gpiocdev.AsInput, gpiocdev.AsActiveLow)
	if err != nil {
		return fmt.Errorf("probe %s (offset %d): %w", l.Name, off, err)
	}
	current, err := probe.Value()
	probe.Close()
	if err != nil {
		return fmt.Errorf("probe %s value: %w", l.Name, err)
	}

	line, err := c.chip.RequestLine(off, gpiocdev.AsOutput(current), gpiocdev.AsActiveLow)
	if err != nil {
		return fmt.Errorf("request output %s (offset %d): %w", l.Name, off, err)
	}
	c.lines[l.Name] = line
	return nil
}

func (c *ChipLines) offset(l catalog.Line) (int, error) {
	off, ok := c.offsets[l.Name]
	if !ok {
		return 0, fmt.Errorf("no gpiochip offset configured for line %s", l.Name)
	}
	return off, nil
}

// ReadLine returns the logical level of the line.
func (c *ChipLines) ReadLine(l catalog.Line) (bool, error) {
	line, ok := c.lines[l.Name]
	if !ok {
		return false, fmt.Errorf("line %s: %w", l.Name, ErrNotAcquired)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", l.Name, err)
	}
	return v == 1, nil
}

// WriteLine sets the logical level of an output line.
func (c *ChipLines) WriteLine(l catalog.Line, active bool) error {
	line, ok := c.lines[l.Name]
	if !ok {
		return fmt.Errorf("line %s: %w", l.Name, ErrNotAcquired)
	}
	v := 0
	if active {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("write %s: %w", l.Name, err)
	}
	return nil
}

// Release closes all requested lines and the chip.
func (c *ChipLines) Release() error {
	var errs []error

	for name, line := range c.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	c.lines = nil

	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
