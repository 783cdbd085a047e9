// Package lcd drives the two-line front panel display over its serial
// link.
package lcd

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	DefaultTTY  = "/dev/ttyS1"
	DefaultBaud = 1200

	// Width is the number of characters per row.
	Width = 16

	readTimeout = time.Second
)

var (
	frameOn   = []byte("M^\x01\n")
	frameOff  = []byte("M^\x00\n")
	frameInit = []byte("M\x00")
	frameLit  = []byte("M^\x01")
	initAck   = []byte("S\x01\x00}")
)

// Panel is an open connection to the display.
type Panel struct {
	rw  io.ReadWriter
	log logrus.FieldLogger
}

// Open opens the serial port of the display.
func Open(tty string, baud int, log logrus.FieldLogger) (*Panel, error) {
	port, err := serial.Open(tty, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", tty, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("configuring %s: %w", tty, err)
	}
	return New(port, log.WithField("tty", tty)), nil
}

// Close closes the underlying link if it can be closed.
func (p *Panel) Close() error {
	if c, ok := p.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// New wraps an already open link.
func New(rw io.ReadWriter, log logrus.FieldLogger) *Panel {
	return &Panel{rw: rw, log: log}
}

// SetState switches the backlight on or off.
func (p *Panel) SetState(on bool) error {
	p.log.WithField("on", on).Info("setting LCD state")
	frame := frameOff
	if on {
		frame = frameOn
	}
	_, err := p.rw.Write(frame)
	return err
}

// Write shows two rows of text. Each row is padded or cut to Width. It
// reports whether the panel acknowledged the init frame; a missing ack is
// logged but the rows are still sent.
func (p *Panel) Write(line1, line2 string) (bool, error) {
	p.log.Infof("writing to LCD: %q - %q", line1, line2)

	if _, err := p.rw.Write(frameInit); err != nil {
		return false, err
	}
	ack := p.readAck()
	ok := bytes.Equal(ack, initAck)
	if !ok {
		p.log.WithField("ack", fmt.Sprintf("%q", ack)).Warn("unexpected LCD init response")
	}

	for row, text := range []string{line1, line2} {
		if _, err := p.rw.Write(frameLit); err != nil {
			return ok, err
		}
		if _, err := p.rw.Write(rowFrame(row, text)); err != nil {
			return ok, err
		}
	}
	return ok, nil
}

// readAck reads up to len(initAck) bytes, stopping early on a timeout.
func (p *Panel) readAck() []byte {
	buf := make([]byte, len(initAck))
	n := 0
	for n < len(buf) {
		m, err := p.rw.Read(buf[n:])
		n += m
		if err != nil || m == 0 {
			break
		}
	}
	return buf[:n]
}

func rowFrame(row int, text string) []byte {
	if len(text) > Width {
		text = text[:Width]
	}
	text += strings.Repeat(" ", Width-len(text))
	return append([]byte{'M', '\f', byte(row), 0x10}, text...)
}
