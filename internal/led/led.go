// Package led drives the front-panel and disk LEDs, including the test-mode
// chase animation that walks a single LED through the catalog.
package led

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/qhal-nas/qhal/internal/catalog"
	"github.com/qhal-nas/qhal/internal/sio"
)

// State is the logical state of an LED.
type State string

const (
	StateOn  State = "on"
	StateOff State = "off"
)

// ErrInvalidState is returned for anything other than "on" or "off".
var ErrInvalidState = errors.New("invalid LED state")

// ParseState validates s.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateOn, StateOff:
		return State(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidState)
}

func (s State) active() bool { return s == StateOn }

func (s State) flip() State {
	if s == StateOn {
		return StateOff
	}
	return StateOn
}

func fromActive(active bool) State {
	if active {
		return StateOn
	}
	return StateOff
}

// Phase is the test-mode phase of the controller.
type Phase string

const (
	PhaseInactive Phase = "INACTIVE"
	PhaseActive   Phase = "ACTIVE"
)

// Controller owns every LED. It is not safe for concurrent use; the daemon
// loop owns it.
type Controller struct {
	io   sio.LineIO
	log  logrus.FieldLogger
	leds []catalog.Line

	// Last level written through Set (or seeded on entering test mode).
	// Missing means unknown. Chase writes never touch it.
	known map[string]State

	phase  Phase
	cursor int
	chase  State

	onPhase func(Phase)
}

// NewController creates a controller for every catalog LED.
func NewController(io sio.LineIO, log logrus.FieldLogger) *Controller {
	return &Controller{
		io:     io,
		log:    log,
		leds:   catalog.LEDs(),
		known:  make(map[string]State),
		phase:  PhaseInactive,
		cursor: -1,
		chase:  StateOff,
	}
}

// OnPhase registers fn to be called whenever test mode is entered or left.
func (c *Controller) OnPhase(fn func(Phase)) {
	c.onPhase = fn
}

// Get reads the LED's current level from hardware.
func (c *Controller) Get(name string) (State, error) {
	l, err := catalog.LED(name)
	if err != nil {
		return "", err
	}
	active, err := c.io.ReadLine(l)
	if err != nil {
		return "", err
	}
	s := fromActive(active)
	c.log.WithField("led", l.Name).Infof("reading state: %s", s)
	return s, nil
}

// Set drives the LED and records the level as its current state.
func (c *Controller) Set(name string, s State) error {
	l, err := catalog.LED(name)
	if err != nil {
		return err
	}
	if _, err := ParseState(string(s)); err != nil {
		return err
	}
	c.log.WithField("led", l.Name).Infof("setting to %s", s)
	if err := c.io.WriteLine(l, s.active()); err != nil {
		return err
	}
	c.known[l.Name] = s
	return nil
}

// Known returns the recorded state of the named LED, or false when it has
// never been written or seeded.
func (c *Controller) Known(name string) (State, bool) {
	s, ok := c.known[name]
	return s, ok
}

// Phase reports whether the chase animation is running.
func (c *Controller) Phase() Phase {
	return c.phase
}

// KnownStates returns a copy of every recorded LED state.
func (c *Controller) KnownStates() map[string]string {
	out := make(map[string]string, len(c.known))
	for name, s := range c.known {
		out[name] = string(s)
	}
	return out
}
