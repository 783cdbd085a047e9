// Package command parses requests received on the daemon socket and routes
// them to the LED controller, the button tracker or the test-mode flag.
// Every request produces a response string; nothing here returns an error.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qhal-nas/qhal/internal/catalog"
	"github.com/qhal-nas/qhal/internal/led"
)

// LEDs is the part of the LED controller the dispatcher uses.
type LEDs interface {
	Get(name string) (led.State, error)
	Set(name string, s led.State) error
}

// Buttons is the part of the button tracker the dispatcher uses.
type Buttons interface {
	Assign(name string, argv []string) ([]string, error)
}

// Mode is the daemon-wide test-mode flag. The dispatcher sets it; the
// daemon loop reads it on every poll.
type Mode struct {
	test bool
}

// Test reports whether test mode is on.
func (m *Mode) Test() bool { return m.test }

// SetTest turns test mode on or off.
func (m *Mode) SetTest(on bool) { m.test = on }

const (
	ledUsage    = "Usage: led <enum> <on|off>"
	buttonUsage = "Usage: button <name> <[argv, ...]>"
	testUsage   = "Usage: test <on|off>"
)

type verb struct {
	min, max int // max < 0 means unbounded
	usage    string
	handle   func(d *Dispatcher, args []string, rest string) Result
}

var verbs = map[string]verb{
	"led": {
		min: 1, max: 2,
		usage:  ledUsage,
		handle: (*Dispatcher).led,
	},
	"button": {
		min: 2, max: -1,
		usage:  buttonUsage,
		handle: (*Dispatcher).button,
	},
	"test": {
		min: 1, max: 1,
		usage:  testUsage,
		handle: (*Dispatcher).test,
	},
}

// Dispatcher turns request strings into handler calls.
type Dispatcher struct {
	leds    LEDs
	buttons Buttons
	mode    *Mode
	log     logrus.FieldLogger
}

// NewDispatcher creates a dispatcher. mode is shared with the daemon loop.
func NewDispatcher(leds LEDs, buttons Buttons, mode *Mode, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		leds:    leds,
		buttons: buttons,
		mode:    mode,
		log:     log,
	}
}

// Dispatch serves one request.
func (d *Dispatcher) Dispatch(request string) Result {
	fields := strings.Fields(request)
	if len(fields) == 0 {
		return invalid("Unknown command: ")
	}

	name, args := fields[0], fields[1:]
	v, ok := verbs[name]
	if !ok {
		d.log.WithField("verb", name).Error("unknown command")
		return invalid("Unknown command: " + name)
	}
	if len(args) < v.min || (v.max >= 0 && len(args) > v.max) {
		d.log.WithField("args", args).Error("invalid number of arguments")
		return invalid(v.usage)
	}

	// The button command list may contain quoted whitespace, so it is taken
	// from the raw request rather than the split fields.
	_, rest := splitFields(request, 2)
	return v.handle(d, args, rest)
}

func (d *Dispatcher) led(args []string, _ string) Result {
	l, err := catalog.LED(args[0])
	if err != nil {
		d.log.WithField("led", args[0]).Error("unknown LED")
		return invalid("Unknown LED: " + args[0])
	}

	if len(args) == 1 {
		s, err := d.leds.Get(l.Name)
		if err != nil {
			d.log.WithField("led", l.Name).WithError(err).Error("failed to get LED state")
			return hwFailure("Failure to get LED state: " + err.Error())
		}
		return ok(fmt.Sprintf("LED %s is %s", l.Name, s))
	}

	s, err := led.ParseState(args[1])
	if err != nil {
		return invalid("Unknown state: " + args[1])
	}
	if err := d.leds.Set(l.Name, s); err != nil {
		d.log.WithField("led", l.Name).WithError(err).Error("failed to set LED state")
		return hwFailure("Failure to set LED state: " + err.Error())
	}
	return ok(fmt.Sprintf("Ok. LED %s is now %s", l.Name, s))
}

func (d *Dispatcher) button(args []string, rest string) Result {
	b, err := catalog.Button(args[0])
	if err != nil {
		d.log.WithField("button", args[0]).Error("unknown button")
		return invalid("Unknown button: " + args[0])
	}

	argv, err := ParseArgv(rest)
	if err != nil {
		d.log.WithField("button", b.Name).WithError(err).Error("invalid command list")
		return invalid("Invalid command list: " + err.Error())
	}

	if _, err := d.buttons.Assign(b.Name, argv); err != nil {
		// Only reachable if the tracker and the catalog disagree.
		if errors.Is(err, catalog.ErrUnknownLine) {
			return invalid("Unknown button: " + b.Name)
		}
		return InternalFailure(strings.Join(append([]string{"button"}, args...), " "))
	}

	if len(argv) == 0 {
		return ok(fmt.Sprintf("Button %s command disabled", b.Name))
	}
	return ok(fmt.Sprintf("Button %s command set to: %s", b.Name, FormatArgv(argv)))
}

func (d *Dispatcher) test(args []string, _ string) Result {
	switch args[0] {
	case "on":
		d.mode.SetTest(true)
		d.log.Info("test mode enabled")
		return ok("Test mode enabled")
	case "off":
		d.mode.SetTest(false)
		d.log.Info("test mode disabled")
		return ok("Test mode disabled")
	}
	return invalid(testUsage)
}

// splitFields returns the first n whitespace-separated fields of s and the
// remainder with surrounding whitespace trimmed.
func splitFields(s string, n int) ([]string, string) {
	var fields []string
	rest := strings.TrimSpace(s)
	for len(fields) < n && rest != "" {
		i := strings.IndexFunc(rest, isSpace)
		if i < 0 {
			fields = append(fields, rest)
			rest = ""
			break
		}
		fields = append(fields, rest[:i])
		rest = strings.TrimSpace(rest[i:])
	}
	return fields, rest
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
