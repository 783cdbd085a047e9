// Package daemon runs the single-threaded service loop: it serves one
// socket request at a time and polls buttons and LEDs whenever the accept
// wait times out. All hardware access happens on the goroutine calling Run.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qhal-nas/qhal/internal/button"
	"github.com/qhal-nas/qhal/internal/command"
	"github.com/qhal-nas/qhal/internal/led"
	"github.com/qhal-nas/qhal/internal/mqtt"
	"github.com/qhal-nas/qhal/internal/sio"
	"github.com/qhal-nas/qhal/internal/status"
)

const (
	// MaxRequest bounds a single request.
	MaxRequest = 1024

	// DefaultPollInterval is the accept timeout, which is also the polling
	// period.
	DefaultPollInterval = 100 * time.Millisecond

	// A client must send its request within this time.
	requestTimeout = time.Second
)

// Options configures a Daemon.
type Options struct {
	Socket            string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration // zero disables heartbeats
	// Buttons holds commands assigned at startup, keyed by button name.
	Buttons map[string][]string
}

// Daemon owns the hardware bus and every piece of runtime state.
type Daemon struct {
	opts      Options
	bus       sio.Bus
	leds      *led.Controller
	buttons   *button.Tracker
	mode      *command.Mode
	publisher mqtt.Publisher
	status    *status.Tracker
	log       logrus.FieldLogger
	now       func() time.Time

	dispatch      func(string) command.Result
	lastHeartbeat time.Time
}

// New wires a daemon. runner starts button commands; notifier signals
// button presses in test mode.
func New(opts Options, bus sio.Bus, runner button.Runner, notifier button.Notifier, publisher mqtt.Publisher, st *status.Tracker, log logrus.FieldLogger) *Daemon {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if publisher == nil {
		publisher = mqtt.Nop{}
	}

	d := &Daemon{
		opts:      opts,
		bus:       bus,
		leds:      led.NewController(bus, log),
		buttons:   button.NewTracker(bus, runner, notifier, log),
		mode:      &command.Mode{},
		publisher: publisher,
		status:    st,
		log:       log,
		now:       time.Now,
	}
	d.dispatch = command.NewDispatcher(d.leds, d.buttons, d.mode, log).Dispatch

	d.buttons.OnEvent(func(e button.Event) {
		if err := d.publisher.Publish(e); err != nil {
			d.log.WithError(err).Warn("failed to publish button event")
		}
	})
	d.leds.OnPhase(func(p led.Phase) {
		event := "TEST_MODE_ON"
		if p == led.PhaseInactive {
			event = "TEST_MODE_OFF"
		}
		d.publishSystem(event, "", false)
	})

	for name, argv := range opts.Buttons {
		if _, err := d.buttons.Assign(name, argv); err != nil {
			d.log.WithField("button", name).WithError(err).Warn("ignoring configured command")
		}
	}
	return d
}

// Run serves until ctx is cancelled. It fails only when the hardware or the
// socket cannot be set up. Cancellation is checked once per iteration, so a
// request or poll pass in progress always completes first.
func (d *Daemon) Run(ctx context.Context) error {
	if err := os.Remove(d.opts.Socket); err == nil {
		d.log.WithField("socket", d.opts.Socket).Info("removed stale socket")
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale socket: %w", err)
	}

	if err := d.bus.Acquire(); err != nil {
		d.log.WithError(err).Error("failed to acquire hardware access")
		return fmt.Errorf("acquiring hardware: %w", err)
	}
	defer func() {
		if err := d.bus.Release(); err != nil {
			d.log.WithError(err).Error("failed to release hardware access")
		}
	}()

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: d.opts.Socket, Net: "unix"})
	if err != nil {
		return fmt.Errorf("listening on %s: %w", d.opts.Socket, err)
	}
	defer func() {
		d.leds.Shutdown()
		ln.Close()
		if err := os.Remove(d.opts.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.log.WithError(err).Warn("failed to remove socket")
		}
		d.publishSystem("SHUTDOWN", shutdownReason(ctx), true)
		d.log.Info("daemon stopped")
	}()

	d.lastHeartbeat = d.now()
	d.publishSystem("STARTUP", "", true)
	d.log.WithFields(logrus.Fields{
		"socket": d.opts.Socket,
		"poll":   d.opts.PollInterval,
	}).Info("daemon started")

	for ctx.Err() == nil {
		if err := ln.SetDeadline(d.now().Add(d.opts.PollInterval)); err != nil {
			return fmt.Errorf("setting accept deadline: %w", err)
		}
		conn, err := ln.AcceptUnix()
		if errors.Is(err, os.ErrDeadlineExceeded) {
			d.poll()
			continue
		}
		if errors.Is(err, net.ErrClosed) {
			return err
		}
		if err != nil {
			d.log.WithError(err).Error("accept failed")
			continue
		}
		d.serve(conn)
	}
	return nil
}

func (d *Daemon) serve(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(d.now().Add(requestTimeout))

	buf := make([]byte, MaxRequest)
	n, err := conn.Read(buf)
	if err != nil {
		d.log.WithError(err).Warn("failed to read request")
		return
	}
	request := strings.TrimSpace(string(buf[:n]))
	d.log.WithField("request", request).Info("received command")

	result := d.handle(request)
	if d.status != nil {
		d.status.CommandServed(result.Kind != command.OK)
	}
	d.log.WithFields(logrus.Fields{"kind": result.Kind, "response": result.Text}).Debug("sending response")
	if _, err := conn.Write([]byte(result.Text)); err != nil {
		d.log.WithError(err).Warn("failed to send response")
	}
}

// handle runs the dispatcher, turning a panic into the generic failure
// response so one bad request never takes the loop down.
func (d *Daemon) handle(request string) (result command.Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{"request": request, "panic": r}).Error("failed to process command")
			result = command.InternalFailure(request)
		}
	}()
	return d.dispatch(request)
}

func (d *Daemon) poll() {
	testMode := d.mode.Test()
	d.buttons.Poll(testMode)
	d.leds.Tick(testMode)

	if d.opts.HeartbeatInterval > 0 && d.now().Sub(d.lastHeartbeat) >= d.opts.HeartbeatInterval {
		d.lastHeartbeat = d.now()
		c := d.buttons.Counts()
		d.log.WithFields(logrus.Fields{
			"pressed":  c.Pressed,
			"released": c.Released,
			"executed": c.Executed,
		}).Info("heartbeat")
		d.publishSystem("HEARTBEAT", "", false)
	}
}

func (d *Daemon) publishSystem(event, reason string, retained bool) {
	e := mqtt.SystemEvent{Timestamp: d.now(), Event: event, Reason: reason, Retained: retained}
	// Everything else is published from inside the loop and must not block.
	// The process exits right after SHUTDOWN, so that one waits for the broker.
	e.Wait = event == "SHUTDOWN"
	if d.status != nil {
		d.status.Update(d.mode.Test(), d.buttons.Counts(), d.leds.KnownStates())
		if cs, ok := d.publisher.(mqtt.ConnectionStatus); ok {
			d.status.SetMQTTConnected(cs.IsConnected())
		}
		e.RawPayload = status.FormatStatusEvent(d.status.Snapshot(), event, reason)
	}
	if err := d.publisher.PublishSystem(e); err != nil {
		d.log.WithField("event", event).WithError(err).Warn("failed to publish system event")
	}
}

// ShutdownReason is a cancellation cause that names why the daemon stopped,
// e.g. the signal received.
type ShutdownReason string

func (r ShutdownReason) Error() string { return string(r) }

func shutdownReason(ctx context.Context) string {
	var r ShutdownReason
	if errors.As(context.Cause(ctx), &r) {
		return string(r)
	}
	return ""
}
