package daemon

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qhal-nas/qhal/internal/button"
	"github.com/qhal-nas/qhal/internal/catalog"
	"github.com/qhal-nas/qhal/internal/command"
	"github.com/qhal-nas/qhal/internal/mqtt"
	"github.com/qhal-nas/qhal/internal/sio"
	"github.com/qhal-nas/qhal/internal/status"
)

// testBus guards FakeLines so the test goroutine can inspect it while the
// daemon runs.
type testBus struct {
	mu         sync.Mutex
	lines      *sio.FakeLines
	acquireErr error
	releaseErr error
	acquired   bool
	released   bool
}

func (b *testBus) ReadLine(l catalog.Line) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lines.ReadLine(l)
}

func (b *testBus) WriteLine(l catalog.Line, active bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lines.WriteLine(l, active)
}

func (b *testBus) Acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.acquireErr != nil {
		return b.acquireErr
	}
	b.acquired = true
	return nil
}

func (b *testBus) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	return b.releaseErr
}

func (b *testBus) set(name string, active bool) {
	b.mu.Lock()
	b.lines.Levels[name] = active
	b.mu.Unlock()
}

func (b *testBus) level(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lines.Levels[name]
}

// lockedRunner records commands from the daemon goroutine.
type lockedRunner struct {
	mu    sync.Mutex
	calls []button.Call
}

func (r *lockedRunner) Run(name string, argv []string) {
	r.mu.Lock()
	r.calls = append(r.calls, button.Call{Button: name, Argv: argv})
	r.mu.Unlock()
}

func (r *lockedRunner) Calls() []button.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]button.Call(nil), r.calls...)
}

type fixture struct {
	socket    string
	bus       *testBus
	runner    *lockedRunner
	publisher *mqtt.FakePublisher
	status    *status.Tracker
	hook      *test.Hook
	d         *Daemon

	cancel context.CancelCauseFunc
	done   chan error
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	log, hook := test.NewNullLogger()
	f := &fixture{
		socket:    filepath.Join(t.TempDir(), "qhal.sock"),
		bus:       &testBus{lines: sio.NewFakeLines()},
		runner:    &lockedRunner{},
		publisher: mqtt.NewFakePublisher(),
		status:    status.NewTracker(time.Now(), status.Config{}),
		hook:      hook,
	}
	opts.Socket = f.socket
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	f.d = New(opts, f.bus, f.runner, nil, f.publisher, f.status, log)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancelCause(context.Background())
	f.cancel = cancel
	f.done = make(chan error, 1)
	go func() { f.done <- f.d.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, e := range f.hook.AllEntries() {
			if e.Message == "daemon started" {
				return true
			}
		}
		return false
	}, 2*time.Second, time.Millisecond)
	t.Cleanup(func() { f.stop(t, nil) })
}

func (f *fixture) stop(t *testing.T, cause error) {
	t.Helper()
	if f.cancel == nil {
		return
	}
	f.cancel(cause)
	f.cancel = nil
	select {
	case err := <-f.done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func (f *fixture) send(t *testing.T, request string) string {
	t.Helper()
	conn, err := net.Dial("unix", f.socket)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(request))
	require.NoError(t, err)
	buf := make([]byte, MaxRequest)
	var resp []byte
	for {
		n, err := conn.Read(buf)
		resp = append(resp, buf[:n]...)
		if err != nil {
			break
		}
	}
	return string(resp)
}

func TestLedScenario(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t)

	assert.Equal(t, "Ok. LED Status_Green is now on", f.send(t, "led Status_Green on"))
	assert.Equal(t, "LED Status_Green is on", f.send(t, "led Status_Green"))
	assert.Equal(t, "Unknown state: bogus", f.send(t, "led Status_Green bogus"))
	assert.Equal(t, "Unknown command: fan", f.send(t, "fan Fan1"))
	assert.True(t, f.bus.level("Status_Green"))

	f.stop(t, nil)
	snap := f.status.Snapshot()
	assert.Equal(t, 4, snap.CommandsServed)
	assert.Equal(t, 2, snap.CommandsFailed)
}

func TestTestModeRestoresLEDs(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t)

	before := map[string]bool{}
	for i, l := range catalog.LEDs() {
		on := i%2 == 0
		before[l.Name] = on
		if i < 6 {
			// Half the LEDs are known through commands, the others get
			// seeded from hardware on entering test mode.
			state := "off"
			if on {
				state = "on"
			}
			f.send(t, "led "+l.Name+" "+state)
		} else {
			f.bus.set(l.Name, on)
		}
	}

	assert.Equal(t, "Test mode enabled", f.send(t, "test on"))
	// Wait for more than one full sweep of the catalog.
	time.Sleep(time.Duration(3*len(before)) * 5 * time.Millisecond)
	assert.Equal(t, "Test mode disabled", f.send(t, "test off"))
	time.Sleep(50 * time.Millisecond)

	f.stop(t, nil)
	for name, on := range before {
		assert.Equal(t, on, f.bus.level(name), "LED %s", name)
	}
	assert.Contains(t, f.publisher.SystemEventNames(), "TEST_MODE_ON")
	assert.Contains(t, f.publisher.SystemEventNames(), "TEST_MODE_OFF")
}

func TestShutdownDuringTestModeRestoresLEDs(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t)

	f.send(t, "led Front_USB on")
	f.send(t, "test on")
	time.Sleep(100 * time.Millisecond)

	f.stop(t, ShutdownReason("SIGTERM"))
	assert.True(t, f.bus.level("Front_USB"))
	for _, l := range catalog.LEDs() {
		if l.Name != "Front_USB" {
			assert.False(t, f.bus.level(l.Name), "LED %s", l.Name)
		}
	}

	names := f.publisher.SystemEventNames()
	require.NotEmpty(t, names)
	assert.Equal(t, "STARTUP", names[0])
	assert.Equal(t, "SHUTDOWN", names[len(names)-1])
	assert.Equal(t, "SIGTERM", f.publisher.SystemEvents[len(names)-1].Reason)
}

func TestButtonReleaseRunsConfiguredCommand(t *testing.T) {
	f := newFixture(t, Options{Buttons: map[string][]string{"USB_Copy": {"/usr/bin/backup"}}})
	f.start(t)

	// Let the first poll record the baseline.
	time.Sleep(30 * time.Millisecond)
	f.bus.set("USB_Copy", true)
	time.Sleep(30 * time.Millisecond)
	f.bus.set("USB_Copy", false)

	require.Eventually(t, func() bool { return len(f.runner.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, button.Call{Button: "USB_Copy", Argv: []string{"/usr/bin/backup"}}, f.runner.Calls()[0])

	f.stop(t, nil)
	require.Len(t, f.publisher.Events, 2)
	assert.Equal(t, button.EventPressed, f.publisher.Events[0].Type)
	assert.Equal(t, button.EventReleased, f.publisher.Events[1].Type)
}

func TestButtonCommandCleared(t *testing.T) {
	f := newFixture(t, Options{Buttons: map[string][]string{"Reset": {"/sbin/reboot"}}})
	f.start(t)

	assert.Equal(t, "Button Reset command disabled", f.send(t, "button Reset []"))
	time.Sleep(30 * time.Millisecond)
	f.bus.set("Reset", true)
	time.Sleep(30 * time.Millisecond)
	f.bus.set("Reset", false)
	time.Sleep(30 * time.Millisecond)

	f.stop(t, nil)
	assert.Empty(t, f.runner.Calls())
	var logged bool
	for _, e := range f.hook.AllEntries() {
		logged = logged || e.Message == "released, no command configured"
	}
	assert.True(t, logged)
}

func TestPanicInDispatchSendsGenericFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.d.dispatch = func(req string) command.Result {
		if req == "boom" {
			panic("unexpected")
		}
		return command.Result{Kind: command.OK, Text: "fine"}
	}
	f.start(t)

	assert.Equal(t, "Could not process command: boom", f.send(t, "boom"))
	assert.Equal(t, "fine", f.send(t, "led Status_Green"), "the loop keeps serving")
}

func TestAcquireFailureIsFatal(t *testing.T) {
	f := newFixture(t, Options{})
	f.bus.acquireErr = errors.New("permission denied")

	err := f.d.Run(context.Background())
	require.ErrorIs(t, err, f.bus.acquireErr)
	assert.NoFileExists(t, f.socket)
	assert.Empty(t, f.publisher.SystemEvents)
}

func TestStaleSocketIsRemovedAndReleaseFailureLogged(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, os.WriteFile(f.socket, nil, 0o600))
	f.bus.releaseErr = errors.New("close failed")

	f.start(t)
	assert.Equal(t, "Test mode disabled", f.send(t, "test off"))
	f.stop(t, nil)

	assert.True(t, f.bus.released)
	assert.NoFileExists(t, f.socket)
	var logged bool
	for _, e := range f.hook.AllEntries() {
		logged = logged || e.Message == "failed to release hardware access"
	}
	assert.True(t, logged)
}

func TestHeartbeat(t *testing.T) {
	f := newFixture(t, Options{HeartbeatInterval: 20 * time.Millisecond})
	f.start(t)
	time.Sleep(100 * time.Millisecond)
	f.stop(t, nil)

	assert.Contains(t, f.publisher.SystemEventNames(), "HEARTBEAT")
}

func TestOnlyShutdownWaitsForBroker(t *testing.T) {
	f := newFixture(t, Options{HeartbeatInterval: 10 * time.Millisecond})
	f.start(t)
	f.send(t, "test on")
	time.Sleep(50 * time.Millisecond)
	f.send(t, "test off")
	time.Sleep(30 * time.Millisecond)
	f.stop(t, nil)

	names := f.publisher.SystemEventNames()
	for _, want := range []string{"STARTUP", "TEST_MODE_ON", "TEST_MODE_OFF", "HEARTBEAT", "SHUTDOWN"} {
		assert.Contains(t, names, want)
	}
	for _, e := range f.publisher.SystemEvents {
		assert.Equal(t, e.Event == "SHUTDOWN", e.Wait, "event %s", e.Event)
	}
}
