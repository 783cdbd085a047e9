package command

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qhal-nas/qhal/internal/button"
	"github.com/qhal-nas/qhal/internal/led"
	"github.com/qhal-nas/qhal/internal/sio"
)

type fixture struct {
	lines   *sio.FakeLines
	leds    *led.Controller
	tracker *button.Tracker
	runner  *button.FakeRunner
	mode    *Mode
	d       *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	f := &fixture{
		lines:  sio.NewFakeLines(),
		runner: &button.FakeRunner{},
		mode:   &Mode{},
	}
	f.leds = led.NewController(f.lines, log)
	f.tracker = button.NewTracker(f.lines, f.runner, &button.FakeNotifier{}, log)
	f.d = NewDispatcher(f.leds, f.tracker, f.mode, log)
	return f
}

func TestLedSetThenGet(t *testing.T) {
	f := newFixture(t)

	r := f.d.Dispatch("led Status_Green on")
	assert.Equal(t, Result{Kind: OK, Text: "Ok. LED Status_Green is now on"}, r)

	r = f.d.Dispatch("led Status_Green")
	assert.Equal(t, Result{Kind: OK, Text: "LED Status_Green is on"}, r)

	r = f.d.Dispatch("led Disk3_Error off")
	assert.Equal(t, "Ok. LED Disk3_Error is now off", r.Text)
	r = f.d.Dispatch("led Disk3_Error")
	assert.Equal(t, "LED Disk3_Error is off", r.Text)
}

func TestLedBogusStateLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)

	r := f.d.Dispatch("led Status_Green bogus")
	assert.Equal(t, Result{Kind: Validation, Text: "Unknown state: bogus"}, r)
	_, known := f.leds.Known("Status_Green")
	assert.False(t, known)
	assert.Empty(t, f.lines.Writes)

	require.Equal(t, OK, f.d.Dispatch("led Status_Green off").Kind)
	f.lines.Reset()
	f.d.Dispatch("led Status_Green bogus")
	s, _ := f.leds.Known("Status_Green")
	assert.Equal(t, led.StateOff, s)
	assert.Empty(t, f.lines.Writes)
}

func TestValidationOrder(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		request string
		want    string
	}{
		{"", "Unknown command: "},
		{"fan on", "Unknown command: fan"},
		{"led", "Usage: led <enum> <on|off>"},
		{"led Nope on extra", "Usage: led <enum> <on|off>"},
		{"led Nope bogus", "Unknown LED: Nope"},
		{"led Reset", "Unknown LED: Reset"},
		{"button Reset", "Usage: button <name> <[argv, ...]>"},
		{"button Status_Green []", "Unknown button: Status_Green"},
		{"button Reset /bin/true", "Invalid command list: expected a bracketed list"},
		{"button Reset [\"\"]", "Invalid command list: first element must name an executable"},
		{"test", "Usage: test <on|off>"},
		{"test on off", "Usage: test <on|off>"},
		{"test maybe", "Usage: test <on|off>"},
	}
	for _, tt := range tests {
		r := f.d.Dispatch(tt.request)
		assert.Equal(t, Validation, r.Kind, "request %q", tt.request)
		assert.Equal(t, tt.want, r.Text, "request %q", tt.request)
	}
	assert.Empty(t, f.lines.Writes)
	assert.Zero(t, f.lines.Reads)
}

func TestLedHardwareFailure(t *testing.T) {
	f := newFixture(t)
	f.lines.WriteError = errors.New("bus fault")
	r := f.d.Dispatch("led Front_USB on")
	assert.Equal(t, Result{Kind: Hardware, Text: "Failure to set LED state: bus fault"}, r)

	f.lines.ReadError = errors.New("bus fault")
	r = f.d.Dispatch("led Front_USB")
	assert.Equal(t, Result{Kind: Hardware, Text: "Failure to get LED state: bus fault"}, r)
}

func TestButtonAssignAndClear(t *testing.T) {
	f := newFixture(t)

	r := f.d.Dispatch(`button Reset ["/bin/sh", "-c", "echo two words"]`)
	assert.Equal(t, OK, r.Kind)
	assert.Equal(t, `Button Reset command set to: ["/bin/sh", "-c", "echo two words"]`, r.Text)
	cmd, err := f.tracker.Command("Reset")
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/sh", "-c", "echo two words"}, cmd)

	r = f.d.Dispatch("button Reset []")
	assert.Equal(t, Result{Kind: OK, Text: "Button Reset command disabled"}, r)
	cmd, _ = f.tracker.Command("Reset")
	assert.Empty(t, cmd)

	// A release after clearing runs nothing.
	f.tracker.Poll(false)
	f.lines.Levels["Reset"] = true
	f.tracker.Poll(false)
	f.lines.Levels["Reset"] = false
	f.tracker.Poll(false)
	assert.Empty(t, f.runner.Calls)
}

func TestButtonKeepsLiteralTokens(t *testing.T) {
	f := newFixture(t)

	r := f.d.Dispatch("button Reset [/bin/chmod, 0755, /srv/share]")
	assert.Equal(t, Result{Kind: OK, Text: `Button Reset command set to: ["/bin/chmod", "0755", "/srv/share"]`}, r)
}

func TestTestModeToggle(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, Result{Kind: OK, Text: "Test mode enabled"}, f.d.Dispatch("test on"))
	assert.True(t, f.mode.Test())
	assert.Equal(t, Result{Kind: OK, Text: "Test mode disabled"}, f.d.Dispatch("test off"))
	assert.False(t, f.mode.Test())
}

func TestExtraWhitespaceIsIgnored(t *testing.T) {
	f := newFixture(t)
	r := f.d.Dispatch("  led   Status_Red\ton  ")
	assert.Equal(t, "Ok. LED Status_Red is now on", r.Text)

	r = f.d.Dispatch(`button   USB_Copy   [ /usr/bin/backup ,  "--all" ]`)
	assert.Equal(t, `Button USB_Copy command set to: ["/usr/bin/backup", "--all"]`, r.Text)
}

func TestParseArgv(t *testing.T) {
	argv, err := ParseArgv(`["/bin/echo", 'single quoted', 42]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/echo", "single quoted", "42"}, argv)

	argv, err = ParseArgv("[]")
	require.NoError(t, err)
	assert.Nil(t, argv)

	// Unquoted scalars are passed through as written, not as decoded values.
	argv, err = ParseArgv("[/bin/chmod, 0755, /srv/share]")
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/chmod", "0755", "/srv/share"}, argv)

	argv, err = ParseArgv("[/usr/bin/tool, 0x10, 1.0, 007, 1.50, true]")
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/tool", "0x10", "1.0", "007", "1.50", "true"}, argv)

	for _, bad := range []string{"", "/bin/true", "[unterminated", `[["nested"]]`, "[{a: b}]", "[~]", `[""]`} {
		_, err := ParseArgv(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestFormatArgvRoundTrips(t *testing.T) {
	argv := []string{"/bin/sh", "-c", `echo "quoted" and, commas`}
	got, err := ParseArgv(FormatArgv(argv))
	require.NoError(t, err)
	assert.Equal(t, argv, got)
}

func TestInternalFailure(t *testing.T) {
	r := InternalFailure("led Status_Green on")
	assert.Equal(t, Internal, r.Kind)
	assert.Equal(t, "Could not process command: led Status_Green on", r.Text)
	assert.Equal(t, "internal", r.Kind.String())
}
