package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qhal-nas/qhal/internal/button"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestTracker() *Tracker {
	tr := NewTracker(start, Config{Socket: "/tmp/qhal.sock", Backend: "port", PollMs: 100, Broker: "tcp://nas:1883"})
	tr.now = func() time.Time { return start.Add(90*time.Second + 400*time.Millisecond) }
	return tr
}

func TestNewTracker(t *testing.T) {
	snap := newTestTracker().Snapshot()
	assert.True(t, snap.StartTime.Equal(start))
	assert.Equal(t, int64(100), snap.Config.PollMs)
	assert.False(t, snap.TestMode)
	assert.False(t, snap.MQTTConnected)
	assert.Equal(t, 90*time.Second+400*time.Millisecond, snap.Uptime())
}

func TestCommandServed(t *testing.T) {
	tr := newTestTracker()
	tr.CommandServed(false)
	tr.CommandServed(true)
	tr.CommandServed(false)

	snap := tr.Snapshot()
	assert.Equal(t, 3, snap.CommandsServed)
	assert.Equal(t, 1, snap.CommandsFailed)
}

func TestSnapshotCopiesLEDs(t *testing.T) {
	tr := newTestTracker()
	leds := map[string]string{"Status_Green": "on"}
	tr.Update(true, button.Counts{Pressed: 2, Released: 1, Executed: 1}, leds)

	snap := tr.Snapshot()
	snap.LEDs["Status_Green"] = "off"

	again := tr.Snapshot()
	assert.Equal(t, "on", again.LEDs["Status_Green"])
	assert.True(t, again.TestMode)
	assert.Equal(t, button.Counts{Pressed: 2, Released: 1, Executed: 1}, again.Buttons)
}

func TestConcurrentAccess(t *testing.T) {
	tr := newTestTracker()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.CommandServed(false)
			tr.SetMQTTConnected(true)
		}()
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, tr.Snapshot().CommandsServed)
}

func TestFormatStatusEventStartup(t *testing.T) {
	tr := newTestTracker()
	tr.Update(false, button.Counts{}, map[string]string{"Front_USB": "off"})

	data := FormatStatusEvent(tr.Snapshot(), "STARTUP", "")
	assert.JSONEq(t, `{"status":{
		"event":"STARTUP",
		"test_mode":false,
		"uptime_seconds":90,
		"start_time":"2026-01-01T00:00:00Z",
		"timestamp":"2026-01-01T00:01:30Z",
		"mqtt":{"connected":false,"broker":"tcp://nas:1883"},
		"commands":{"served":0,"failed":0},
		"button_counts":{"pressed":0,"released":0,"executed":0},
		"leds":{"Front_USB":"off"},
		"config":{"socket":"/tmp/qhal.sock","backend":"port","poll_ms":100,"heartbeat_ms":0}
	}}`, string(data))
}

func TestFormatStatusEventShutdownOmitsConfig(t *testing.T) {
	data := FormatStatusEvent(newTestTracker().Snapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "SHUTDOWN", parsed.Status.Event)
	assert.Equal(t, "SIGTERM", parsed.Status.Reason)
	assert.Nil(t, parsed.Status.Config)
	assert.NotContains(t, string(data), `"leds"`)
}
