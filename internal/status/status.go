// Package status keeps a snapshot of daemon state for the lifecycle and
// heartbeat events.
package status

import (
	"sync"
	"time"

	"github.com/qhal-nas/qhal/internal/button"
)

// Config contains daemon configuration for display.
type Config struct {
	Socket      string
	Backend     string
	PollMs      int64
	HeartbeatMs int64
	Broker      string
}

// Snapshot is a point-in-time view of daemon state.
type Snapshot struct {
	StartTime      time.Time
	Now            time.Time
	TestMode       bool
	CommandsServed int
	CommandsFailed int
	Buttons        button.Counts
	LEDs           map[string]string // last written state; unknown LEDs are absent
	MQTTConnected  bool
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex. The daemon loop
// writes it; the MQTT connection callbacks may read it.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{StartTime: startTime, Config: cfg},
		now:  time.Now,
	}
}

// CommandServed counts one handled request. failed is true for every
// response that was not a success.
func (t *Tracker) CommandServed(failed bool) {
	t.mu.Lock()
	t.snap.CommandsServed++
	if failed {
		t.snap.CommandsFailed++
	}
	t.mu.Unlock()
}

// Update sets the test-mode flag, button counters and LED states.
func (t *Tracker) Update(testMode bool, counts button.Counts, leds map[string]string) {
	t.mu.Lock()
	t.snap.TestMode = testMode
	t.snap.Buttons = counts
	t.snap.LEDs = leds
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a copy of the daemon state with Now set to the current
// time.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()

	if s.LEDs != nil {
		leds := make(map[string]string, len(s.LEDs))
		for k, v := range s.LEDs {
			leds[k] = v
		}
		s.LEDs = leds
	}
	s.Now = t.now()
	return s
}
