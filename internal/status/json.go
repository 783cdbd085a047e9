package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string            `json:"event,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	TestMode      bool              `json:"test_mode"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartTime     string            `json:"start_time"`
	Timestamp     string            `json:"timestamp"`
	MQTT          MQTTStatus        `json:"mqtt"`
	Commands      CommandsJSON      `json:"commands"`
	Buttons       ButtonsJSON       `json:"button_counts"`
	LEDs          map[string]string `json:"leds,omitempty"`
	Config        *ConfigJSON       `json:"config,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CommandsJSON counts handled socket requests.
type CommandsJSON struct {
	Served int `json:"served"`
	Failed int `json:"failed"`
}

// ButtonsJSON is the JSON representation of button counters.
type ButtonsJSON struct {
	Pressed  int `json:"pressed"`
	Released int `json:"released"`
	Executed int `json:"executed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Socket      string `json:"socket"`
	Backend     string `json:"backend"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
}

// FormatStatusEvent returns the JSON status for an MQTT system event. The
// config block is only included on STARTUP.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := StatusInner{
		Event:         event,
		Reason:        reason,
		TestMode:      snap.TestMode,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Commands:      CommandsJSON{Served: snap.CommandsServed, Failed: snap.CommandsFailed},
		Buttons: ButtonsJSON{
			Pressed:  snap.Buttons.Pressed,
			Released: snap.Buttons.Released,
			Executed: snap.Buttons.Executed,
		},
		LEDs: snap.LEDs,
	}
	if event == "STARTUP" {
		inner.Config = &ConfigJSON{
			Socket:      snap.Config.Socket,
			Backend:     snap.Config.Backend,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
		}
	}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
