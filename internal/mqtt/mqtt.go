// Package mqtt publishes button events and daemon lifecycle events to an
// MQTT broker. Publishing is optional and never affects the daemon loop.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/qhal-nas/qhal/internal/button"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "qhal"

// Topics holds the topic names derived from a prefix.
type Topics struct {
	Button string
	System string
}

// TopicsFor returns the topics under prefix.
func TopicsFor(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Button: prefix + "/button/events",
		System: prefix + "/system",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a button event. Failures are returned but must not stop
	// the caller.
	Publish(event button.Event) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a daemon lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT,
// TEST_MODE).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string
	RawPayload []byte // used verbatim when set
	Retained   bool
	// Wait blocks the publish until the broker acknowledges it or the
	// publish timeout passes. Only the final event before exit sets it.
	Wait bool
}

// Payload is the JSON body of a button event.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the button event details.
type ButtonPayload struct {
	Timestamp string   `json:"timestamp"`
	Name      string   `json:"name"`
	Event     string   `json:"event"`
	Command   []string `json:"command,omitempty"`
}

// FormatPayload creates the JSON payload for a button event.
func FormatPayload(event button.Event) ([]byte, error) {
	return json.Marshal(Payload{
		Button: ButtonPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Name:      event.Button,
			Event:     string(event.Type),
			Command:   event.Command,
		},
	})
}

// SystemPayload is the JSON body of a system event that carries no status
// snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// Nop is a Publisher that drops everything. It is used when no broker is
// configured.
type Nop struct{}

func (Nop) Publish(button.Event) error      { return nil }
func (Nop) PublishSystem(SystemEvent) error { return nil }
func (Nop) Close() error                    { return nil }
func (Nop) IsConnected() bool               { return false }
