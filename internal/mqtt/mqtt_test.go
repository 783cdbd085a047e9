package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qhal-nas/qhal/internal/button"
)

var ts = time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

func TestTopicsFor(t *testing.T) {
	assert.Equal(t, Topics{Button: "qhal/button/events", System: "qhal/system"}, TopicsFor(""))
	assert.Equal(t, Topics{Button: "nas1/button/events", System: "nas1/system"}, TopicsFor("nas1"))
}

func TestFormatPayloadExactJSON(t *testing.T) {
	payload, err := FormatPayload(button.Event{
		Timestamp: ts,
		Button:    "USB_Copy",
		Type:      button.EventReleased,
		Command:   []string{"/usr/bin/backup", "--all"},
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"button":{"timestamp":"2026-02-02T22:18:12Z","name":"USB_Copy","event":"RELEASED","command":["/usr/bin/backup","--all"]}}`,
		string(payload))
}

func TestFormatPayloadOmitsEmptyCommand(t *testing.T) {
	for _, typ := range []button.EventType{button.EventPressed, button.EventReleased, button.EventTestPress} {
		payload, err := FormatPayload(button.Event{Timestamp: ts, Button: "Reset", Type: typ})
		require.NoError(t, err)

		var parsed map[string]map[string]any
		require.NoError(t, json.Unmarshal(payload, &parsed))
		assert.Equal(t, string(typ), parsed["button"]["event"])
		assert.NotContains(t, parsed["button"], "command")
	}
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "SHUTDOWN", Reason: "SIGTERM"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`, string(payload))

	payload, err = FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "STARTUP"})
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "reason")
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, payload)
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	require.NoError(t, f.Publish(button.Event{Timestamp: ts, Button: "Reset", Type: button.EventPressed}))
	require.NoError(t, f.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP"}))

	require.Len(t, f.Events, 1)
	require.Len(t, f.Payloads, 1)
	assert.Equal(t, []string{"STARTUP"}, f.SystemEventNames())

	f.PublishError = errors.New("broker down")
	assert.Error(t, f.Publish(button.Event{}))
	assert.Len(t, f.Events, 1)

	require.NoError(t, f.Close())
	assert.True(t, f.Closed)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(button.Event{}))
	assert.NoError(t, p.PublishSystem(SystemEvent{}))
	assert.NoError(t, p.Close())
	assert.False(t, Nop{}.IsConnected())
}
