// Package button tracks the front-panel buttons and runs the command assigned
// to a button when it is released.
// Levels are always logical (already inverted from the raw register bit).
package button

import "time"

// EventType is a button transition reported to listeners.
type EventType string

const (
	EventPressed  EventType = "PRESSED"
	EventReleased EventType = "RELEASED"
	// EventTestPress is reported once each time a button goes down while
	// test mode is on.
	EventTestPress EventType = "TEST_PRESS"
)

// Event describes one button transition.
type Event struct {
	Timestamp time.Time
	Button    string
	Type      EventType
	// Command is the argv that was started, if any (released only).
	Command []string
}

// Counts tracks transitions since startup.
type Counts struct {
	Pressed  int
	Released int
	Executed int
}

// lineState is the runtime state of one button.
type lineState struct {
	// Whether a baseline level has been observed
	observed bool
	// Last observed logical level (true = pressed)
	level bool
	// Command to run on release, nil when none is configured
	command []string
	// Held at the previous test-mode poll
	testHeld bool
}
