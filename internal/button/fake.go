package button

// Call records one FakeRunner.Run invocation.
type Call struct {
	Button string
	Argv   []string
}

// FakeRunner records commands instead of executing them.
type FakeRunner struct {
	Calls []Call
}

// Run records the call.
func (f *FakeRunner) Run(button string, argv []string) {
	f.Calls = append(f.Calls, Call{Button: button, Argv: argv})
}

// FakeNotifier records test-mode notifications.
type FakeNotifier struct {
	Buttons []string
}

// Notify records the button.
func (f *FakeNotifier) Notify(button string) {
	f.Buttons = append(f.Buttons, button)
}
