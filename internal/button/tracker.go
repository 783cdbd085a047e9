package button

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qhal-nas/qhal/internal/catalog"
	"github.com/qhal-nas/qhal/internal/sio"
)

// Runner starts a button's command without waiting for it.
type Runner interface {
	Run(button string, argv []string)
}

// Notifier signals a button press while test mode is on.
type Notifier interface {
	Notify(button string)
}

// Tracker detects edges on every button and dispatches release commands.
// It is not safe for concurrent use; the daemon loop owns it.
type Tracker struct {
	io       sio.LineIO
	runner   Runner
	notifier Notifier
	log      logrus.FieldLogger
	now      func() time.Time

	buttons []catalog.Line
	states  map[string]*lineState
	counts  Counts
	onEvent func(Event)
}

// NewTracker creates a tracker for every catalog button.
func NewTracker(io sio.LineIO, runner Runner, notifier Notifier, log logrus.FieldLogger) *Tracker {
	t := &Tracker{
		io:       io,
		runner:   runner,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		buttons:  catalog.Buttons(),
		states:   make(map[string]*lineState),
	}
	for _, b := range t.buttons {
		t.states[b.Name] = &lineState{}
	}
	return t
}

// OnEvent registers fn to be called for every reported transition.
func (t *Tracker) OnEvent(fn func(Event)) {
	t.onEvent = fn
}

// Assign sets the command run when the named button is released. An empty
// argv clears it. The previous command is returned.
func (t *Tracker) Assign(name string, argv []string) ([]string, error) {
	b, err := catalog.Button(name)
	if err != nil {
		return nil, err
	}
	st := t.states[b.Name]
	prev := st.command

	if len(argv) == 0 {
		st.command = nil
		t.log.WithField("button", b.Name).Info("command disabled")
		return prev, nil
	}

	st.command = append([]string(nil), argv...)
	t.log.WithFields(logrus.Fields{"button": b.Name, "argv": st.command, "before": prev}).Info("command set")
	return prev, nil
}

// Command returns the command assigned to the named button.
func (t *Tracker) Command(name string) ([]string, error) {
	b, err := catalog.Button(name)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), t.states[b.Name].command...), nil
}

// Counts returns the transition counters.
func (t *Tracker) Counts() Counts {
	return t.counts
}

// Poll samples every button once. In test mode a held button triggers the
// notifier on every poll and one EventTestPress per press; the baseline is
// left untouched.
func (t *Tracker) Poll(testMode bool) {
	for _, b := range t.buttons {
		level, err := t.io.ReadLine(b)
		if err != nil {
			t.log.WithField("button", b.Name).WithError(err).Error("failed to get button state")
			continue
		}

		st := t.states[b.Name]
		if testMode {
			if level {
				// Beep for as long as the button is held, report it once.
				if !st.testHeld {
					t.log.WithField("button", b.Name).Info("pressed while in test mode")
					t.emit(b.Name, EventTestPress, nil)
				}
				if t.notifier != nil {
					t.notifier.Notify(b.Name)
				}
			}
			st.testHeld = level
			continue
		}
		st.testHeld = false

		t.process(b, level)
	}
}

func (t *Tracker) process(b catalog.Line, level bool) {
	st := t.states[b.Name]
	log := t.log.WithField("button", b.Name)

	// First observation only establishes the resting level.
	if !st.observed {
		st.observed = true
		st.level = level
		log.Infof("initialized to %s", levelString(level))
		return
	}

	if level == st.level {
		return
	}

	log.Infof("changed state from %s to %s", levelString(st.level), levelString(level))
	st.level = level

	if level {
		t.counts.Pressed++
		log.Info("pressed")
		t.emit(b.Name, EventPressed, nil)
		return
	}

	t.counts.Released++
	if st.command == nil {
		log.Info("released, no command configured")
		t.emit(b.Name, EventReleased, nil)
		return
	}

	argv := append([]string(nil), st.command...)
	log.WithField("argv", argv).Info("released, executing command")
	t.counts.Executed++
	t.emit(b.Name, EventReleased, argv)
	t.runner.Run(b.Name, argv)
}

func (t *Tracker) emit(name string, typ EventType, argv []string) {
	if t.onEvent == nil {
		return
	}
	t.onEvent(Event{
		Timestamp: t.now(),
		Button:    name,
		Type:      typ,
		Command:   argv,
	})
}

func levelString(pressed bool) string {
	if pressed {
		return "pressed"
	}
	return "released"
}
