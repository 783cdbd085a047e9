package button

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/qhal-nas/qhal/internal/proc"
)

// ExecRunner runs button commands as external processes, each on its own
// goroutine so the caller never blocks on them. Results are only logged.
type ExecRunner struct {
	ctx context.Context
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

// NewExecRunner creates a runner whose processes are killed if ctx is
// cancelled. The daemon passes a context that is never cancelled, so button
// commands keep running after it shuts down.
func NewExecRunner(ctx context.Context, log logrus.FieldLogger) *ExecRunner {
	return &ExecRunner{ctx: ctx, log: log}
}

// Run starts argv and returns immediately.
func (r *ExecRunner) Run(button string, argv []string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(button, argv)
	}()
}

// Wait blocks until every started command has finished.
func (r *ExecRunner) Wait() {
	r.wg.Wait()
}

func (r *ExecRunner) run(button string, argv []string) {
	log := r.log.WithFields(logrus.Fields{"button": button, "argv": argv})

	out, err := proc.Run(r.ctx, argv...)
	if err != nil {
		log.WithError(err).Error("failed to execute command")
		return
	}

	log = log.WithField("exit_code", out.ExitCode)
	if out.ExitCode != 0 {
		log.WithFields(logrus.Fields{
			"stdout": strings.TrimSpace(string(out.Stdout)),
			"stderr": strings.TrimSpace(string(out.Stderr)),
		}).Error("command failed")
		return
	}
	log.Info("command executed")
}
