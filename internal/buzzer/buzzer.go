// Package buzzer plays the chassis buzzer sounds through the vendor HAL
// binary.
package buzzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"

	"github.com/qhal-nas/qhal/internal/catalog"
	"github.com/qhal-nas/qhal/internal/proc"
)

// HALBinary is the vendor tool name looked up in the configured bin dir.
const HALBinary = "qnap_hal"

// ErrPlayFailed is returned when the HAL binary exits non-zero.
var ErrPlayFailed = errors.New("failed to play sound")

// Buzzer drives the buzzer through the vendor binary.
type Buzzer struct {
	bin *paths.Path
	log logrus.FieldLogger

	// runs the binary; replaced in tests
	run func(ctx context.Context, argv ...string) (proc.Output, error)

	busy atomic.Bool
	wg   sync.WaitGroup
	ctx  context.Context
}

// New creates a Buzzer using <binDir>/qnap_hal. ctx bounds the background
// beeps started by Notify.
func New(ctx context.Context, binDir string, log logrus.FieldLogger) *Buzzer {
	if binDir == "" {
		binDir = "."
	}
	return &Buzzer{
		bin: paths.New(binDir).Join(HALBinary),
		log: log,
		run: proc.Run,
		ctx: ctx,
	}
}

// Argv returns the command line that plays s.
func (b *Buzzer) Argv(s catalog.Sound) []string {
	return []string{b.bin.String(), "hal_app", "--se_buzzer", fmt.Sprintf("enc_id=0,mode=%d", s.ID)}
}

// Play plays s and waits for the binary to finish.
func (b *Buzzer) Play(ctx context.Context, s catalog.Sound) error {
	log := b.log.WithField("sound", s.Name)
	out, err := b.run(ctx, b.Argv(s)...)
	if err != nil {
		log.WithError(err).Error("failed to run buzzer")
		return fmt.Errorf("%w: %s: %w", ErrPlayFailed, s.Name, err)
	}
	if out.ExitCode != 0 {
		log.WithFields(logrus.Fields{
			"exit_code": out.ExitCode,
			"stderr":    strings.TrimSpace(string(out.Stderr)),
			"stdout":    strings.TrimSpace(string(out.Stdout)),
		}).Error("failed to play sound")
		return fmt.Errorf("%w: %s", ErrPlayFailed, s.Name)
	}
	log.Debug("sound played")
	return nil
}

// Notify plays the Beep sound in the background. While a beep is still
// playing further notifications are dropped, so a held button produces
// one beep at a time rather than a queue.
func (b *Buzzer) Notify(button string) {
	if !b.busy.CompareAndSwap(false, true) {
		return
	}
	beep, _ := catalog.SoundByName("Beep")
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.busy.Store(false)
		b.log.WithField("button", button).Debug("test beep")
		_ = b.Play(b.ctx, beep)
	}()
}

// Wait blocks until a background beep has finished.
func (b *Buzzer) Wait() {
	b.wg.Wait()
}
