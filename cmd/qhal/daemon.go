package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qhal-nas/qhal/internal/button"
	"github.com/qhal-nas/qhal/internal/buzzer"
	"github.com/qhal-nas/qhal/internal/catalog"
	"github.com/qhal-nas/qhal/internal/config"
	"github.com/qhal-nas/qhal/internal/daemon"
	"github.com/qhal-nas/qhal/internal/mqtt"
	"github.com/qhal-nas/qhal/internal/pidfile"
	"github.com/qhal-nas/qhal/internal/sio"
	"github.com/qhal-nas/qhal/internal/status"
)

func newDaemonCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:    "daemon",
		Short:  "Run the daemon in the foreground",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDaemon(cmd.Context())
		},
	}
}

func (a *app) runDaemon(parent context.Context) error {
	pf := pidfile.New(a.cfg.PIDFile, a.log)
	if err := pf.Claim(os.Getpid()); err != nil {
		return err
	}
	defer func() {
		if err := pf.Release(); err != nil {
			a.log.WithError(err).Warn("failed to remove pid file")
		}
	}()

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case s := <-sigs:
			a.log.WithField("signal", s).Info("received signal, shutting down")
			cancel(shutdownReason(s))
		case <-ctx.Done():
		}
	}()

	bus, err := newBus(a.cfg, a.log)
	if err != nil {
		return err
	}

	// Button commands outlive a daemon shutdown.
	runner := button.NewExecRunner(context.Background(), a.log)
	beeper := buzzer.New(ctx, a.cfg.BinDir, a.log)

	var publisher mqtt.Publisher = mqtt.Nop{}
	if a.cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(mqtt.Options{
			Broker:      a.cfg.MQTT.Broker,
			ClientID:    a.cfg.MQTT.ClientID,
			TopicPrefix: a.cfg.MQTT.TopicPrefix,
		}, a.log)
	}
	defer publisher.Close()

	st := status.NewTracker(time.Now(), status.Config{
		Socket:      a.cfg.Socket,
		Backend:     a.cfg.Hardware.Backend,
		PollMs:      a.cfg.PollInterval.Milliseconds(),
		HeartbeatMs: a.cfg.HeartbeatInterval.Milliseconds(),
		Broker:      a.cfg.MQTT.Broker,
	})

	d := daemon.New(daemon.Options{
		Socket:            a.cfg.Socket,
		PollInterval:      a.cfg.PollInterval,
		HeartbeatInterval: a.cfg.HeartbeatInterval,
		Buttons:           a.cfg.Buttons,
	}, bus, runner, beeper, publisher, st, a.log)

	err = d.Run(ctx)
	beeper.Wait()
	return err
}

func newBus(cfg config.Config, log logrus.FieldLogger) (sio.Bus, error) {
	switch cfg.Hardware.Backend {
	case config.BackendPort:
		return sio.NewRegisters(sio.NewDevPort(cfg.Hardware.DevPort, cfg.Hardware.LockFile), log), nil
	case config.BackendGPIOChip:
		return sio.NewChipLines(cfg.Hardware.Chip, cfg.Hardware.Offsets, catalog.LEDs(), catalog.Buttons()), nil
	}
	return nil, fmt.Errorf("unknown hardware backend %q", cfg.Hardware.Backend)
}

func shutdownReason(s os.Signal) daemon.ShutdownReason {
	switch s {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	}
	return daemon.ShutdownReason(s.String())
}
