package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/qhal-nas/qhal/internal/pidfile"
)

const (
	startTimeout = 3 * time.Second
	stopTimeout  = 5 * time.Second
)

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pf := pidfile.New(a.cfg.PIDFile, a.log)
			if _, running, err := pf.Running(); err != nil {
				return err
			} else if running {
				a.log.Info("daemon is already running")
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is already running")
				return nil
			}

			pid, err := a.spawnDaemon()
			if err != nil {
				return fmt.Errorf("starting daemon: %w", err)
			}
			a.log.WithField("pid", pid).Info("forked daemon")

			ctx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
			defer cancel()
			if err := waitRunning(ctx, pf); err != nil {
				return fmt.Errorf("daemon did not come up, see logs in %s: %w", a.cfg.Log.Dir, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon started")
			return nil
		},
	}
}

// spawnDaemon re-runs this executable as `qhal daemon` in its own session,
// detached from the terminal.
func (a *app) spawnDaemon() (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}
	args := []string{"daemon"}
	if a.configFile != "" {
		args = append(args, "--config", a.configFile)
	}
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer devnull.Close()

	c := exec.Command(exe, args...)
	c.Stdin, c.Stdout, c.Stderr = devnull, devnull, devnull
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := c.Start(); err != nil {
		return 0, err
	}
	pid := c.Process.Pid
	return pid, c.Process.Release()
}

func waitRunning(ctx context.Context, pf *pidfile.File) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, running, err := pf.Running(); err == nil && running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), stopTimeout)
			defer cancel()

			err := pidfile.New(a.cfg.PIDFile, a.log).Stop(ctx)
			if errors.Is(err, pidfile.ErrNotRunning) {
				a.log.Info("daemon was not running")
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			a.log.Info("daemon stopped")
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the status of the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, running, err := pidfile.New(a.cfg.PIDFile, a.log).Running()
			if err != nil {
				return err
			}
			if running {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon is %s (pid %d)\n", color.GreenString("running"), pid)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon is %s\n", color.YellowString("not running"))
			return nil
		},
	}
}
