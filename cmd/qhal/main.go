// Command qhal controls the front panel of a QNAP NAS: status and disk
// LEDs, the Reset and USB Copy buttons, the buzzer, temperature and fan
// sensors, and the LCD panel. LEDs and buttons are served by a resident
// daemon (`qhal daemon`) that the other commands talk to over a unix
// socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.bug.st/cleanup"

	"github.com/qhal-nas/qhal/internal/client"
	"github.com/qhal-nas/qhal/internal/config"
	"github.com/qhal-nas/qhal/internal/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	closeLog io.Closer

	out    io.Writer
	getenv func(string) (string, bool)

	configFile string
	logLevel   string
	logConsole bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "qhal",
		Short: "QNAP HAL: LEDs, buttons, buzzer, sensors and LCD panel",
		Long: "QNAP HAL API. Includes a daemon that monitors the hardware for button press events,\n" +
			"can control LEDs, the LCD panel and read sensors.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.log.Infof("== %s exited gracefully ==", cmd.CommandPath())
			if a.closeLog != nil {
				a.closeLog.Close()
			}
		},
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVar(&a.configFile, "config", config.DefaultFile, "Configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error, or 3-7")
	root.PersistentFlags().BoolVar(&a.logConsole, "log-console", false, "Also log to stderr")

	root.AddCommand(
		newStartCmd(a),
		newStopCmd(a),
		newStatusCmd(a),
		newDaemonCmd(a),
		newLedCmd(a),
		newButtonCmd(a),
		newTestCmd(a),
		newBeepCmd(a),
		newTempCmd(a),
		newFanCmd(a),
		newLcdCmd(a),
		newListCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile, cmd.Flags().Changed("config"), a.getenv)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-console") {
		cfg.Log.Console = a.logConsole
	}
	a.cfg = cfg

	program := "qhal"
	if cmd.Name() == "daemon" {
		program = "qhal_daemon"
	}
	log, closer, err := logging.New(cfg.Log, program, time.Now())
	if err != nil {
		// Only the daemon insists on its log file.
		if cmd.Name() == "daemon" {
			return err
		}
		log, closer = logging.Discard(), nil
	}
	a.log, a.closeLog = log, closer
	a.log.Infof("== %s started ==", cmd.CommandPath())
	return nil
}

func main() {
	ctx, _ := cleanup.InterruptableContext(context.Background())
	a := &app{out: os.Stdout, getenv: os.LookupEnv}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		if errors.Is(err, client.ErrNoDaemon) {
			fmt.Fprintln(os.Stderr, "No response from daemon. Is it running?")
		} else {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		}
		os.Exit(1)
	}
}
