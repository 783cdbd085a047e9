package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qhal-nas/qhal/internal/catalog"
	"github.com/qhal-nas/qhal/internal/client"
	"github.com/qhal-nas/qhal/internal/command"
)

func newLedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "led <name> [on|off]",
		Short:     "Get or set the state of an LED",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: catalog.Names(catalog.LEDs()),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.request(cmd, ledRequest(args))
		},
	}
}

func newButtonCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "button <name> [-- argv...]",
		Short: "Set the command run when a button is released",
		Long: "Set the command run when a button is released. Everything after the\n" +
			"button name is the command and its arguments; give none to disable the button.",
		Example:   "  qhal button USB_Copy -- /usr/local/bin/backup --all\n  qhal button Reset",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: catalog.Names(catalog.Buttons()),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.request(cmd, buttonRequest(args[0], args[1:]))
		},
	}
}

func newTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "test <on|off>",
		Short:     "Enable or disable test mode",
		Long:      "In test mode the LEDs run a chase pattern and button presses beep instead of running commands.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.request(cmd, "test "+args[0])
		},
	}
}

func ledRequest(args []string) string {
	return "led " + strings.Join(args, " ")
}

func buttonRequest(name string, argv []string) string {
	return "button " + name + " " + command.FormatArgv(argv)
}

// request sends one command to the daemon and prints its reply.
func (a *app) request(cmd *cobra.Command, req string) error {
	a.log.WithField("request", req).Debug("sending request")
	resp, err := client.Send(cmd.Context(), a.cfg.Socket, req)
	if err != nil {
		a.log.WithError(err).Error("request failed")
		return err
	}
	a.log.WithField("response", resp).Debug("got response")
	fmt.Fprintln(cmd.OutOrStdout(), resp)
	return nil
}
