package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/qhal-nas/qhal/internal/buzzer"
	"github.com/qhal-nas/qhal/internal/catalog"
	"github.com/qhal-nas/qhal/internal/lcd"
	"github.com/qhal-nas/qhal/internal/sensors"
)

func soundNames() []string {
	var names []string
	for _, s := range catalog.Sounds() {
		names = append(names, s.Name)
	}
	return names
}

func sensorNames(ss []catalog.Sensor) []string {
	var names []string
	for _, s := range ss {
		names = append(names, s.Name)
	}
	return names
}

func newBeepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "beep <sound>",
		Short:     "Play a sound on the buzzer",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: soundNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			sound, err := catalog.SoundByName(args[0])
			if err != nil {
				return err
			}
			return buzzer.New(cmd.Context(), a.cfg.BinDir, a.log).Play(cmd.Context(), sound)
		},
	}
}

func newTempCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "temp <sensor>",
		Short:     "Read a temperature sensor",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: sensorNames(catalog.Temps()),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := catalog.Temp(args[0])
			if err != nil {
				return err
			}
			v, err := sensors.NewReader(a.cfg.Sensors.Binary, a.log).Read(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sensors.FormatTemp(v))
			return nil
		},
	}
}

func newFanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "fan <sensor>",
		Short:     "Read a fan speed",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: sensorNames(catalog.Fans()),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := catalog.Fan(args[0])
			if err != nil {
				return err
			}
			v, err := sensors.NewReader(a.cfg.Sensors.Binary, a.log).Read(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sensors.FormatFan(v))
			return nil
		},
	}
}

func newLcdCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lcd",
		Short: "Control the front LCD panel",
	}

	setState := func(on bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			p, err := lcd.Open(a.cfg.LCD.TTY, a.cfg.LCD.Baud, a.log)
			if err != nil {
				return err
			}
			defer p.Close()
			return p.SetState(on)
		}
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "on",
		Short: "Turn the backlight on",
		Args:  cobra.NoArgs,
		RunE:  setState(true),
	}, &cobra.Command{
		Use:   "off",
		Short: "Turn the backlight off",
		Args:  cobra.NoArgs,
		RunE:  setState(false),
	}, &cobra.Command{
		Use:   "write <line1> [line2]",
		Short: "Write up to two lines of text",
		Long:  fmt.Sprintf("Write up to two lines of text. Each line is cut to %d characters.", lcd.Width),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line2 := ""
			if len(args) == 2 {
				line2 = args[1]
			}
			p, err := lcd.Open(a.cfg.LCD.TTY, a.cfg.LCD.Baud, a.log)
			if err != nil {
				return err
			}
			defer p.Close()
			acked, err := p.Write(args[0], line2)
			if err != nil {
				return err
			}
			if !acked {
				fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("LCD did not acknowledge the init sequence"))
			}
			return nil
		},
	})
	return cmd
}
