package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/qhal-nas/qhal/internal/catalog"
)

var cleanStyle = table.Style{
	Name: "Clean",
	Box: table.BoxStyle{
		PaddingLeft:  "",
		PaddingRight: "  ",
	},
	Format: table.FormatOptions{
		Header: text.FormatUpper,
		Row:    text.FormatDefault,
	},
	Options: table.Options{
		DrawBorder:      false,
		SeparateColumns: false,
		SeparateHeader:  false,
		SeparateRows:    false,
	},
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the LEDs, buttons, sounds and sensors",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			renderCatalog(cmd.OutOrStdout())
		},
	}
}

func renderCatalog(w io.Writer) {
	lines := func(title string, ls []catalog.Line) {
		t := newTable(w)
		t.AppendHeader(table.Row{title, "Port", "Bit"})
		for _, l := range ls {
			t.AppendRow(table.Row{l.Name, fmt.Sprintf("0x%02X", l.Port), l.Bit})
		}
		t.Render()
	}
	sensors := func(title string, ss []catalog.Sensor) {
		t := newTable(w)
		t.AppendHeader(table.Row{title, "Chip", "Key"})
		for _, s := range ss {
			t.AppendRow(table.Row{s.Name, s.Chip, s.Key})
		}
		t.Render()
	}

	lines("LED", catalog.LEDs())
	fmt.Fprintln(w)
	lines("Button", catalog.Buttons())
	fmt.Fprintln(w)

	t := newTable(w)
	t.AppendHeader(table.Row{"Sound", "ID"})
	for _, s := range catalog.Sounds() {
		t.AppendRow(table.Row{s.Name, s.ID})
	}
	t.Render()
	fmt.Fprintln(w)

	sensors("Temp", catalog.Temps())
	fmt.Fprintln(w)
	sensors("Fan", catalog.Fans())
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(cleanStyle)
	return t
}
