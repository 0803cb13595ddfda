package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [target]",
	Short: "Lists past runs from the catalog, newest first.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := newApp(nil)
		if err != nil {
			return err
		}
		defer closeApp()

		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		runs, err := a.History(target, historyLimit)
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"ID", "Target", "Mode", "Status", "Posts", "New", "Started", "Took"})
		for _, r := range runs {
			mode := r.Mode
			if r.Keyword != "" {
				mode += " (" + r.Keyword + ")"
			}
			t.AppendRow(table.Row{
				r.ID, r.Target, mode, r.Status,
				humanize.Comma(int64(r.PostCount)), humanize.Comma(int64(r.NewPosts)),
				humanize.Time(r.StartedAt), r.Duration().Round(time.Second),
			})
		}
		t.Render()

		if target != "" {
			known, err := a.KnownPosts(target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "distinct posts known for %s: %s\n", target, humanize.Comma(int64(known)))
		}
		return nil
	},
}
