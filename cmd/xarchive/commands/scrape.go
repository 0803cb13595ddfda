package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xarchive/internal/app"
	"github.com/ibeckermayer/xarchive/internal/logger"
	"github.com/ibeckermayer/xarchive/internal/types"
)

var scrapeFlags struct {
	mode    string
	keyword string
	max     int
	cutoff  string
	replay  string
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVar(&scrapeFlags.mode, "mode", string(types.ModeProfile), "Traversal mode: profile or search")
	f.StringVar(&scrapeFlags.keyword, "keyword", "", "Keyword added to the search query (search mode)")
	f.IntVar(&scrapeFlags.max, "max", 100, "Stop after this many posts")
	f.StringVar(&scrapeFlags.cutoff, "cutoff", "", "Stop at the first post older than this date, YYYY-MM-DD (profile mode)")
	f.StringVar(&scrapeFlags.replay, "replay", "", "Replay HTML snapshots from this directory instead of a live browser")
	scrapeCmd.MarkFlagsMutuallyExclusive("max", "cutoff")
	rootCmd.AddCommand(scrapeCmd)
}

// runConfigFromFlags builds the run for target from the scrape flags.
func runConfigFromFlags(target string) (types.RunConfig, error) {
	run := types.RunConfig{
		Target:  target,
		Mode:    types.Mode(scrapeFlags.mode),
		Keyword: scrapeFlags.keyword,
		Stop:    types.MaxCount(scrapeFlags.max),
	}
	if scrapeFlags.cutoff != "" {
		d, err := time.Parse(types.DateLayout, scrapeFlags.cutoff)
		if err != nil {
			return types.RunConfig{}, fmt.Errorf("invalid --cutoff %q: %w", scrapeFlags.cutoff, err)
		}
		run.Stop = types.DateCutoff(d)
	}
	if err := run.Validate(); err != nil {
		return types.RunConfig{}, err
	}
	if run.Mode == types.ModeSearch && run.Stop.Kind == types.StopDateCutoff {
		logger.Warn("date cutoff only stops profile runs; this search runs until it stalls or is interrupted")
	}
	return run, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <target>",
	Short: "Collects a target's posts into <target>_archive.json.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := runConfigFromFlags(args[0])
		if err != nil {
			return err
		}

		open := browserOpener(cfg)
		if scrapeFlags.replay != "" {
			open = replayOpener(scrapeFlags.replay)
		}
		a, closeApp, err := newApp(open)
		if err != nil {
			return err
		}
		defer closeApp()

		reporter := newProgressReporter(fmt.Sprintf("Archiving %s", run.Target))
		out, err := a.Archive(cmd.Context(), run, reporter)
		reporter.Stop()
		if err != nil {
			return err
		}

		printOutcome(cmd, out)
		return nil
	},
}

func printOutcome(cmd *cobra.Command, out *app.Outcome) {
	r := out.Run
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %s posts (%s)\n", r.Target, humanize.Comma(int64(r.PostCount)), r.Status)
	if r.ArchivePath != "" {
		fmt.Fprintf(w, "archive: %s\n", r.ArchivePath)
	}
	if r.NewPosts > 0 {
		fmt.Fprintf(w, "new since last run: %s\n", humanize.Comma(int64(r.NewPosts)))
	}
}
