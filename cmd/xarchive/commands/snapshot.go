package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xarchive/internal/browser"
	"github.com/ibeckermayer/xarchive/internal/logger"
	"github.com/ibeckermayer/xarchive/internal/scraper"
	"github.com/ibeckermayer/xarchive/internal/types"
)

var snapshotFlags struct {
	out     string
	scrolls int
	mode    string
	keyword string
}

func init() {
	f := snapshotCmd.Flags()
	f.StringVarP(&snapshotFlags.out, "out", "o", "snapshots", "Directory to write the HTML files to")
	f.IntVar(&snapshotFlags.scrolls, "scrolls", 3, "Number of scrolls to capture after the first page")
	f.StringVar(&snapshotFlags.mode, "mode", string(types.ModeProfile), "Traversal mode: profile or search")
	f.StringVar(&snapshotFlags.keyword, "keyword", "", "Keyword added to the search query (search mode)")
	rootCmd.AddCommand(snapshotCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <target>",
	Short: "Saves the live page's HTML after each scroll, for scrape --replay.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		run := types.RunConfig{
			Target:  args[0],
			Mode:    types.Mode(snapshotFlags.mode),
			Keyword: snapshotFlags.keyword,
			Stop:    types.MaxCount(1),
		}
		if err := run.Validate(); err != nil {
			return err
		}
		if err := os.MkdirAll(snapshotFlags.out, 0755); err != nil {
			return err
		}

		session, cancel, err := browser.Connect(ctx, cfg.BrowserSession())
		if err != nil {
			return err
		}
		defer cancel()

		timing := cfg.Scraping.Timing()
		if err := session.Navigate(ctx, scraper.TargetURL(run)); err != nil {
			return err
		}
		if err := session.WaitFor(ctx, scraper.WaitForTweets, timing.NavigationTimeout); err != nil {
			return fmt.Errorf("%w: %v", scraper.ErrNavigation, err)
		}

		for i := 0; i <= snapshotFlags.scrolls; i++ {
			if i > 0 {
				if err := session.ScrollBy(ctx, timing.ScrollStep); err != nil {
					return err
				}
				select {
				case <-time.After(timing.MaxDelay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			html, err := session.HTML(ctx)
			if err != nil {
				return err
			}
			path := filepath.Join(snapshotFlags.out, fmt.Sprintf("%03d_%s.html", i+1, run.Target))
			if err := os.WriteFile(path, []byte(html), 0644); err != nil {
				return err
			}
			logger.Info("saved snapshot", "path", path)
		}
		return nil
	},
}
