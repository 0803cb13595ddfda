package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xarchive/internal/app"
	"github.com/ibeckermayer/xarchive/internal/browser"
	"github.com/ibeckermayer/xarchive/internal/config"
	"github.com/ibeckermayer/xarchive/internal/logger"
	"github.com/ibeckermayer/xarchive/internal/scraper"
	"github.com/ibeckermayer/xarchive/internal/snapshot"
	"github.com/ibeckermayer/xarchive/internal/store"
)

var (
	configPath string
	logOpts    logger.Options

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "xarchive",
	Short:         "xarchive scrolls an X.com profile or search and archives its posts as JSON.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(logOpts)

		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default: user config dir/xarchive/config.toml)")
	flags.BoolVar(&logOpts.Debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&logOpts.Quiet, "quiet", false, "Only log errors")
	flags.BoolVar(&logOpts.JSON, "log-json", false, "Log as JSON")
}

// ExecuteContext runs the CLI; ctx is cancelled on SIGINT/SIGTERM.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// browserOpener connects to the configured browser for each run.
func browserOpener(c *config.Config) app.SessionOpener {
	return func(ctx context.Context) (scraper.Session, func(), error) {
		s, cancel, err := browser.Connect(ctx, c.BrowserSession())
		if err != nil {
			return nil, nil, err
		}
		return s, cancel, nil
	}
}

// replayOpener serves the HTML snapshots in dir.
func replayOpener(dir string) app.SessionOpener {
	return func(ctx context.Context) (scraper.Session, func(), error) {
		s, err := snapshot.Open(dir)
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			logger.Debug("replay finished", "dir", dir, "url", s.URL())
		}
		return s, release, nil
	}
}

// newApp builds the application over open. The returned func closes the
// catalog, if one was opened.
func newApp(open app.SessionOpener, opts ...app.Option) (*app.App, func(), error) {
	closer := func() {}
	if configPath != "" {
		opts = append(opts, app.WithConfigPath(configPath))
	}

	if cfg.Catalog.Enabled {
		path, err := cfg.CatalogPath()
		if err != nil {
			return nil, nil, err
		}
		catalog, err := store.OpenCatalog(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		opts = append(opts, app.WithCatalog(catalog))
		closer = func() { catalog.Close() }
	}

	return app.New(cfg, open, opts...), closer, nil
}
