package commands

import (
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xarchive/internal/app"
	"github.com/ibeckermayer/xarchive/internal/config"
)

func init() {
	rootCmd.AddCommand(openCmd)
}

var openCmd = &cobra.Command{
	Use:       "open <config|archives|cache>",
	Short:     "Opens the config file, archive directory or cache directory.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"config", "archives", "cache"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		var err error

		switch args[0] {
		case "config":
			path = configPath
			if path == "" {
				path, err = config.ConfigPath()
			}
		case "archives":
			return app.New(cfg, nil).OpenArchiveDir()
		case "cache":
			path, err = config.CacheDir()
		default:
			return fmt.Errorf("unknown target: %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to get path: %w", err)
		}

		return browser.OpenFile(path)
	},
}
