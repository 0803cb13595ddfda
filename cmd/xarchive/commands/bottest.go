package commands

import (
	"bufio"
	"context"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xarchive/internal/browser"
	"github.com/ibeckermayer/xarchive/internal/logger"
)

const botTestURL = "https://bot.sannysoft.com"

func init() {
	rootCmd.AddCommand(botTestCmd)
}

// bot-test always launches a visible local browser with the same stealth
// options and profile a launched scraping session uses.
var botTestCmd = &cobra.Command{
	Use:   "bot-test",
	Short: "Opens " + botTestURL + " with the stealth browser options to audit the fingerprint.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		allocCtx, cancel := chromedp.NewExecAllocator(cmd.Context(), browser.Options(cfg.Launch(false))...)
		defer cancel()

		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		logger.Info("opening fingerprint audit page", "url", botTestURL)
		err := chromedp.Run(ctx,
			chromedp.Navigate(botTestURL),
			chromedp.WaitVisible("body", chromedp.ByQuery),
		)
		if err != nil {
			return err
		}

		waitForEnter(cmd.Context(), "Press Enter to close the browser...")
		return nil
	},
}

func waitForEnter(ctx context.Context, prompt string) {
	os.Stderr.WriteString(prompt + "\n")
	done := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
