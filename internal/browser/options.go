// Package browser provides the chromedp-backed session used for live runs,
// with shared anti-bot-detection configuration.
package browser

import "github.com/chromedp/chromedp"

// DefaultUserAgent is a realistic Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Launch describes a locally started browser.
type Launch struct {
	Headless bool
	// UserDataDir keeps a Chrome profile between runs, so a session logged
	// in by hand once is reused. Empty uses a throwaway profile.
	UserDataDir  string
	UserAgent    string // empty = DefaultUserAgent
	WindowWidth  int    // 0 = 1920
	WindowHeight int    // 0 = 1080
}

// Options returns chromedp allocator options for l, with anti-bot-detection
// measures. Runs and bot-test both launch through here so they share one
// fingerprint.
func Options(l Launch) []chromedp.ExecAllocatorOption {
	ua := l.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	width, height := l.WindowWidth, l.WindowHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.Headless),

		// Prevent navigator.webdriver = true detection
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(ua),
		chromedp.WindowSize(width, height),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if l.Headless {
		opts = append(opts,
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.Flag("mute-audio", true),
		)
	} else {
		opts = append(opts, chromedp.Flag("start-maximized", true))
	}

	if l.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(l.UserDataDir))
	}

	return opts
}
