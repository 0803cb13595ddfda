package scraper

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when scraping breaks

const (
	// Candidate post elements
	TweetArticle = `article[data-testid="tweet"]`

	// Post content selectors, relative to a TweetArticle
	TweetText  = `[data-testid="tweetText"]`
	TweetTime  = `time`
	TweetLink  = `a[href*="/status/"]`
	TweetMedia = `[data-testid="tweetPhoto"], [data-testid="videoPlayer"]`

	// Reply posts carry this phrase above their text
	ReplyMarker = "Replying to"
)

// WaitForTweets is the marker awaited after navigation.
const WaitForTweets = TweetArticle

// BaseURL is the origin used for navigation and permalink resolution.
const BaseURL = "https://x.com"
