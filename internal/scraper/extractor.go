package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ibeckermayer/xarchive/internal/logger"
	"github.com/ibeckermayer/xarchive/internal/types"
)

var (
	// ErrNoID means the element carried no usable status permalink.
	ErrNoID = errors.New("post has no permalink id")
	// ErrNoAuthor means the permalink did not name an author.
	ErrNoAuthor = errors.New("post has no author")
)

// Extract pulls a post out of el. Only the permalink is mandatory; every
// other field is read independently and falls back to its zero value (or
// UnknownDate) when the element does not provide it.
func Extract(ctx context.Context, el Element, scrapedFrom string) (types.Post, error) {
	href, err := el.Attr(ctx, TweetLink, "href")
	if err != nil {
		return types.Post{}, fmt.Errorf("%w: %v", ErrNoID, err)
	}

	link, author, id := parsePermalink(href)
	if id == "" {
		return types.Post{}, fmt.Errorf("%w: %q", ErrNoID, href)
	}
	if author == "" {
		return types.Post{}, fmt.Errorf("%w: %q", ErrNoAuthor, href)
	}

	post := types.Post{
		ID:          id,
		Author:      author,
		ScrapedFrom: scrapedFrom,
		Date:        types.UnknownDate,
		IsRetweet:   types.IsReshare(author, scrapedFrom),
		URL:         link,
	}

	if text, err := el.Text(ctx, TweetText); err == nil {
		post.Text = text
	} else {
		logger.Debug("post text unavailable", "id", id, "error", err)
	}

	if ts, err := el.Attr(ctx, TweetTime, "datetime"); err == nil {
		post.Date = types.NormalizeDate(ts)
	} else {
		logger.Debug("post timestamp unavailable", "id", id, "error", err)
	}

	if own, err := el.Text(ctx, ""); err == nil {
		post.IsReply = isReply(own, post.Text)
	}

	if has, err := el.Has(ctx, TweetMedia); err == nil {
		post.HasMedia = has
	}

	return post, nil
}

// parsePermalink splits a status link ("/jack/status/20", possibly absolute,
// possibly with a trailing "/photo/1") into its canonical URL, author and id.
func parsePermalink(href string) (link, author, id string) {
	base, _ := url.Parse(BaseURL)
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", "", ""
	}
	u := base.ResolveReference(ref)

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg != "status" || i+1 >= len(segments) {
			continue
		}
		id = segments[i+1]
		if i > 0 {
			author = segments[i-1]
		}
		break
	}
	if id == "" || author == "" {
		return "", author, id
	}

	return fmt.Sprintf("%s://%s/%s/status/%s", u.Scheme, u.Host, author, id), author, id
}

// isReply looks for the reply context line outside the post body, so a body
// quoting the marker is not mistaken for a reply.
func isReply(article, body string) bool {
	if body != "" {
		article = strings.Replace(article, body, "", 1)
	}
	return strings.Contains(article, ReplyMarker)
}
