package candidates

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"companion/candidate"
)

const (
	DefaultFeedURL  = "https://go.dev/blog/feed.atom"
	newsScope       = "news"
	summaryMaxRunes = 400
)

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// News reads the configured RSS or Atom feed and hands the first unseen
// headline to the companion.
type News struct {
	feedURL string
	client  *http.Client
	seen    SeenStore
	logger  *zap.Logger

	mu sync.Mutex
	throttle
}

func NewNews(s candidate.Settings, client *http.Client, seen SeenStore, logger *zap.Logger) *News {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &News{
		feedURL:  s.Option("feed_url", DefaultFeedURL),
		client:   client,
		seen:     seen,
		logger:   logger.Named("news"),
		throttle: throttle{interval: s.Minutes("interval_minutes", 60*time.Minute)},
	}
}

func (n *News) ID() string { return NewsID }

// Weight keeps headlines less frequent than code-related chatter.
func (n *News) Weight(candidate.Settings) float64 { return 0.5 }

func (n *News) ShouldTrigger(ctx context.Context, c *candidate.Context) bool {
	n.mu.Lock()
	ready := n.ready(c.Now)
	n.mu.Unlock()
	return ready && reachable(ctx, n.client, n.feedURL)
}

func (n *News) Generate(ctx context.Context, c *candidate.Context) (*candidate.Payload, error) {
	resp, err := get(ctx, n.client, n.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", n.feedURL, err)
	}

	n.mu.Lock()
	n.last = c.Now
	n.mu.Unlock()

	for _, item := range feed.Items {
		key := itemKey(item)
		if key == "" {
			continue
		}
		if n.seen != nil {
			seen, err := n.seen.Seen(ctx, newsScope, key)
			if err != nil {
				return nil, err
			}
			if seen {
				continue
			}
			if err := n.seen.MarkSeen(ctx, newsScope, key, item.Title); err != nil {
				return nil, err
			}
		}
		n.logger.Debug("picked headline", zap.String("key", key))
		return headlinePayload(feed.Title, item), nil
	}

	// nothing new; abort silently
	return nil, nil
}

func itemKey(item *gofeed.Item) string {
	switch {
	case item.GUID != "":
		return item.GUID
	case item.Link != "":
		return item.Link
	default:
		return strings.TrimSpace(item.Title)
	}
}

func headlinePayload(source string, item *gofeed.Item) *candidate.Payload {
	title := strings.TrimSpace(item.Title)
	summary := strings.Join(strings.Fields(htmlTag.ReplaceAllString(item.Description, "")), " ")
	if r := []rune(summary); len(r) > summaryMaxRunes {
		summary = string(r[:summaryMaxRunes]) + "…"
	}

	var b strings.Builder
	if source != "" {
		fmt.Fprintf(&b, "A new post from %q: %q.", source, title)
	} else {
		fmt.Fprintf(&b, "A new headline: %q.", title)
	}
	if summary != "" {
		fmt.Fprintf(&b, " Summary: %s", summary)
	}
	b.WriteString("\nShare it with the user in one or two sentences and say why a programmer might care.")

	appendText := title
	if item.Link != "" {
		appendText += "\n" + item.Link
	}
	return candidate.Text(b.String()).WithAppend(appendText)
}
