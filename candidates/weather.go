package candidates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"companion/candidate"
)

const DefaultWeatherURL = "https://wttr.in"

// Weather fetches a one-line report and asks the companion to remark on it.
type Weather struct {
	endpoint string
	client   *http.Client

	mu sync.Mutex
	throttle
}

func NewWeather(s candidate.Settings, client *http.Client) *Weather {
	base := strings.TrimRight(s.Option("url", DefaultWeatherURL), "/")
	endpoint := base + "/"
	if loc := s.Option("location", ""); loc != "" {
		endpoint += url.PathEscape(loc)
	}
	endpoint += "?format=3"

	return &Weather{
		endpoint: endpoint,
		client:   client,
		throttle: throttle{interval: s.Minutes("interval_minutes", 120*time.Minute)},
	}
}

func (w *Weather) ID() string { return WeatherID }

func (w *Weather) ShouldTrigger(ctx context.Context, c *candidate.Context) bool {
	w.mu.Lock()
	ready := w.ready(c.Now)
	w.mu.Unlock()
	return ready && reachable(ctx, w.client, w.endpoint)
}

func (w *Weather) Generate(ctx context.Context, c *candidate.Context) (*candidate.Payload, error) {
	resp, err := get(ctx, w.client, w.endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil {
		return nil, fmt.Errorf("read weather: %w", err)
	}
	report := strings.TrimSpace(string(raw))
	if report == "" {
		return nil, errors.New("empty weather report")
	}

	w.mu.Lock()
	w.last = c.Now
	w.mu.Unlock()

	return candidate.Text(fmt.Sprintf(
		"Current weather: %s\nMention it to the user in one light sentence, tied to their coding session if you can.",
		report,
	)), nil
}
