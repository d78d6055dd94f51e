// Package candidates holds the built-in generators: break reminders, code
// critique, a news reader, weather and a screenshot commentator.
package candidates

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"companion/candidate"
)

// Generator ids as used in [candidates.<id>] config sections.
const (
	BreaksID     = "breaks"
	CritiqueID   = "critique"
	NewsID       = "news"
	WeatherID    = "weather"
	ScreenshotID = "screenshot"
)

// ProbeTimeout bounds the reachability checks done by ShouldTrigger.
const ProbeTimeout = 5 * time.Second

// SeenStore is the dedupe store the news reader records headlines in.
type SeenStore interface {
	Seen(ctx context.Context, scope, key string) (bool, error)
	MarkSeen(ctx context.Context, scope, key, title string) error
}

// Deps are the collaborators shared by the built-in generators.
type Deps struct {
	HTTPClient *http.Client
	Seen       SeenStore
	// Capturer overrides the command-based capturer built from the
	// screenshot "command" option.
	Capturer Capturer
	Start    time.Time
	Logger   *zap.Logger
}

// Builtins constructs every built-in generator, configured from settings.
func Builtins(settings candidate.SettingsMap, deps Deps) []candidate.Generator {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if deps.Start.IsZero() {
		deps.Start = time.Now()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	capturer := deps.Capturer
	if capturer == nil {
		capturer = NewCommandCapturer(settings.For(ScreenshotID).Option("command", ""))
	}

	return []candidate.Generator{
		NewBreaks(settings.For(BreaksID), deps.Start),
		NewCritique(settings.For(CritiqueID)),
		NewNews(settings.For(NewsID), deps.HTTPClient, deps.Seen, deps.Logger),
		NewWeather(settings.For(WeatherID), deps.HTTPClient),
		NewScreenshot(settings.For(ScreenshotID), capturer),
	}
}

// reachable issues a HEAD request with ProbeTimeout. Any answer below 500
// counts; some feeds reject HEAD with 405 but are up.
func reachable(ctx context.Context, client *http.Client, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "companion/1 (+curl)")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp, nil
}

// throttle tracks the last time a generator fired.
type throttle struct {
	interval time.Duration
	last     time.Time
}

func (t *throttle) ready(now time.Time) bool {
	return t.last.IsZero() || now.Sub(t.last) >= t.interval
}
