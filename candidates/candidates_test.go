package candidates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/candidate"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) *candidate.Context {
	return &candidate.Context{Now: t0.Add(d)}
}

func opts(kv ...string) candidate.Settings {
	s := candidate.Settings{Options: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		s.Options[kv[i]] = kv[i+1]
	}
	return s
}

type memSeen struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemSeen() *memSeen { return &memSeen{keys: map[string]string{}} }

func (m *memSeen) Seen(_ context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[scope+"/"+key]
	return ok, nil
}

func (m *memSeen) MarkSeen(_ context.Context, scope, key, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[scope+"/"+key] = title
	return nil
}

func TestBreaks(t *testing.T) {
	ctx := context.Background()
	b := NewBreaks(opts("interval_minutes", "30"), t0)

	assert.False(t, b.ShouldTrigger(ctx, at(29*time.Minute)))
	assert.True(t, b.ShouldTrigger(ctx, at(30*time.Minute)))

	p, err := b.Generate(ctx, at(31*time.Minute))
	require.NoError(t, err)
	assert.Contains(t, p.UserPrompt, "31 minutes")

	assert.False(t, b.ShouldTrigger(ctx, at(40*time.Minute)), "reminder restarts the interval")
	assert.True(t, b.ShouldTrigger(ctx, at(61*time.Minute)))
}

func TestCritique(t *testing.T) {
	ctx := context.Background()
	g := NewCritique(candidate.Settings{})

	assert.False(t, g.ShouldTrigger(ctx, at(0)), "no document")

	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	c := at(0)
	c.Document = &candidate.Document{Path: "/src/main.go", LanguageID: "go", Text: strings.Join(lines, "\n")}
	c.RecentFiles = []string{"/src/main.go", "/src/util.go"}

	require.True(t, g.ShouldTrigger(ctx, c))
	p, err := g.Generate(ctx, c)
	require.NoError(t, err)
	assert.Contains(t, p.UserPrompt, "main.go (go)")
	assert.Contains(t, p.UserPrompt, "util.go")
	assert.Contains(t, p.UserPrompt, "line 119")
	assert.NotContains(t, p.UserPrompt, "line 120")
	assert.Contains(t, p.UserPrompt, "first 120 lines")

	c.Now = t0.Add(4 * time.Minute)
	assert.False(t, g.ShouldTrigger(ctx, c), "same file within the interval")

	other := *c
	other.Document = &candidate.Document{Path: "/src/util.go", Text: "package util"}
	assert.True(t, g.ShouldTrigger(ctx, &other), "interval is per file")

	c.Now = t0.Add(5 * time.Minute)
	assert.True(t, g.ShouldTrigger(ctx, c))
}

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>The Go Blog</title>
  <entry>
    <title>Go 2 is here</title>
    <id>tag:go.dev,2025:1</id>
    <link href="https://go.dev/blog/go2"/>
    <summary type="html">&lt;p&gt;Big &lt;b&gt;news&lt;/b&gt;.&lt;/p&gt;</summary>
  </entry>
  <entry>
    <title>Range over ints</title>
    <id>tag:go.dev,2025:2</id>
    <link href="https://go.dev/blog/range"/>
  </entry>
</feed>`

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewsPicksUnseenHeadlines(t *testing.T) {
	ctx := context.Background()
	srv := feedServer(t, atomFeed)
	seen := newMemSeen()
	n := NewNews(opts("feed_url", srv.URL, "interval_minutes", "1"), srv.Client(), seen, nil)

	assert.True(t, n.ShouldTrigger(ctx, at(0)), "405 on HEAD still counts as reachable")

	p, err := n.Generate(ctx, at(0))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Contains(t, p.UserPrompt, `"The Go Blog"`)
	assert.Contains(t, p.UserPrompt, "Big news.")
	assert.Equal(t, "Go 2 is here\nhttps://go.dev/blog/go2", p.DisplayAppendText)

	assert.False(t, n.ShouldTrigger(ctx, at(30*time.Second)), "throttled")

	p, err = n.Generate(ctx, at(2*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Contains(t, p.UserPrompt, "Range over ints")

	p, err = n.Generate(ctx, at(4*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, p, "everything seen")
	assert.Len(t, seen.keys, 2)
}

func TestNewsUnreachableAndBrokenFeeds(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	n := NewNews(opts("feed_url", srv.URL), srv.Client(), newMemSeen(), nil)
	assert.False(t, n.ShouldTrigger(ctx, at(0)))
	_, err := n.Generate(ctx, at(0))
	assert.Error(t, err)
	srv.Close()

	assert.False(t, n.ShouldTrigger(ctx, at(0)), "closed server")

	broken := feedServer(t, "not a feed")
	n = NewNews(opts("feed_url", broken.URL), broken.Client(), nil, nil)
	_, err = n.Generate(ctx, at(0))
	assert.Error(t, err)
}

func TestWeather(t *testing.T) {
	ctx := context.Background()
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.EscapedPath(), r.URL.RawQuery
		_, _ = io.WriteString(w, "New York: ☀️ +21°C\n")
	}))
	defer srv.Close()

	w := NewWeather(opts("url", srv.URL+"/", "location", "New York"), srv.Client())
	assert.True(t, w.ShouldTrigger(ctx, at(0)))

	p, err := w.Generate(ctx, at(0))
	require.NoError(t, err)
	assert.Equal(t, "/New%20York", gotPath)
	assert.Equal(t, "format=3", gotQuery)
	assert.Contains(t, p.UserPrompt, "Current weather: New York: ☀️ +21°C\n")

	assert.False(t, w.ShouldTrigger(ctx, at(time.Hour)))
	assert.True(t, w.ShouldTrigger(ctx, at(2*time.Hour)))
}

func TestWeatherEmptyReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	w := NewWeather(opts("url", srv.URL), srv.Client())
	_, err := w.Generate(context.Background(), at(0))
	assert.ErrorContains(t, err, "empty weather report")
}

type fakeCapturer struct {
	data []byte
	err  error
}

func (f fakeCapturer) Capture(context.Context) ([]byte, error) { return f.data, f.err }

func TestScreenshot(t *testing.T) {
	ctx := context.Background()
	png := append([]byte(nil), pngMagic...)
	png = append(png, 1, 2, 3)

	on := true
	g := NewScreenshot(candidate.Settings{}, fakeCapturer{data: png})
	assert.False(t, g.IsEnabled(candidate.Settings{}), "opt-in only")
	assert.True(t, g.IsEnabled(candidate.Settings{Enabled: &on}))
	assert.False(t, NewScreenshot(candidate.Settings{}, nil).IsEnabled(candidate.Settings{Enabled: &on}))

	p, err := g.Generate(ctx, at(0))
	require.NoError(t, err)
	assert.Equal(t, candidate.PayloadTextWithImage, p.Kind)
	assert.Equal(t, "image/png", p.Image.MIMEType)
	assert.Equal(t, png, p.Image.Data)
	assert.NotContains(t, p.UserPrompt, "previous comment")

	g.OnResponse("Nice terminal theme!")
	assert.False(t, g.ShouldTrigger(ctx, at(10*time.Minute)))
	p, err = g.Generate(ctx, at(20*time.Minute))
	require.NoError(t, err)
	assert.Contains(t, p.UserPrompt, `"Nice terminal theme!"`)

	_, err = NewScreenshot(candidate.Settings{}, fakeCapturer{data: []byte("jpeg")}).Generate(ctx, at(0))
	assert.ErrorContains(t, err, "PNG")

	_, err = NewScreenshot(candidate.Settings{}, fakeCapturer{err: errors.New("no display")}).Generate(ctx, at(0))
	assert.ErrorContains(t, err, "no display")
}

func TestCommandCapturer(t *testing.T) {
	assert.Nil(t, NewCommandCapturer("  "))

	c := NewCommandCapturer("grim -").(*CommandCapturer)
	assert.Equal(t, "grim", c.Name)
	assert.Equal(t, []string{"-"}, c.Args)

	_, err := (&CommandCapturer{Name: "companion-no-such-capture-tool"}).Capture(context.Background())
	assert.Error(t, err)
}

func TestBuiltinsRegister(t *testing.T) {
	on := true
	settings := candidate.SettingsMap{
		ScreenshotID: {Enabled: &on},
	}
	reg := candidate.NewRegistry(nil)
	reg.MustRegister(Builtins(settings, Deps{Start: t0})...)

	assert.Equal(t, []string{BreaksID, CritiqueID, NewsID, WeatherID, ScreenshotID}, reg.IDs())

	byID := map[string]candidate.Descriptor{}
	for _, d := range reg.Describe(settings) {
		byID[d.ID] = d
	}
	assert.Equal(t, 2.0, byID[CritiqueID].Weight)
	assert.Equal(t, 0.5, byID[NewsID].Weight)
	assert.Equal(t, 1.0, byID[BreaksID].Weight)
	assert.False(t, byID[ScreenshotID].Enabled, "no capture command configured")
}
