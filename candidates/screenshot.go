package candidates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"companion/candidate"
	"companion/model"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// Capturer grabs a PNG of the user's screen.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CommandCapturer runs an external tool that writes a PNG to stdout, such
// as "grim -" or "screencapture -x -t png /dev/stdout".
type CommandCapturer struct {
	Name string
	Args []string
}

// NewCommandCapturer splits command on whitespace. An empty command yields
// nil, which leaves the screenshot generator disabled.
func NewCommandCapturer(command string) Capturer {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return &CommandCapturer{Name: fields[0], Args: fields[1:]}
}

func (c *CommandCapturer) Capture(ctx context.Context) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", c.Name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Screenshot shows the companion the user's screen. It remembers its last
// comment so the next one does not repeat it.
type Screenshot struct {
	capturer Capturer

	mu          sync.Mutex
	lastComment string
	throttle
}

func NewScreenshot(s candidate.Settings, capturer Capturer) *Screenshot {
	return &Screenshot{
		capturer: capturer,
		throttle: throttle{interval: s.Minutes("interval_minutes", 15*time.Minute)},
	}
}

func (g *Screenshot) ID() string { return ScreenshotID }

// IsEnabled requires an explicit opt-in and a way to capture the screen.
func (g *Screenshot) IsEnabled(s candidate.Settings) bool {
	return g.capturer != nil && s.Enabled != nil && *s.Enabled
}

func (g *Screenshot) ShouldTrigger(_ context.Context, c *candidate.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready(c.Now)
}

func (g *Screenshot) Generate(ctx context.Context, c *candidate.Context) (*candidate.Payload, error) {
	if g.capturer == nil {
		return nil, errors.New("no screen capturer configured")
	}
	png, err := g.capturer.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		return nil, errors.New("capture did not produce a PNG")
	}

	g.mu.Lock()
	g.last = c.Now
	previous := g.lastComment
	g.mu.Unlock()

	prompt := "Here is a screenshot of the user's screen. Make one short, friendly observation about what they are working on."
	if previous != "" {
		prompt += fmt.Sprintf(" Your previous comment was %q; say something different.", previous)
	}
	return candidate.TextWithImage(prompt, model.Image{MIMEType: "image/png", Data: png}), nil
}

func (g *Screenshot) OnResponse(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastComment = text
}
