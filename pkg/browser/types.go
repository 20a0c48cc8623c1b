package browser

import (
	"fmt"
	"strings"
	"time"
)

// Engine names a browser engine.
type Engine string

const (
	Chromium Engine = "chromium"
	Firefox  Engine = "firefox"
	WebKit   Engine = "webkit"
)

// Engines lists the supported engines.
var Engines = []Engine{Chromium, Firefox, WebKit}

// ParseEngine accepts an engine name in any case. Empty means Chromium.
func ParseEngine(s string) (Engine, error) {
	switch e := Engine(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return Chromium, nil
	case Chromium, Firefox, WebKit:
		return e, nil
	default:
		return "", fmt.Errorf("unknown browser %q (want chromium, firefox or webkit)", s)
	}
}

// Options configures the launcher and every session it creates.
type Options struct {
	Engine Engine

	// Headless runs without a visible window.
	Headless bool

	// SlowMo delays every engine operation, for watching a headed run.
	SlowMo time.Duration

	Viewport *Viewport

	// DefaultTimeout applies to engine operations that are given no timeout.
	DefaultTimeout time.Duration

	// TraceDir enables tracing; each session writes <TraceDir>/<name>.zip on
	// close.
	TraceDir string

	// BaseURL resolves relative navigation targets.
	BaseURL string
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values
const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxSessions    = 5
)

func (o Options) withDefaults() Options {
	if o.Engine == "" {
		o.Engine = Chromium
	}
	if o.Viewport == nil {
		o.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = DefaultTimeout
	}
	return o
}

// SessionInfo contains metadata about a browser session.
type SessionInfo struct {
	Name       string
	Engine     Engine
	CurrentURL string
	CreatedAt  time.Time
	Tracing    bool
}
