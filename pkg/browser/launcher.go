package browser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/flowcheck/pkg/logging"
)

// Launcher owns the Playwright driver and one browser process. Every session
// it creates gets its own browser context, so cookies and storage never leak
// between scenarios.
type Launcher struct {
	mu          sync.RWMutex
	opts        Options
	log         *logging.Logger
	playwright  *playwright.Playwright
	browser     playwright.Browser
	sessions    map[string]*Session
	maxSessions int
	initialized bool
}

// NewLauncher creates a launcher. Start must be called before NewSession.
func NewLauncher(opts Options, log *logging.Logger) *Launcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Launcher{
		opts:        opts.withDefaults(),
		log:         log,
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
	}
}

// Options returns the effective options.
func (l *Launcher) Options() Options {
	return l.opts
}

// Install downloads the driver and the configured engine, writing progress to
// out.
func Install(engines []Engine, out io.Writer) error {
	names := make([]string, len(engines))
	for i, e := range engines {
		names[i] = string(e)
	}
	if out == nil {
		out = io.Discard
	}
	if err := playwright.Install(&playwright.RunOptions{Browsers: names, Stdout: out, Stderr: out}); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	return nil
}

// Start runs the driver and launches the browser.
func (l *Launcher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	pw, err := playwright.Run(&playwright.RunOptions{
		Browsers: []string{string(l.opts.Engine)},
		Stdout:   io.Discard,
		Stderr:   l.log.Writer(),
	})
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
	}
	if l.opts.SlowMo > 0 {
		launchOpts.SlowMo = playwright.Float(millis(l.opts.SlowMo))
	}

	browser, err := browserType(pw, l.opts.Engine).Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to launch %s: %w", l.opts.Engine, err)
	}

	l.playwright = pw
	l.browser = browser
	l.initialized = true
	l.log.Infof("launched %s (headless=%t)", l.opts.Engine, l.opts.Headless)
	return nil
}

func browserType(pw *playwright.Playwright, e Engine) playwright.BrowserType {
	switch e {
	case Firefox:
		return pw.Firefox
	case WebKit:
		return pw.WebKit
	default:
		return pw.Chromium
	}
}

// NewSession opens an isolated browser context with one page.
func (l *Launcher) NewSession(name string) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil, fmt.Errorf("launcher not started")
	}
	if _, exists := l.sessions[name]; exists {
		return nil, fmt.Errorf("session %q already exists", name)
	}
	if len(l.sessions) >= l.maxSessions {
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", l.maxSessions)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  l.opts.Viewport.Width,
			Height: l.opts.Viewport.Height,
		},
	}
	if l.opts.BaseURL != "" {
		contextOpts.BaseURL = playwright.String(l.opts.BaseURL)
	}
	bctx, err := l.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	var tracePath string
	if l.opts.TraceDir != "" {
		err := bctx.Tracing().Start(playwright.TracingStartOptions{
			Name:        playwright.String(name),
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
		})
		if err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("failed to start tracing: %w", err)
		}
		tracePath = filepath.Join(l.opts.TraceDir, TraceFileName(name))
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(millis(l.opts.DefaultTimeout))

	s := &Session{
		Name:      name,
		Engine:    l.opts.Engine,
		Context:   bctx,
		Page:      page,
		CreatedAt: time.Now(),
		tracePath: tracePath,
		release:   l.release,
	}
	l.sessions[name] = s
	l.log.Debugf("session %q opened", name)
	return s, nil
}

func (l *Launcher) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, name)
}

// ListSessions returns information about all open sessions.
func (l *Launcher) ListSessions() []SessionInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(l.sessions))
	for _, s := range l.sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Shutdown closes every session, the browser and the driver.
func (l *Launcher) Shutdown() error {
	l.mu.Lock()
	sessions := make([]*Session, 0, len(l.sessions))
	for _, s := range l.sessions {
		sessions = append(sessions, s)
	}
	l.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		if err := l.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		if err := l.playwright.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		l.initialized = false
	}
	return errors.Join(errs...)
}

// TraceFileName is the archive name used for a session's trace.
func TraceFileName(session string) string {
	return sanitizeName(session) + ".zip"
}

func sanitizeName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "session"
	}
	return string(out)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
