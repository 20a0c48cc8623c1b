package scenario

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Verbosity controls how much the console reporter prints.
type Verbosity int

const (
	// Quiet prints warnings, errors and the final summary.
	Quiet Verbosity = iota
	// Normal adds scenario headers and step progress.
	Normal
	// Verbose adds step timings.
	Verbose
	// Debug prints everything.
	Debug
)

func (v Verbosity) String() string {
	switch v {
	case Quiet:
		return "quiet"
	case Normal:
		return "normal"
	case Verbose:
		return "verbose"
	case Debug:
		return "debug"
	default:
		return fmt.Sprintf("Verbosity(%d)", int(v))
	}
}

// ParseVerbosity converts a name to a Verbosity. Unknown names map to Normal.
func ParseVerbosity(s string) Verbosity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet":
		return Quiet
	case "verbose":
		return Verbose
	case "debug":
		return Debug
	default:
		return Normal
	}
}

const (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#98FB98")
	amber      = lipgloss.Color("#FFD580")
	coral      = lipgloss.Color("203")
	cyan       = lipgloss.Color("#7FDBFF")
	gray       = lipgloss.Color("245")
)

// Reporter prints scenario progress to a terminal.
type Reporter struct {
	mu    sync.Mutex
	level Verbosity
	w     io.Writer

	header  lipgloss.Style
	section lipgloss.Style
	success lipgloss.Style
	info    lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style

	stepCount int
}

// NewReporter writes to w, or stdout when w is nil. Styles degrade to plain
// text when w is not a terminal.
func NewReporter(w io.Writer, level Verbosity) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		level:   level,
		w:       w,
		header:  r.NewStyle().Bold(true),
		section: r.NewStyle().Foreground(cyan),
		success: r.NewStyle().Foreground(mintGreen).Bold(true),
		info:    r.NewStyle().Foreground(salmonPink),
		warning: r.NewStyle().Foreground(amber),
		failure: r.NewStyle().Foreground(coral).Bold(true),
		muted:   r.NewStyle().Foreground(gray),
	}
}

// Level returns the reporter's verbosity.
func (r *Reporter) Level() Verbosity {
	return r.level
}

func (r *Reporter) println(min Verbosity, style lipgloss.Style, s string) {
	if r.level < min {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, style.Render(s))
}

func (r *Reporter) blank(min Verbosity) {
	if r.level < min {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w)
}

// Header prints a prominent banner.
func (r *Reporter) Header(message string) {
	rule := strings.Repeat("=", 70)
	r.blank(Normal)
	r.println(Normal, r.header, rule)
	r.println(Normal, r.header, "  "+message)
	r.println(Normal, r.header, rule)
}

// Section prints a divider titled with a scenario name.
func (r *Reporter) Section(title string) {
	r.blank(Normal)
	r.println(Normal, r.section, "▶ "+title)
	r.println(Normal, r.muted, strings.Repeat("─", 50))
}

// Step prints a numbered step.
func (r *Reporter) Step(name string) {
	r.mu.Lock()
	r.stepCount++
	n := r.stepCount
	r.mu.Unlock()
	r.println(Normal, r.section, fmt.Sprintf("[%d] %s", n, name))
}

func (r *Reporter) Successf(format string, args ...any) {
	r.println(Normal, r.success, "✓ "+fmt.Sprintf(format, args...))
}

func (r *Reporter) Infof(format string, args ...any) {
	r.println(Normal, r.info, fmt.Sprintf(format, args...))
}

func (r *Reporter) Warningf(format string, args ...any) {
	r.println(Quiet, r.warning, "⚠ Warning: "+fmt.Sprintf(format, args...))
}

func (r *Reporter) Errorf(format string, args ...any) {
	r.println(Quiet, r.failure, "✗ Error: "+fmt.Sprintf(format, args...))
}

// Verbosef prints details shown only in verbose mode.
func (r *Reporter) Verbosef(format string, args ...any) {
	r.println(Verbose, r.muted, "→ "+fmt.Sprintf(format, args...))
}

func (r *Reporter) Debugf(format string, args ...any) {
	r.println(Debug, r.muted, "[DEBUG] "+fmt.Sprintf(format, args...))
}

// Summary prints the outcome of a run. It is printed at every verbosity.
func (r *Reporter) Summary(results *Results) {
	rule := strings.Repeat("=", 70)
	r.blank(Quiet)
	r.println(Quiet, r.header, rule)
	r.println(Quiet, r.header, "  RUN SUMMARY")
	r.println(Quiet, r.header, rule)

	for _, sc := range results.Scenarios {
		switch sc.Status {
		case StatusPassed:
			r.println(Quiet, r.success, fmt.Sprintf("  ✓ %s (%s)", sc.Name, sc.Duration.Round(time.Millisecond)))
		case StatusFailed:
			r.println(Quiet, r.failure, fmt.Sprintf("  ✗ %s (%s)", sc.Name, sc.Duration.Round(time.Millisecond)))
			if sc.Error != "" {
				r.println(Quiet, r.muted, "    "+sc.Error)
			}
		default:
			r.println(Quiet, r.muted, fmt.Sprintf("  - %s (%s)", sc.Name, sc.Status))
		}
		if r.level >= Verbose {
			for _, st := range sc.Steps {
				r.println(Verbose, r.muted, fmt.Sprintf("      %s %s (%s)", st.Status.marker(), st.Name, st.Duration.Round(time.Millisecond)))
			}
		}
	}

	passed, failed, notRun := results.Counts()
	r.blank(Quiet)
	r.println(Quiet, r.header, fmt.Sprintf("  Passed: %d  Failed: %d  Not run: %d  Duration: %s",
		passed, failed, notRun, results.Duration.Round(time.Second)))
	r.println(Quiet, r.header, rule)
}
