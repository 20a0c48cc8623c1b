package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/alessio/shellescape"

	"github.com/entrhq/flowcheck/pkg/config"
	"github.com/entrhq/flowcheck/pkg/logging"
)

// waitDelay bounds how long Run waits for output pipes after the process
// exits or is killed.
const waitDelay = 5 * time.Second

// Runner executes delegated commands in the project directory.
type Runner struct {
	dir         string
	outputLimit int
	timeout     time.Duration
	log         *logging.Logger
}

// NewRunner creates a runner rooted at dir. A non-positive outputLimit uses
// config.DefaultOutputLimit; a zero timeout means no timeout.
func NewRunner(dir string, outputLimit int, timeout time.Duration, log *logging.Logger) *Runner {
	if outputLimit <= 0 {
		outputLimit = config.DefaultOutputLimit
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Runner{dir: dir, outputLimit: outputLimit, timeout: timeout, log: log}
}

// Output is the captured result of a finished command.
type Output struct {
	Command   string
	Text      string
	Truncated bool
	ExitCode  int
	Duration  time.Duration
}

// Run executes args and waits for it. A non-zero exit or a timeout returns
// the output together with a *SubprocessFailure.
func (r *Runner) Run(ctx context.Context, args []string) (*Output, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	execCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	buf := &cappedBuffer{limit: r.outputLimit}
	cmd := exec.CommandContext(execCtx, args[0], args[1:]...)
	cmd.Dir = r.dir
	cmd.Stdout = buf
	cmd.Stderr = buf
	cmd.WaitDelay = waitDelay

	out := &Output{Command: shellescape.QuoteCommand(args)}
	r.log.Infof("Running %s", out.Command)

	start := time.Now()
	err := cmd.Run()
	out.Duration = time.Since(start)
	out.Text, out.Truncated = buf.String(), buf.truncated
	if out.Truncated {
		out.Text += fmt.Sprintf("\n... output truncated at %d bytes", r.outputLimit)
	}

	if err == nil {
		r.log.Infof("Command completed successfully in %s", out.Duration)
		return out, nil
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		out.ExitCode = -1
		r.log.Warnf("Command timed out after %s: %s", out.Duration, out.Command)
		return out, &SubprocessFailure{Command: out.Command, ExitCode: -1, TimedOut: true, Output: out.Text}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		r.log.Warnf("Command failed with exit code %d: %s", out.ExitCode, out.Command)
		return out, &SubprocessFailure{Command: out.Command, ExitCode: out.ExitCode, Output: out.Text}
	}
	return nil, fmt.Errorf("failed to run %s: %w", out.Command, err)
}

// Start launches args without waiting for it and returns the process ID.
// Its output is discarded. The process is reaped in the background.
func (r *Runner) Start(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("empty command")
	}
	command := shellescape.QuoteCommand(args)

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = r.dir
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", command, err)
	}

	pid := cmd.Process.Pid
	r.log.Infof("Launched %s (pid %d)", command, pid)
	go func() {
		if err := cmd.Wait(); err != nil {
			r.log.Warnf("Detached command %s exited: %v", command, err)
			return
		}
		r.log.Debugf("Detached command %s exited", command)
	}()
	return pid, nil
}

// cappedBuffer keeps the first limit bytes written to it and silently drops
// the rest, so a chatty child never blocks on a full pipe.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - len(b.buf)
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
