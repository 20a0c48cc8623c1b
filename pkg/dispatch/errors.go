package dispatch

import (
	"fmt"
	"io/fs"
)

// AlreadyExistsError is returned by create operations whose target is
// already present. The existing file is left untouched.
type AlreadyExistsError struct {
	Path string

	// Name is set when a Go identifier of the new file is already declared
	// in Path, a sibling file of the same package.
	Name string
}

func (e *AlreadyExistsError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("'%s' is already declared in '%s'", e.Name, e.Path)
	}
	return fmt.Sprintf("'%s' already exists", e.Path)
}

// Unwrap lets errors.Is match fs.ErrExist.
func (e *AlreadyExistsError) Unwrap() error {
	return fs.ErrExist
}

// SubprocessFailure reports a delegated command that exited non-zero or was
// stopped by its timeout. Output holds the captured combined output.
type SubprocessFailure struct {
	Command  string
	ExitCode int
	TimedOut bool
	Output   string
}

func (e *SubprocessFailure) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("command timed out: %s", e.Command)
	}
	return fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, e.Command)
}
