package inference

import (
	"fmt"
)

// InvocationError reports a strategy that could not run to a zero exit.
type InvocationError struct {
	Strategy string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("inference %s: timed out: %v", e.Strategy, e.Err)
	case e.ExitCode != 0:
		return fmt.Sprintf("inference %s: exit status %d", e.Strategy, e.ExitCode)
	case e.Strategy == "":
		return fmt.Sprintf("inference: %v", e.Err)
	default:
		return fmt.Sprintf("inference %s: %v", e.Strategy, e.Err)
	}
}

func (e *InvocationError) Unwrap() error { return e.Err }

// OutputError reports a run that exited cleanly but left no usable snapshot.
type OutputError struct {
	Strategy string
	Path     string
	Err      error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("inference %s: output %s: %v", e.Strategy, e.Path, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }
