// Package detector holds the strategies the host monitor uses to find the
// PID of the target process. Detection itself is delegated to the system:
// a PID file written by the target, a fixed PID, or an external command such
// as "pgrep -n firefox" that prints the PID.
package detector

import (
	"errors"
	"strings"
)

// Detector is a strategy that reports the PID of the target process.
// It must be safe for concurrent use.
type Detector interface {
	// Detect returns the PID of the running target, or 0 when it is not running.
	Detect() (int, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// First tries each detector in order and returns the first non-zero PID.
// Errors are only reported when no detector found the target.
type First []Detector

func (f First) Detect() (int, error) {
	var errs []error
	for _, d := range f {
		pid, err := d.Detect()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pid > 0 {
			return pid, nil
		}
	}
	return 0, errors.Join(errs...)
}

func (f First) Describe() string {
	parts := make([]string, 0, len(f))
	for _, d := range f {
		parts = append(parts, d.Describe())
	}
	return strings.Join(parts, ",")
}
