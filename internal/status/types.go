package status

import (
	"fmt"
	"time"
)

// ProcessID identifies a running instance of the target process. It is an
// opaque token: any value other than NoProcess denotes a detected process,
// numeric or not.
type ProcessID string

// NoProcess is the sentinel payload meaning "target not running".
const NoProcess ProcessID = "0"

// Kind is the variant of a DisplayStatus.
type Kind int

const (
	Searching Kind = iota // no notification received yet
	Detected              // target running, PID set
	Safe                  // target confirmed absent
)

func (k Kind) String() string {
	switch k {
	case Searching:
		return "searching"
	case Detected:
		return "detected"
	case Safe:
		return "safe"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "searching":
		*k = Searching
	case "detected":
		*k = Detected
	case "safe":
		*k = Safe
	default:
		return fmt.Errorf("unknown status kind %q", string(b))
	}
	return nil
}

// DisplayStatus is the status derived from the notification stream.
// PID is only set when Kind is Detected.
type DisplayStatus struct {
	Kind Kind      `json:"kind"`
	PID  ProcessID `json:"pid,omitempty"`
}

// Interpret maps a payload to a status using the default sentinel.
func Interpret(p ProcessID) DisplayStatus { return InterpretWith(p, NoProcess) }

// InterpretWith maps a payload to a status, treating sentinel as "no process".
func InterpretWith(p, sentinel ProcessID) DisplayStatus {
	if p == sentinel {
		return DisplayStatus{Kind: Safe}
	}
	return DisplayStatus{Kind: Detected, PID: p}
}

// Label is the text shown by the panel for this status.
func (s DisplayStatus) Label() string {
	switch s.Kind {
	case Detected:
		return fmt.Sprintf("DETECTED [PID: %s]", s.PID)
	case Safe:
		return "SAFE"
	default:
		return "SEARCHING..."
	}
}

func (s DisplayStatus) String() string { return s.Label() }

// Phase is the lifecycle stage of a Reconciler.
//
//	Uninitialized -> Activating -> Active -> Deactivated
//	                 Activating -> Failed
//
// Deactivated is reachable from every phase and absorbing; Failed is absorbing
// for status purposes.
type Phase int

const (
	Uninitialized Phase = iota
	Activating
	Active
	Failed
	Deactivated
)

var phaseNames = [...]string{"uninitialized", "activating", "active", "failed", "deactivated"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for i, n := range phaseNames {
		if n == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(b))
}

// Snapshot is a read-only view of a Reconciler. When Err is set the status
// must not be rendered.
type Snapshot struct {
	Target    string        `json:"target,omitempty"`
	Topic     string        `json:"topic"`
	Phase     Phase         `json:"phase"`
	Status    DisplayStatus `json:"status"`
	Err       *BridgeError  `json:"error,omitempty"`
	Received  uint64        `json:"received"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Label returns the error message when an error is present, otherwise the
// status label.
func (s Snapshot) Label() string {
	if s.Err != nil {
		return s.Err.Message()
	}
	return s.Status.Label()
}
