package status

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrAlreadyActivated is returned by a second Activate on the same reconciler.
	ErrAlreadyActivated = errors.New("status: reconciler already activated")
	// ErrDeactivated is returned by Activate once Deactivate has been called.
	ErrDeactivated = errors.New("status: reconciler deactivated")
)

// ErrorKind is the cause of a BridgeError.
type ErrorKind int

const (
	// BridgeUnavailable: the host does not provide the notification bridge.
	BridgeUnavailable ErrorKind = iota + 1
	// SubscriptionFailure: the bridge exists but registering the listener failed.
	SubscriptionFailure
)

func (k ErrorKind) String() string {
	switch k {
	case BridgeUnavailable:
		return "bridge_unavailable"
	case SubscriptionFailure:
		return "subscription_failure"
	default:
		return "unknown"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *ErrorKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "bridge_unavailable":
		*k = BridgeUnavailable
	case "subscription_failure":
		*k = SubscriptionFailure
	default:
		return fmt.Errorf("unknown bridge error kind %q", string(b))
	}
	return nil
}

// Kind targets for errors.Is.
var (
	ErrBridgeUnavailable   = &BridgeError{Kind: BridgeUnavailable}
	ErrSubscriptionFailure = &BridgeError{Kind: SubscriptionFailure}
)

// BridgeError is a terminal activation failure. It is returned by Activate
// and kept in the reconciler's Snapshot.
type BridgeError struct {
	Kind  ErrorKind
	Cause error
}

func (e *BridgeError) Error() string {
	if e.Cause == nil {
		return "status: " + e.Kind.String()
	}
	return fmt.Sprintf("status: %s: %v", e.Kind, e.Cause)
}

func (e *BridgeError) Unwrap() error { return e.Cause }

// Is matches any BridgeError of the same kind.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	return ok && t.Kind == e.Kind
}

// Message is the user-facing text for the error indicator.
func (e *BridgeError) Message() string {
	switch e.Kind {
	case BridgeUnavailable:
		return "API ERROR: notification bridge is missing"
	case SubscriptionFailure:
		return "API ERROR: Failed to register listener"
	default:
		return "API ERROR"
	}
}

type bridgeErrorJSON struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   string    `json:"cause,omitempty"`
}

func (e *BridgeError) MarshalJSON() ([]byte, error) {
	v := bridgeErrorJSON{Kind: e.Kind, Message: e.Message()}
	if e.Cause != nil {
		v.Cause = e.Cause.Error()
	}
	return json.Marshal(v)
}

func (e *BridgeError) UnmarshalJSON(b []byte) error {
	var v bridgeErrorJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	e.Kind = v.Kind
	e.Cause = nil
	if v.Cause != "" {
		e.Cause = errors.New(v.Cause)
	}
	return nil
}
