package bridge

import "context"

// Missing is a Bridge for hosts that do not provide notifications.
type Missing struct{}

func (Missing) Available() bool { return false }

func (Missing) Listen(context.Context, string, Handler) (Unlisten, error) {
	return nil, ErrUnavailable
}
