package store

import (
	"sync"

	"go.uber.org/zap"
)

// State is the lifecycle state of the store connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// stateTracker records transitions and reports them to the logger and observers.
// Driver monitoring events are ignored while the initial connect is in flight so
// that Connect alone decides the outcome of connecting.
type stateTracker struct {
	mu        sync.Mutex
	state     State
	logger    *zap.Logger
	observers []func(State)
}

func newStateTracker(logger *zap.Logger, observers []func(State)) *stateTracker {
	return &stateTracker{
		state:     StateDisconnected,
		logger:    logger.With(zap.String("actor", "MongoDB")),
		observers: observers,
	}
}

func (t *stateTracker) current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *stateTracker) set(next State) {
	t.mu.Lock()
	if t.state == next {
		t.mu.Unlock()
		return
	}
	t.state = next
	t.mu.Unlock()

	t.report(next)
}

// observe applies a transition reported by driver monitoring.
func (t *stateTracker) observe(next State) {
	t.mu.Lock()
	if t.state == StateConnecting || t.state == next {
		t.mu.Unlock()
		return
	}
	t.state = next
	t.mu.Unlock()

	t.report(next)
}

func (t *stateTracker) report(next State) {
	switch next {
	case StateConnected:
		t.logger.Info("connected")
	case StateDisconnected:
		t.logger.Error("disconnected")
	default:
		t.logger.Debug(next.String())
	}
	for _, fn := range t.observers {
		fn(next)
	}
}
