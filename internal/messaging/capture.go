package messaging

import (
	"context"
	"log/slog"
	"sync"
)

// CaptureAction consumes the next inbound text from one specific identity.
// It runs at most once; the registration is cleared before it is invoked.
type CaptureAction func(ctx context.Context, from, responseText string, timestamp int64) error

// CaptureRegistry maps identities to one pending capture each. It replaces
// the hazardous "grab the very next inbound text regardless of sender"
// pattern: a capture only ever fires for the identity that registered it, so
// a second user's message can never be misrouted as another user's answer.
// The dispatcher consults it before any other routing.
type CaptureRegistry struct {
	// captures maps canonical identities to their pending action
	captures map[string]CaptureAction
	// mu protects concurrent access to the captures map
	mu sync.RWMutex
}

// NewCaptureRegistry creates an empty registry.
func NewCaptureRegistry() *CaptureRegistry {
	return &CaptureRegistry{
		captures: make(map[string]CaptureAction),
	}
}

// Register arms a capture for the identity's next message. A second
// registration for the same identity replaces the first.
func (cr *CaptureRegistry) Register(identity string, action CaptureAction) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.captures[identity] = action
	slog.Debug("CaptureRegistry capture registered", "identity", identity)
}

// Clear removes any pending capture for the identity.
func (cr *CaptureRegistry) Clear(identity string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	delete(cr.captures, identity)
	slog.Debug("CaptureRegistry capture cleared", "identity", identity)
}

// IsPending reports whether a capture is armed for the identity.
func (cr *CaptureRegistry) IsPending(identity string) bool {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	_, ok := cr.captures[identity]
	return ok
}

// Consume fires and clears the pending capture for the identity, if any.
// Returns true if a capture handled the message.
func (cr *CaptureRegistry) Consume(ctx context.Context, identity, responseText string, timestamp int64) (bool, error) {
	cr.mu.Lock()
	action, ok := cr.captures[identity]
	if ok {
		delete(cr.captures, identity)
	}
	cr.mu.Unlock()

	if !ok {
		return false, nil
	}

	slog.Debug("CaptureRegistry consuming capture", "identity", identity)
	if err := action(ctx, identity, responseText, timestamp); err != nil {
		slog.Error("CaptureRegistry capture action failed", "error", err, "identity", identity)
		return true, err
	}
	return true, nil
}
