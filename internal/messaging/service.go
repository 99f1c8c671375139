// Package messaging defines the pluggable message delivery abstraction the
// escrow flows talk to, plus the response routing primitives built on it.
package messaging

import (
	"context"
	"regexp"
	"time"

	"github.com/bcbklhi/escrow-express/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for response and callback channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// phoneNumberRegex strips everything that is not a digit when canonicalizing
// phone-number recipients.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines the narrow messaging boundary the escrow core calls
// through. Implementations deliver to a venue, an identity or a handle;
// delivery failures are non-fatal to the caller.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Each service implements its own recipient rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendButtons sends a message carrying tappable controls (rows of
	// label/token pairs) and returns a reference for later in-place edits.
	SendButtons(ctx context.Context, to string, body string, buttons [][]models.Button) (models.MessageRef, error)

	// EditMessageText replaces the body of a previously sent message.
	EditMessageText(ctx context.Context, ref models.MessageRef, body string) error

	// EditMessageButtons re-renders a previously sent control message with
	// updated body and controls.
	EditMessageButtons(ctx context.Context, ref models.MessageRef, body string, buttons [][]models.Button) error

	// AnswerCallback delivers a short transient acknowledgement for a button tap.
	AnswerCallback(ctx context.Context, cb models.Callback, text string) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming text messages.
	Responses() <-chan models.Response

	// Callbacks returns a channel of button tap events.
	Callbacks() <-chan models.Callback
}
