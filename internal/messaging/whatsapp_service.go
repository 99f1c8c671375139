package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/bcbklhi/escrow-express/internal/models"
	"github.com/bcbklhi/escrow-express/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client. WhatsApp has no native inline buttons, so controls are rendered as
// numbered option lists and bare numeric replies in that chat are surfaced as
// Callback events instead of Responses.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // access to underlying client for event handling
	responses chan models.Response
	callbacks chan models.Callback
	buttons   *buttonTracker
	done      chan struct{}
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		callbacks: make(chan models.Callback, DefaultChannelBufferSize),
		buttons:   newButtonTracker(),
		done:      make(chan struct{}),
	}

	// If the client is a full Client (not just an interface), store it for event handling
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient.
// JIDs (venues like "12345@g.us") and @-handles pass through unchanged; plain
// phone numbers are reduced to digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	if strings.Contains(recipient, "@") {
		// Venue JID or user handle; the transport resolves these directly.
		return recipient, nil
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if canonical != recipient {
		slog.Debug("WhatsAppService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start begins background event processing.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")

	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
	}

	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	close(s.done)
	close(s.responses)
	close(s.callbacks)
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	slog.Info("WhatsAppService stopped and channels closed")
	return nil
}

// SendMessage sends a plain text message.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}

	slog.Debug("WhatsAppService SendMessage invoked", "to", canonicalTo, "body_length", len(body))
	if _, err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	return nil
}

// SendButtons sends a control message rendered as a numbered option list and
// registers the options so numeric replies in that chat become callbacks.
func (s *WhatsAppService) SendButtons(ctx context.Context, to string, body string, buttons [][]models.Button) (models.MessageRef, error) {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendButtons validation error", "error", err, "to", to)
		return models.MessageRef{}, err
	}

	id, err := s.client.SendMessage(ctx, canonicalTo, renderButtons(body, buttons))
	if err != nil {
		slog.Error("WhatsAppService SendButtons error", "error", err, "to", canonicalTo)
		return models.MessageRef{}, err
	}

	ref := models.MessageRef{Chat: canonicalTo, ID: id}
	s.buttons.Set(ref, buttons)
	slog.Info("WhatsAppService control message sent", "to", canonicalTo, "messageID", id)
	return ref, nil
}

// EditMessageText replaces a previously sent message body in place.
func (s *WhatsAppService) EditMessageText(ctx context.Context, ref models.MessageRef, body string) error {
	slog.Debug("WhatsAppService EditMessageText invoked", "chat", ref.Chat, "messageID", ref.ID)
	return s.client.EditMessage(ctx, ref.Chat, ref.ID, body)
}

// EditMessageButtons re-renders a control message in place with updated
// labels and tokens.
func (s *WhatsAppService) EditMessageButtons(ctx context.Context, ref models.MessageRef, body string, buttons [][]models.Button) error {
	slog.Debug("WhatsAppService EditMessageButtons invoked", "chat", ref.Chat, "messageID", ref.ID)
	if err := s.client.EditMessage(ctx, ref.Chat, ref.ID, renderButtons(body, buttons)); err != nil {
		return err
	}
	s.buttons.Update(ref, buttons)
	return nil
}

// AnswerCallback acknowledges a button tap. WhatsApp has no transient toast,
// so the acknowledgement goes out as a short direct message to the actor.
func (s *WhatsAppService) AnswerCallback(ctx context.Context, cb models.Callback, text string) error {
	if text == "" {
		return nil
	}
	return s.SendMessage(ctx, cb.From, text)
}

// Responses returns the channel of incoming text messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

// Callbacks returns the channel of button tap events.
func (s *WhatsAppService) Callbacks() <-chan models.Callback {
	return s.callbacks
}

// handleEvents processes WhatsApp events and feeds them into the appropriate channels
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	slog.Debug("WhatsAppService handleEvents starting")

	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		default:
			// Ignore receipts, presence and connection events.
		}
	})

	slog.Debug("WhatsAppService event handler registered")

	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage converts an incoming text message into either a
// Callback (numeric reply selecting a live control) or a Response.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe {
		return
	}

	var messageText string
	if evt.Message.Conversation != nil {
		messageText = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		messageText = *evt.Message.ExtendedTextMessage.Text
	} else {
		// Skip non-text messages (images, audio, etc.)
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	from := evt.Info.Sender.User
	chat := evt.Info.Chat.String()
	private := evt.Info.Chat.Server == types.DefaultUserServer
	if private {
		chat = evt.Info.Chat.User
	}
	username := evt.Info.PushName
	if username == "" {
		username = from
	}

	// A bare option number replying to a live control is a button tap.
	if btn, ref, ok := s.buttons.Resolve(chat, messageText); ok {
		callback := models.Callback{
			ID:       uuid.NewString(),
			From:     from,
			Username: username,
			Data:     btn.Data,
			Message:  ref,
			Time:     evt.Info.Timestamp.Unix(),
		}
		slog.Debug("WhatsAppService resolved control tap", "from", from, "data", btn.Data)
		select {
		case s.callbacks <- callback:
			slog.Info("WhatsAppService callback forwarded", "from", from, "data", btn.Data)
		case <-time.After(DefaultChannelTimeout):
			slog.Warn("WhatsAppService callbacks channel blocked, dropping tap", "from", from, "timeout", DefaultChannelTimeout)
		}
		return
	}

	response := models.Response{
		From:     from,
		Username: username,
		Chat:     chat,
		Body:     messageText,
		Private:  private,
		Time:     evt.Info.Timestamp.Unix(),
	}

	slog.Debug("WhatsAppService processing incoming message", "from", response.From, "private", private, "body_length", len(response.Body))

	select {
	case s.responses <- response:
		slog.Info("WhatsAppService incoming message forwarded", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", response.From, "timeout", DefaultChannelTimeout)
	}
}
