package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bcbklhi/escrow-express/internal/models"
	"github.com/bcbklhi/escrow-express/internal/twiliowhatsapp"
)

// TwilioService implements the Service interface using the Twilio API.
// Inbound messages arrive through the webhook handler; the Twilio REST API
// cannot mutate sent messages, so edits degrade to re-sends.
type TwilioService struct {
	client    twiliowhatsapp.Sender // real Twilio client or MockClient
	responses chan models.Response
	callbacks chan models.Callback
	buttons   *buttonTracker
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioService creates a new TwilioService wrapping the given Sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:    client,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		callbacks: make(chan models.Callback, DefaultChannelBufferSize),
		buttons:   newButtonTracker(),
		done:      make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number. @-handles pass through; everything else is reduced to digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	if strings.HasPrefix(recipient, "@") {
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
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op for Twilio; inbound traffic arrives via the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
		close(s.callbacks)
	}()

	return nil
}

// SendMessage sends a message via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return models.ErrServiceStopped
	}

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}

	if _, err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}
	return nil
}

// SendButtons sends a control message rendered as a numbered option list.
func (s *TwilioService) SendButtons(ctx context.Context, to string, body string, buttons [][]models.Button) (models.MessageRef, error) {
	if s.isStopped() {
		return models.MessageRef{}, models.ErrServiceStopped
	}

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendButtons validation error", "error", err, "to", to)
		return models.MessageRef{}, err
	}

	sid, err := s.client.SendMessage(ctx, canonicalTo, renderButtons(body, buttons))
	if err != nil {
		return models.MessageRef{}, err
	}

	ref := models.MessageRef{Chat: canonicalTo, ID: sid}
	s.buttons.Set(ref, buttons)
	return ref, nil
}

// EditMessageText re-sends the updated body; the Twilio REST API has no
// in-place message edit.
func (s *TwilioService) EditMessageText(ctx context.Context, ref models.MessageRef, body string) error {
	slog.Debug("TwilioService EditMessageText degrading to re-send", "chat", ref.Chat)
	return s.SendMessage(ctx, ref.Chat, body)
}

// EditMessageButtons re-sends the updated control message and replaces the
// live option set for the chat.
func (s *TwilioService) EditMessageButtons(ctx context.Context, ref models.MessageRef, body string, buttons [][]models.Button) error {
	if s.isStopped() {
		return models.ErrServiceStopped
	}

	slog.Debug("TwilioService EditMessageButtons degrading to re-send", "chat", ref.Chat)
	sid, err := s.client.SendMessage(ctx, ref.Chat, renderButtons(body, buttons))
	if err != nil {
		return err
	}
	s.buttons.Set(models.MessageRef{Chat: ref.Chat, ID: sid}, buttons)
	return nil
}

// AnswerCallback acknowledges a button tap as a short direct message.
func (s *TwilioService) AnswerCallback(ctx context.Context, cb models.Callback, text string) error {
	if text == "" {
		return nil
	}
	return s.SendMessage(ctx, cb.From, text)
}

// Responses returns the channel for incoming messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

// Callbacks returns the channel for resolved control taps.
func (s *TwilioService) Callbacks() <-chan models.Callback {
	return s.callbacks
}

func (s *TwilioService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// WebhookHandler handles inbound Twilio webhook requests. It parses incoming
// messages and emits them as Responses, or as Callbacks when the body is a
// bare option number replying to a live control message.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	slog.Info("Twilio webhook received")

	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := strings.TrimPrefix(r.FormValue("From"), "whatsapp:")
	body := r.FormValue("Body")
	profileName := r.FormValue("ProfileName")

	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	canonicalFrom, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Error("Twilio webhook sender validation failed", "error", err, "from", from)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}
	username := profileName
	if username == "" {
		username = canonicalFrom
	}

	if btn, ref, ok := s.buttons.Resolve(canonicalFrom, body); ok {
		s.safeEmitCallback(models.Callback{
			ID:       uuid.NewString(),
			From:     canonicalFrom,
			Username: username,
			Data:     btn.Data,
			Message:  ref,
			Time:     time.Now().Unix(),
		})
	} else {
		// Twilio WhatsApp is one-on-one; every inbound chat is private.
		s.safeEmitResponse(models.Response{
			From:     canonicalFrom,
			Username: username,
			Chat:     canonicalFrom,
			Body:     body,
			Private:  true,
			Time:     time.Now().Unix(),
		})
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// safeEmitResponse safely pushes responses into the responses channel.
func (s *TwilioService) safeEmitResponse(response models.Response) {
	if s.isStopped() {
		slog.Warn("TwilioService dropping inbound response (service stopped)", "from", response.From)
		return
	}

	select {
	case s.responses <- response:
		slog.Debug("TwilioService emitted inbound response", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", response.From)
	}
}

// safeEmitCallback safely pushes callbacks into the callbacks channel.
func (s *TwilioService) safeEmitCallback(cb models.Callback) {
	if s.isStopped() {
		slog.Warn("TwilioService dropping inbound callback (service stopped)", "from", cb.From)
		return
	}

	select {
	case s.callbacks <- cb:
		slog.Debug("TwilioService emitted inbound callback", "from", cb.From, "data", cb.Data)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService callbacks channel blocked, dropping tap", "from", cb.From)
	}
}
