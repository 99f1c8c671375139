// Package testutil provides common test utilities and helpers for Escrow
// Express tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bcbklhi/escrow-express/internal/models"
)

// Test venue identities shared across suites.
const (
	TestOwnerID    = "owner1"
	TestGroupChat  = "group@venue"
	TestLogChannel = "log@venue"
)

// SentMessage is a recorded plain text send.
type SentMessage struct {
	To   string
	Body string
}

// SentButtons is a recorded control message send or edit.
type SentButtons struct {
	Ref     models.MessageRef
	Body    string
	Buttons [][]models.Button
}

// MockService implements messaging.Service, recording all outbound traffic
// and letting tests inject inbound events.
type MockService struct {
	mu sync.Mutex

	Messages      []SentMessage
	ButtonSends   []SentButtons
	TextEdits     []SentButtons // Buttons nil; Ref and Body populated
	ButtonEdits   []SentButtons
	Answers       []SentMessage // To is the acting identity
	FailRecipient map[string]bool

	responses chan models.Response
	callbacks chan models.Callback
	nextID    int
}

// NewMockService creates a mock ready for use.
func NewMockService() *MockService {
	return &MockService{
		FailRecipient: make(map[string]bool),
		responses:     make(chan models.Response, 16),
		callbacks:     make(chan models.Callback, 16),
	}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	return recipient, nil
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRecipient[to] {
		return fmt.Errorf("simulated delivery failure to %s", to)
	}
	m.Messages = append(m.Messages, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockService) SendButtons(ctx context.Context, to string, body string, buttons [][]models.Button) (models.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRecipient[to] {
		return models.MessageRef{}, fmt.Errorf("simulated delivery failure to %s", to)
	}
	m.nextID++
	ref := models.MessageRef{Chat: to, ID: fmt.Sprintf("msg%d", m.nextID)}
	m.ButtonSends = append(m.ButtonSends, SentButtons{Ref: ref, Body: body, Buttons: buttons})
	return ref, nil
}

func (m *MockService) EditMessageText(ctx context.Context, ref models.MessageRef, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TextEdits = append(m.TextEdits, SentButtons{Ref: ref, Body: body})
	return nil
}

func (m *MockService) EditMessageButtons(ctx context.Context, ref models.MessageRef, body string, buttons [][]models.Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ButtonEdits = append(m.ButtonEdits, SentButtons{Ref: ref, Body: body, Buttons: buttons})
	return nil
}

func (m *MockService) AnswerCallback(ctx context.Context, cb models.Callback, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answers = append(m.Answers, SentMessage{To: cb.From, Body: text})
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error {
	close(m.responses)
	close(m.callbacks)
	return nil
}

func (m *MockService) Responses() <-chan models.Response { return m.responses }
func (m *MockService) Callbacks() <-chan models.Callback { return m.callbacks }

// InjectResponse feeds an inbound text message into the service.
func (m *MockService) InjectResponse(resp models.Response) {
	m.responses <- resp
}

// InjectCallback feeds an inbound button tap into the service.
func (m *MockService) InjectCallback(cb models.Callback) {
	m.callbacks <- cb
}

// MessagesTo returns all plain messages recorded for a recipient.
func (m *MockService) MessagesTo(to string) []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentMessage
	for _, msg := range m.Messages {
		if msg.To == to {
			out = append(out, msg)
		}
	}
	return out
}

// LastMessageTo returns the most recent plain message sent to a recipient.
func (m *MockService) LastMessageTo(t *testing.T, to string) SentMessage {
	t.Helper()
	msgs := m.MessagesTo(to)
	if len(msgs) == 0 {
		t.Fatalf("no messages sent to %s", to)
	}
	return msgs[len(msgs)-1]
}

// AssertLastMessageContains fails unless the most recent message to the
// recipient contains the substring.
func (m *MockService) AssertLastMessageContains(t *testing.T, to, substring string) {
	t.Helper()
	last := m.LastMessageTo(t, to)
	if !strings.Contains(last.Body, substring) {
		t.Errorf("last message to %s = %q, want substring %q", to, last.Body, substring)
	}
}

// PrivateResponse builds a private-chat inbound message for a user.
func PrivateResponse(userID, body string) models.Response {
	return models.Response{
		From:     userID,
		Username: userID,
		Chat:     userID,
		Body:     body,
		Private:  true,
	}
}

// GroupResponse builds a group-venue inbound message for a user.
func GroupResponse(userID, chat, body string) models.Response {
	return models.Response{
		From:     userID,
		Username: userID,
		Chat:     chat,
		Body:     body,
		Private:  false,
	}
}
