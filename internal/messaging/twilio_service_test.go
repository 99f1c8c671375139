package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bcbklhi/escrow-express/internal/models"
	"github.com/bcbklhi/escrow-express/internal/twiliowhatsapp"
)

func postWebhook(t *testing.T, svc *TwilioService, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, req)
	return rec
}

func TestTwilioService_WebhookEmitsPrivateResponse(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	rec := postWebhook(t, svc, url.Values{
		"From":        {"whatsapp:+911234567890"},
		"Body":        {"💰 INR Deal"},
		"ProfileName": {"Alice"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	select {
	case resp := <-svc.Responses():
		if resp.From != "911234567890" || resp.Username != "Alice" || !resp.Private {
			t.Errorf("response = %+v", resp)
		}
		if resp.Body != "💰 INR Deal" {
			t.Errorf("body = %q", resp.Body)
		}
	default:
		t.Fatal("no response emitted")
	}
}

func TestTwilioService_WebhookRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	rec := postWebhook(t, svc, url.Values{"From": {"whatsapp:+911234567890"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing body: status = %d, want 400", rec.Code)
	}

	rec = postWebhook(t, svc, url.Values{"Body": {"hi"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing sender: status = %d, want 400", rec.Code)
	}
}

func TestTwilioService_WebhookResolvesNumericReply(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	ctx := context.Background()

	rows := [][]models.Button{{{Label: "🛡️ Claim Deal", Data: "claim_DEAL1"}}}
	ref, err := svc.SendButtons(ctx, "911234567890", "claim?", rows)
	if err != nil {
		t.Fatalf("SendButtons returned error: %v", err)
	}

	postWebhook(t, svc, url.Values{
		"From": {"whatsapp:+911234567890"},
		"Body": {"1"},
	})

	select {
	case cb := <-svc.Callbacks():
		if cb.Data != "claim_DEAL1" || cb.Message != ref {
			t.Errorf("callback = %+v", cb)
		}
	default:
		t.Fatal("numeric reply not surfaced as callback")
	}
}

func TestTwilioService_EditDegradesToResend(t *testing.T) {
	client := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(client)
	ctx := context.Background()

	ref := models.MessageRef{Chat: "911234567890", ID: "SM1"}
	if err := svc.EditMessageText(ctx, ref, "updated"); err != nil {
		t.Fatalf("EditMessageText returned error: %v", err)
	}

	sent := client.SentMessages
	if len(sent) != 1 || sent[0].Body != "updated" {
		t.Errorf("sends = %+v, want one re-send", sent)
	}
}

func TestTwilioService_StoppedServiceRejectsSends(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	err := svc.SendMessage(context.Background(), "911234567890", "late")
	if !errors.Is(err, models.ErrServiceStopped) {
		t.Errorf("SendMessage after Stop = %v, want ErrServiceStopped", err)
	}

	// Stop is idempotent.
	if err := svc.Stop(); err != nil {
		t.Errorf("second Stop returned error: %v", err)
	}
}
