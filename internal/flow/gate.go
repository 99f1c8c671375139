package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bcbklhi/escrow-express/internal/messaging"
	"github.com/bcbklhi/escrow-express/internal/models"
	"github.com/bcbklhi/escrow-express/internal/store"
	"github.com/bcbklhi/escrow-express/internal/util"
)

// Gate is the one-shot verification challenge in front of all private
// conversational input. A user's first private message is consumed to issue a
// 4-digit code; their next message is consumed as the answer (routed per
// identity through the capture registry, never another user's message). A
// correct answer verifies the user for the process lifetime; a wrong one
// clears the challenge so the next contact is re-challenged.
type Gate struct {
	store   store.Store
	msg     messaging.Service
	capture *messaging.CaptureRegistry
}

// NewGate creates a verification gate.
func NewGate(st store.Store, msg messaging.Service, capture *messaging.CaptureRegistry) *Gate {
	return &Gate{store: st, msg: msg, capture: capture}
}

// Intercept checks whether the message must be held at the gate. Non-private
// contexts and verified users pass through (handled=false). Anyone else gets
// a fresh challenge and the triggering message is consumed.
func (g *Gate) Intercept(ctx context.Context, resp models.Response) bool {
	if !resp.Private {
		return false
	}
	if g.store.IsVerified(resp.From) {
		return false
	}

	code := util.GenerateCaptchaCode()
	g.store.SetChallenge(resp.From, code)
	g.capture.Register(resp.From, g.answerAction)

	slog.Info("Gate challenge issued", "userID", resp.From)
	if err := g.msg.SendMessage(ctx, resp.Chat, fmt.Sprintf(captchaPromptFmt, code)); err != nil {
		slog.Error("Gate failed to send challenge prompt", "error", err, "userID", resp.From)
	}
	return true
}

// answerAction validates the user's next message against their stored code.
// The challenge is deleted on first response regardless of outcome.
func (g *Gate) answerAction(ctx context.Context, from, responseText string, timestamp int64) error {
	code, ok := g.store.TakeChallenge(from)
	if !ok {
		// Capture armed without a live challenge should not happen; treat the
		// message as unverified contact so the user is re-challenged.
		slog.Warn("Gate answer received without live challenge", "userID", from)
		return nil
	}

	if strings.TrimSpace(responseText) == code {
		g.store.MarkVerified(from)
		slog.Info("Gate challenge passed", "userID", from)
		if err := g.msg.SendMessage(ctx, from, captchaVerifiedMsg); err != nil {
			slog.Error("Gate failed to send verified message", "error", err, "userID", from)
		}
		return nil
	}

	slog.Info("Gate challenge failed", "userID", from)
	if err := g.msg.SendMessage(ctx, from, captchaFailedMsg); err != nil {
		slog.Error("Gate failed to send failure message", "error", err, "userID", from)
	}
	return nil
}
