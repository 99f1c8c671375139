// Package bot wires the messaging service, the state store and the escrow
// flows into a single event dispatcher.
//
// Events are consumed by one goroutine and each is processed to completion
// before the next, so Session and Deal mutations are serialized; the store's
// own locking keeps the invariants intact even if a transport delivers
// concurrently.
package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bcbklhi/escrow-express/internal/flow"
	"github.com/bcbklhi/escrow-express/internal/messaging"
	"github.com/bcbklhi/escrow-express/internal/models"
	"github.com/bcbklhi/escrow-express/internal/store"
)

// Bot routes inbound responses and callbacks to the escrow flow components.
type Bot struct {
	msg       messaging.Service
	store     store.Store
	capture   *messaging.CaptureRegistry
	gate      *flow.Gate
	intake    *flow.Intake
	confirmer *flow.Confirmer
	claimer   *flow.Claimer
	admin     *flow.Admin
}

// New assembles a Bot from its dependencies.
func New(msg messaging.Service, st store.Store, cfg flow.Config) *Bot {
	capture := messaging.NewCaptureRegistry()
	return &Bot{
		msg:       msg,
		store:     st,
		capture:   capture,
		gate:      flow.NewGate(st, msg, capture),
		intake:    flow.NewIntake(st, msg, cfg),
		confirmer: flow.NewConfirmer(st, msg, cfg),
		claimer:   flow.NewClaimer(st, msg, cfg),
		admin:     flow.NewAdmin(st, msg, capture, cfg),
	}
}

// Run starts the messaging service and processes events until the context is
// cancelled. Handler errors are logged and never crash the loop.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.msg.Start(ctx); err != nil {
		return err
	}
	slog.Info("Bot event loop started")
	defer slog.Info("Bot event loop stopped")

	for {
		select {
		case resp, ok := <-b.msg.Responses():
			if !ok {
				slog.Debug("Bot responses channel closed")
				return nil
			}
			if err := b.HandleResponse(ctx, resp); err != nil {
				slog.Error("Bot failed to handle response", "error", err, "from", resp.From)
			}

		case cb, ok := <-b.msg.Callbacks():
			if !ok {
				slog.Debug("Bot callbacks channel closed")
				return nil
			}
			if err := b.HandleCallback(ctx, cb); err != nil {
				slog.Error("Bot failed to handle callback", "error", err, "from", cb.From)
			}

		case <-ctx.Done():
			slog.Debug("Bot stopping due to context cancellation")
			return nil
		}
	}
}

// HandleResponse routes one inbound text message. Routing order: pending
// capture for the sender, then the verification gate, then command triggers,
// then an active intake session. Anything left over is ignored.
func (b *Bot) HandleResponse(ctx context.Context, resp models.Response) error {
	slog.Debug("Bot handling response", "from", resp.From, "private", resp.Private, "body_length", len(resp.Body))

	if handled, err := b.capture.Consume(ctx, resp.From, resp.Body, resp.Time); handled {
		return err
	}

	if b.gate.Intercept(ctx, resp) {
		return nil
	}

	switch strings.TrimSpace(resp.Body) {
	case "/start":
		return b.sendWelcome(ctx, resp)
	case flow.DealTrigger:
		if !resp.Private {
			slog.Debug("Bot ignoring deal trigger outside private chat", "from", resp.From)
			return nil
		}
		return b.intake.Begin(ctx, resp)
	case "/broadcast":
		return b.admin.HandleBroadcast(ctx, resp)
	case "/analytics":
		return b.admin.HandleAnalytics(ctx, resp)
	}

	if resp.Private {
		if handled, err := b.intake.Submit(ctx, resp); handled {
			return err
		}
	}

	// No session, no command: not routed anywhere. Not an error.
	slog.Debug("Bot ignoring unrouted message", "from", resp.From)
	return nil
}

// HandleCallback routes one button tap by its decoded token action.
func (b *Bot) HandleCallback(ctx context.Context, cb models.Callback) error {
	token, err := models.ParseToken(cb.Data)
	if err != nil {
		slog.Warn("Bot received malformed callback token", "data", cb.Data, "from", cb.From)
		return b.msg.AnswerCallback(ctx, cb, "❌ Invalid.")
	}

	switch token.Action {
	case models.ActionAgree:
		return b.confirmer.Confirm(ctx, cb, token)
	case models.ActionClaim:
		return b.claimer.Claim(ctx, cb, token)
	default:
		slog.Warn("Bot received unknown callback action", "action", token.Action, "from", cb.From)
		return b.msg.AnswerCallback(ctx, cb, "❌ Invalid.")
	}
}

func (b *Bot) sendWelcome(ctx context.Context, resp models.Response) error {
	return b.msg.SendMessage(ctx, resp.Chat, flow.WelcomeMessage())
}
