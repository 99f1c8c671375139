package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bcbklhi/escrow-express/internal/messaging"
	"github.com/bcbklhi/escrow-express/internal/models"
	"github.com/bcbklhi/escrow-express/internal/store"
)

// Admin handles the owner-only commands. Every non-owner invocation is
// silently ignored so the commands' existence is never confirmed.
type Admin struct {
	store   store.Store
	msg     messaging.Service
	capture *messaging.CaptureRegistry
	cfg     Config
}

// NewAdmin creates the administrative command handler.
func NewAdmin(st store.Store, msg messaging.Service, capture *messaging.CaptureRegistry, cfg Config) *Admin {
	return &Admin{store: st, msg: msg, capture: capture, cfg: cfg}
}

// isOwner checks the single static privileged identity.
func (a *Admin) isOwner(actor string) bool {
	return actor == a.cfg.OwnerID
}

// HandleBroadcast prompts the owner for the broadcast text and arms a capture
// for the owner's next message. Non-owners get no response.
func (a *Admin) HandleBroadcast(ctx context.Context, resp models.Response) error {
	if !a.isOwner(resp.From) {
		slog.Debug("Admin broadcast denied", "actor", resp.From)
		return nil
	}

	a.capture.Register(resp.From, a.broadcastAction)
	if err := a.msg.SendMessage(ctx, resp.Chat, broadcastPromptMsg); err != nil {
		a.capture.Clear(resp.From)
		return fmt.Errorf("failed to prompt for broadcast: %w", err)
	}
	return nil
}

// broadcastAction fans the captured text out to each distinct deal creator
// identity, best-effort: per-recipient delivery failures are logged and
// swallowed, never aborting the remaining fan-out.
func (a *Admin) broadcastAction(ctx context.Context, from, responseText string, timestamp int64) error {
	body := "📢 Broadcast:\n" + responseText

	seen := make(map[string]struct{})
	sent := 0
	for _, deal := range a.store.ListDeals() {
		if _, dup := seen[deal.CreatorID]; dup {
			continue
		}
		seen[deal.CreatorID] = struct{}{}

		if err := a.msg.SendMessage(ctx, deal.CreatorID, body); err != nil {
			slog.Warn("Admin broadcast delivery failed", "error", err, "recipient", deal.CreatorID)
			continue
		}
		sent++
	}

	slog.Info("Admin broadcast completed", "recipients", len(seen), "delivered", sent)
	if err := a.msg.SendMessage(ctx, from, broadcastSentMsg); err != nil {
		slog.Error("Admin failed to confirm broadcast", "error", err, "owner", from)
	}
	return nil
}

// HandleAnalytics replies with the aggregate deal counts. Non-owners get no
// response.
func (a *Admin) HandleAnalytics(ctx context.Context, resp models.Response) error {
	if !a.isOwner(resp.From) {
		slog.Debug("Admin analytics denied", "actor", resp.From)
		return nil
	}

	stats := a.store.Analytics()
	body := fmt.Sprintf("📊 Total Deals: %d\n🕓 Pending: %d\n🛡️ Claimed: %d",
		stats.Total, stats.Pending, stats.Claimed)
	if err := a.msg.SendMessage(ctx, resp.Chat, body); err != nil {
		return fmt.Errorf("failed to send analytics: %w", err)
	}
	return nil
}
