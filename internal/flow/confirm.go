package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bcbklhi/escrow-express/internal/messaging"
	"github.com/bcbklhi/escrow-express/internal/models"
	"github.com/bcbklhi/escrow-express/internal/store"
)

// Confirmer tracks the independent buyer/seller accept events on announced
// deals and hands a fully confirmed deal off to the arbiter pool.
type Confirmer struct {
	store store.Store
	msg   messaging.Service
	cfg   Config
}

// NewConfirmer creates a confirmation protocol handler.
func NewConfirmer(st store.Store, msg messaging.Service, cfg Config) *Confirmer {
	return &Confirmer{store: st, msg: msg, cfg: cfg}
}

// Confirm applies an agree tap. Unknown deals and duplicate role confirms are
// answered with a transient rejection and mutate nothing. A successful
// confirm re-renders the announcement controls with the confirmed roles
// decorated; the call that completes the pair additionally announces to the
// group and sends the owner the claim control, exactly once per deal.
func (c *Confirmer) Confirm(ctx context.Context, cb models.Callback, token models.Token) error {
	bothAgreed, err := c.store.ConfirmRole(token.DealID, token.Role, cb.Username)
	switch {
	case errors.Is(err, models.ErrDealNotFound):
		return c.msg.AnswerCallback(ctx, cb, invalidDealMsg)
	case errors.Is(err, models.ErrAlreadyAgreed):
		return c.msg.AnswerCallback(ctx, cb, alreadyAgreedMsg)
	case err != nil:
		return fmt.Errorf("confirm %s for deal %s: %w", token.Role, token.DealID, err)
	}

	if err := c.msg.AnswerCallback(ctx, cb, fmt.Sprintf("✅ %s confirmed", token.Role)); err != nil {
		slog.Error("Confirmer failed to acknowledge tap", "error", err, "dealID", token.DealID, "role", token.Role)
	}

	deal, err := c.store.GetDeal(token.DealID)
	if err != nil {
		return fmt.Errorf("reload deal %s after confirm: %w", token.DealID, err)
	}

	// Label decoration only; the tokens and deal state are untouched.
	if err := c.msg.EditMessageButtons(ctx, cb.Message, dealAnnouncement(deal), agreeButtons(deal)); err != nil {
		slog.Error("Confirmer failed to re-render agree controls", "error", err, "dealID", deal.ID)
	}

	if !bothAgreed {
		return nil
	}

	slog.Info("Confirmer dual confirmation reached", "dealID", deal.ID)
	if err := c.msg.SendMessage(ctx, c.cfg.GroupChat,
		fmt.Sprintf("🧾 Both parties confirmed for deal %s\nWaiting for admin claim...", deal.ID)); err != nil {
		slog.Error("Confirmer failed to announce dual confirmation", "error", err, "dealID", deal.ID)
	}
	if _, err := c.msg.SendButtons(ctx, c.cfg.OwnerID,
		fmt.Sprintf("📢 *New Deal Alert*\nID: %s\nClick below to claim:", deal.ID),
		claimButtons(deal.ID)); err != nil {
		slog.Error("Confirmer failed to send claim prompt", "error", err, "dealID", deal.ID)
	}
	return nil
}
