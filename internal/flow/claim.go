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

// Claimer performs the single-claim arbitration hand-off on confirmed deals.
type Claimer struct {
	store store.Store
	msg   messaging.Service
	cfg   Config
}

// NewClaimer creates an arbitration hand-off handler.
func NewClaimer(st store.Store, msg messaging.Service, cfg Config) *Claimer {
	return &Claimer{store: st, msg: msg, cfg: cfg}
}

// Claim applies a claim tap. The pending-to-claimed transition is a
// compare-and-set in the store, so a losing concurrent claimer gets a
// transient rejection and never overwrites the winner. On success the claim
// prompt is replaced in place, the venue is notified, and the buyer receives
// the payment instructions referencing the deal ID.
func (cl *Claimer) Claim(ctx context.Context, cb models.Callback, token models.Token) error {
	deal, err := cl.store.ClaimDeal(token.DealID, cb.Username)
	switch {
	case errors.Is(err, models.ErrDealNotFound):
		return cl.msg.AnswerCallback(ctx, cb, invalidDealMsg)
	case errors.Is(err, models.ErrAlreadyClaimed):
		return cl.msg.AnswerCallback(ctx, cb, alreadyClaimedMsg)
	case err != nil:
		return fmt.Errorf("claim deal %s: %w", token.DealID, err)
	}

	slog.Info("Claimer deal claimed", "dealID", deal.ID, "claimedBy", deal.ClaimedBy)

	if err := cl.msg.EditMessageText(ctx, cb.Message,
		fmt.Sprintf("🛡️ Deal %s claimed by @%s", deal.ID, deal.ClaimedBy)); err != nil {
		slog.Error("Claimer failed to replace claim prompt", "error", err, "dealID", deal.ID)
	}
	if err := cl.msg.SendMessage(ctx, cl.cfg.GroupChat,
		fmt.Sprintf("🛡️ Deal %s is now under admin monitoring by @%s", deal.ID, deal.ClaimedBy)); err != nil {
		slog.Error("Claimer failed to notify venue", "error", err, "dealID", deal.ID)
	}

	buyer := normalizeHandle(deal.Data[models.FieldBuyer])
	if err := cl.msg.SendMessage(ctx, buyer, paymentInstructions(deal.ID)); err != nil {
		slog.Error("Claimer failed to send payment instructions", "error", err, "dealID", deal.ID, "buyer", buyer)
	}
	return nil
}
