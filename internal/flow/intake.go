package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bcbklhi/escrow-express/internal/messaging"
	"github.com/bcbklhi/escrow-express/internal/models"
	"github.com/bcbklhi/escrow-express/internal/store"
)

// Intake runs the linear seven-field deal form. One session per user; a
// second trigger silently replaces the active session. Every answer is
// accepted verbatim.
type Intake struct {
	store store.Store
	msg   messaging.Service
	cfg   Config
}

// NewIntake creates a deal intake workflow.
func NewIntake(st store.Store, msg messaging.Service, cfg Config) *Intake {
	return &Intake{store: st, msg: msg, cfg: cfg}
}

// Begin starts a fresh intake session for the sender and shows the first
// field prompt.
func (i *Intake) Begin(ctx context.Context, resp models.Response) error {
	session := &models.Session{
		UserID: resp.From,
		Step:   0,
		Fields: make(map[string]string),
	}
	i.store.SaveSession(session)

	slog.Info("Intake session started", "userID", resp.From)
	if err := i.msg.SendMessage(ctx, resp.Chat, intakePrompts[0]); err != nil {
		slog.Error("Intake failed to send first prompt", "error", err, "userID", resp.From)
		return fmt.Errorf("failed to send intake prompt: %w", err)
	}
	return nil
}

// Submit stores the message as the answer to the current field. It returns
// handled=false when the sender has no active session (the message is simply
// not for this component). On the final field the session is converted into a
// pending Deal, announced to the group with the dual agree controls, and
// logged to the log channel.
func (i *Intake) Submit(ctx context.Context, resp models.Response) (bool, error) {
	session, ok := i.store.GetSession(resp.From)
	if !ok {
		return false, nil
	}

	session.Fields[models.IntakeFields[session.Step]] = resp.Body
	session.Step++
	slog.Debug("Intake field submitted", "userID", resp.From, "step", session.Step)

	if !session.Complete() {
		i.store.SaveSession(session)
		if err := i.msg.SendMessage(ctx, resp.Chat, intakePrompts[session.Step]); err != nil {
			slog.Error("Intake failed to send prompt", "error", err, "userID", resp.From, "step", session.Step)
			return true, fmt.Errorf("failed to send intake prompt: %w", err)
		}
		return true, nil
	}

	// All seven fields collected: the session becomes a pending deal.
	deal := i.store.CreateDeal(resp.Chat, session.Fields)
	i.store.DeleteSession(resp.From)
	slog.Info("Intake completed", "userID", resp.From, "dealID", deal.ID)

	if _, err := i.msg.SendButtons(ctx, i.cfg.GroupChat, dealAnnouncement(deal), agreeButtons(deal)); err != nil {
		// The deal exists either way; announcement delivery is not rolled back.
		slog.Error("Intake failed to announce deal", "error", err, "dealID", deal.ID)
	}
	if err := i.msg.SendMessage(ctx, i.cfg.LogChannel, fmt.Sprintf("🆕 New deal logged: %s", deal.ID)); err != nil {
		slog.Error("Intake failed to log deal", "error", err, "dealID", deal.ID)
	}
	return true, nil
}
