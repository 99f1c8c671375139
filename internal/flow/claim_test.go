package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/bcbklhi/escrow-express/internal/models"
	"github.com/bcbklhi/escrow-express/internal/store"
	"github.com/bcbklhi/escrow-express/internal/testutil"
)

func claimTap(from, dealID string, ref models.MessageRef) (models.Callback, models.Token) {
	cb := models.Callback{
		ID:       "cb-" + from,
		From:     from,
		Username: from,
		Data:     models.ClaimToken(dealID),
		Message:  ref,
	}
	token, _ := models.ParseToken(cb.Data)
	return cb, token
}

func TestClaim_Success(t *testing.T) {
	st, msg, confirmer, deal := newConfirmFixture(t)
	ref := msg.ButtonSends[0].Ref
	ctx := context.Background()

	for _, role := range []models.Role{models.RoleBuyer, models.RoleSeller} {
		cb, token := agreeTap(string(role)+"-user", role, deal.ID, ref)
		if err := confirmer.Confirm(ctx, cb, token); err != nil {
			t.Fatalf("Confirm(%s) returned error: %v", role, err)
		}
	}
	claimRef := msg.ButtonSends[len(msg.ButtonSends)-1].Ref

	claimer := NewClaimer(st, msg, testConfig())
	cb, token := claimTap("arbiter1", deal.ID, claimRef)
	if err := claimer.Claim(ctx, cb, token); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}

	stored, err := st.GetDeal(deal.ID)
	if err != nil {
		t.Fatalf("GetDeal returned error: %v", err)
	}
	if stored.Status != models.DealStatusClaimed || stored.ClaimedBy != "arbiter1" {
		t.Errorf("deal after claim = %+v, want claimed by arbiter1", stored)
	}

	// The claim prompt is replaced in place.
	if len(msg.TextEdits) != 1 {
		t.Fatalf("expected 1 in-place edit, got %d", len(msg.TextEdits))
	}
	if msg.TextEdits[0].Ref != claimRef || !strings.Contains(msg.TextEdits[0].Body, "claimed by @arbiter1") {
		t.Errorf("unexpected edit: %+v", msg.TextEdits[0])
	}

	msg.AssertLastMessageContains(t, testutil.TestGroupChat, "under admin monitoring by @arbiter1")

	// Buyer handle is normalized and receives the reference code.
	buyerMsg := msg.LastMessageTo(t, "@buyerY")
	if !strings.Contains(buyerMsg.Body, deal.ID) {
		t.Errorf("payment instructions missing deal ID: %q", buyerMsg.Body)
	}
}

func TestClaim_PreservesExistingHandleMarker(t *testing.T) {
	st := store.NewInMemoryStore()
	msg := testutil.NewMockService()
	data := map[string]string{models.FieldBuyer: "@already"}
	deal := st.CreateDeal("creator", data)

	claimer := NewClaimer(st, msg, testConfig())
	cb, token := claimTap("arbiter1", deal.ID, models.MessageRef{Chat: "owner1", ID: "m1"})
	if err := claimer.Claim(context.Background(), cb, token); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}

	if got := msg.LastMessageTo(t, "@already"); !strings.Contains(got.Body, deal.ID) {
		t.Errorf("buyer DM missing deal ID: %q", got.Body)
	}
	if len(msg.MessagesTo("@@already")) != 0 {
		t.Error("handle marker was doubled")
	}
}

func TestClaim_UnknownDeal(t *testing.T) {
	st := store.NewInMemoryStore()
	msg := testutil.NewMockService()
	claimer := NewClaimer(st, msg, testConfig())

	cb, token := claimTap("arbiter1", "DEAL404", models.MessageRef{})
	if err := claimer.Claim(context.Background(), cb, token); err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}

	if len(msg.Answers) != 1 || !strings.Contains(msg.Answers[0].Body, "Invalid deal") {
		t.Errorf("expected invalid-deal answer, got %+v", msg.Answers)
	}
	if len(msg.TextEdits) != 0 || len(msg.Messages) != 0 {
		t.Error("unknown deal claim must mutate and send nothing")
	}
}

func TestClaim_SecondClaimerRejected(t *testing.T) {
	st := store.NewInMemoryStore()
	msg := testutil.NewMockService()
	deal := st.CreateDeal("creator", map[string]string{models.FieldBuyer: "buyerY"})

	claimer := NewClaimer(st, msg, testConfig())
	ctx := context.Background()
	ref := models.MessageRef{Chat: "owner1", ID: "m1"}

	cb1, token1 := claimTap("arbiter1", deal.ID, ref)
	if err := claimer.Claim(ctx, cb1, token1); err != nil {
		t.Fatalf("first Claim returned error: %v", err)
	}

	cb2, token2 := claimTap("arbiter2", deal.ID, ref)
	if err := claimer.Claim(ctx, cb2, token2); err != nil {
		t.Fatalf("second Claim returned error: %v", err)
	}

	last := msg.Answers[len(msg.Answers)-1]
	if last.To != "arbiter2" || !strings.Contains(last.Body, "Already claimed") {
		t.Errorf("expected already-claimed answer to arbiter2, got %+v", last)
	}

	stored, err := st.GetDeal(deal.ID)
	if err != nil {
		t.Fatalf("GetDeal returned error: %v", err)
	}
	if stored.ClaimedBy != "arbiter1" {
		t.Errorf("ClaimedBy = %q, want arbiter1", stored.ClaimedBy)
	}
}
