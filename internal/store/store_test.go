package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bcbklhi/escrow-express/internal/models"
)

func sampleData() map[string]string {
	return map[string]string{
		models.FieldDealOf:      "Game account",
		models.FieldAmount:      "500",
		models.FieldTime:        "2 days",
		models.FieldReleaseWhen: "on delivery",
		models.FieldBank:        "HDFC",
		models.FieldSeller:      "sellerX",
		models.FieldBuyer:       "buyerY",
	}
}

func TestCreateDeal_AssignsSequentialIDs(t *testing.T) {
	st := NewInMemoryStore()

	for i := 1; i <= 3; i++ {
		deal := st.CreateDeal("creator", sampleData())
		want := fmt.Sprintf("DEAL%d", i)
		if deal.ID != want {
			t.Errorf("deal %d: ID = %q, want %q", i, deal.ID, want)
		}
		if deal.Status != models.DealStatusPending {
			t.Errorf("deal %d: status = %q, want pending", i, deal.Status)
		}
	}
}

func TestCreateDeal_SnapshotsData(t *testing.T) {
	st := NewInMemoryStore()
	data := sampleData()
	deal := st.CreateDeal("creator", data)

	// Mutating the caller's map must not reach the stored deal.
	data[models.FieldAmount] = "mutated"

	stored, err := st.GetDeal(deal.ID)
	if err != nil {
		t.Fatalf("GetDeal returned error: %v", err)
	}
	if stored.Data[models.FieldAmount] != "500" {
		t.Errorf("stored amount = %q, want 500", stored.Data[models.FieldAmount])
	}
}

func TestGetDeal_NotFound(t *testing.T) {
	st := NewInMemoryStore()
	if _, err := st.GetDeal("DEAL99"); !errors.Is(err, models.ErrDealNotFound) {
		t.Errorf("GetDeal error = %v, want ErrDealNotFound", err)
	}
}

func TestConfirmRole_Idempotent(t *testing.T) {
	st := NewInMemoryStore()
	deal := st.CreateDeal("creator", sampleData())

	both, err := st.ConfirmRole(deal.ID, models.RoleBuyer, "alice")
	if err != nil {
		t.Fatalf("first confirm returned error: %v", err)
	}
	if both {
		t.Error("single confirmation should not report bothAgreed")
	}

	// Second buyer confirm is rejected and never overwrites.
	if _, err := st.ConfirmRole(deal.ID, models.RoleBuyer, "mallory"); !errors.Is(err, models.ErrAlreadyAgreed) {
		t.Errorf("duplicate confirm error = %v, want ErrAlreadyAgreed", err)
	}

	stored, err := st.GetDeal(deal.ID)
	if err != nil {
		t.Fatalf("GetDeal returned error: %v", err)
	}
	if stored.Agreed[models.RoleBuyer] != "alice" {
		t.Errorf("agreed[buyer] = %q, want alice", stored.Agreed[models.RoleBuyer])
	}
}

func TestConfirmRole_DualTriggerFiresOnce(t *testing.T) {
	orders := [][2]models.Role{
		{models.RoleBuyer, models.RoleSeller},
		{models.RoleSeller, models.RoleBuyer},
	}
	for _, order := range orders {
		st := NewInMemoryStore()
		deal := st.CreateDeal("creator", sampleData())

		first, err := st.ConfirmRole(deal.ID, order[0], "first")
		if err != nil {
			t.Fatalf("order %v: first confirm error: %v", order, err)
		}
		second, err := st.ConfirmRole(deal.ID, order[1], "second")
		if err != nil {
			t.Fatalf("order %v: second confirm error: %v", order, err)
		}

		if first {
			t.Errorf("order %v: trigger fired on first confirm", order)
		}
		if !second {
			t.Errorf("order %v: trigger did not fire on completing confirm", order)
		}

		// Any further attempt is rejected before it could re-trigger.
		if _, err := st.ConfirmRole(deal.ID, order[1], "again"); !errors.Is(err, models.ErrAlreadyAgreed) {
			t.Errorf("order %v: post-completion confirm error = %v, want ErrAlreadyAgreed", order, err)
		}
	}
}

func TestConfirmRole_UnknownDeal(t *testing.T) {
	st := NewInMemoryStore()
	if _, err := st.ConfirmRole("DEAL404", models.RoleBuyer, "alice"); !errors.Is(err, models.ErrDealNotFound) {
		t.Errorf("ConfirmRole error = %v, want ErrDealNotFound", err)
	}
}

func TestClaimDeal_CompareAndSet(t *testing.T) {
	st := NewInMemoryStore()
	deal := st.CreateDeal("creator", sampleData())

	claimed, err := st.ClaimDeal(deal.ID, "arbiter1")
	if err != nil {
		t.Fatalf("first claim returned error: %v", err)
	}
	if claimed.Status != models.DealStatusClaimed || claimed.ClaimedBy != "arbiter1" {
		t.Errorf("claimed deal = %+v, want claimed by arbiter1", claimed)
	}

	if _, err := st.ClaimDeal(deal.ID, "arbiter2"); !errors.Is(err, models.ErrAlreadyClaimed) {
		t.Errorf("second claim error = %v, want ErrAlreadyClaimed", err)
	}

	stored, err := st.GetDeal(deal.ID)
	if err != nil {
		t.Fatalf("GetDeal returned error: %v", err)
	}
	if stored.ClaimedBy != "arbiter1" {
		t.Errorf("ClaimedBy = %q, losing claim overwrote the winner", stored.ClaimedBy)
	}
}

func TestClaimDeal_UnknownDealMutatesNothing(t *testing.T) {
	st := NewInMemoryStore()
	st.CreateDeal("creator", sampleData())

	if _, err := st.ClaimDeal("DEAL404", "arbiter"); !errors.Is(err, models.ErrDealNotFound) {
		t.Fatalf("ClaimDeal error = %v, want ErrDealNotFound", err)
	}

	stats := st.Analytics()
	if stats.Claimed != 0 || stats.Pending != 1 {
		t.Errorf("analytics after failed claim = %+v, want 1 pending 0 claimed", stats)
	}
}

func TestAnalytics(t *testing.T) {
	st := NewInMemoryStore()
	d1 := st.CreateDeal("c1", sampleData())
	st.CreateDeal("c2", sampleData())
	st.CreateDeal("c3", sampleData())

	if _, err := st.ClaimDeal(d1.ID, "arbiter"); err != nil {
		t.Fatalf("ClaimDeal returned error: %v", err)
	}

	stats := st.Analytics()
	want := models.Analytics{Total: 3, Pending: 2, Claimed: 1}
	if stats != want {
		t.Errorf("Analytics = %+v, want %+v", stats, want)
	}
}

func TestSessions_LastTriggerWins(t *testing.T) {
	st := NewInMemoryStore()

	st.SaveSession(&models.Session{UserID: "u1", Step: 3, Fields: map[string]string{"dealOf": "old"}})
	st.SaveSession(&models.Session{UserID: "u1", Step: 0, Fields: map[string]string{}})

	sess, ok := st.GetSession("u1")
	if !ok {
		t.Fatal("expected active session")
	}
	if sess.Step != 0 || len(sess.Fields) != 0 {
		t.Errorf("second save did not replace session: %+v", sess)
	}

	st.DeleteSession("u1")
	if _, ok := st.GetSession("u1"); ok {
		t.Error("session should be gone after delete")
	}
}

func TestChallenges_TakeDeletes(t *testing.T) {
	st := NewInMemoryStore()

	st.SetChallenge("u1", "4821")
	code, ok := st.TakeChallenge("u1")
	if !ok || code != "4821" {
		t.Fatalf("TakeChallenge = %q, %v; want 4821, true", code, ok)
	}
	if _, ok := st.TakeChallenge("u1"); ok {
		t.Error("challenge should be consumed on first take")
	}
}

func TestVerifiedFlag(t *testing.T) {
	st := NewInMemoryStore()

	if st.IsVerified("u1") {
		t.Error("fresh user should not be verified")
	}
	st.MarkVerified("u1")
	if !st.IsVerified("u1") {
		t.Error("user should be verified after MarkVerified")
	}
}
