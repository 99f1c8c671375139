package models

import (
	"errors"
	"testing"
)

func TestParseToken_Agree(t *testing.T) {
	data := AgreeToken(RoleBuyer, "DEAL7")
	if data != "agree_buyer_DEAL7" {
		t.Fatalf("AgreeToken = %q, want agree_buyer_DEAL7", data)
	}

	token, err := ParseToken(data)
	if err != nil {
		t.Fatalf("ParseToken returned error: %v", err)
	}
	if token.Action != ActionAgree || token.Role != RoleBuyer || token.DealID != "DEAL7" {
		t.Errorf("ParseToken = %+v, want agree/buyer/DEAL7", token)
	}
}

func TestParseToken_Claim(t *testing.T) {
	data := ClaimToken("DEAL3")
	if data != "claim_DEAL3" {
		t.Fatalf("ClaimToken = %q, want claim_DEAL3", data)
	}

	token, err := ParseToken(data)
	if err != nil {
		t.Fatalf("ParseToken returned error: %v", err)
	}
	if token.Action != ActionClaim || token.DealID != "DEAL3" {
		t.Errorf("ParseToken = %+v, want claim/DEAL3", token)
	}
	if token.Role != "" {
		t.Errorf("claim token should carry no role, got %q", token.Role)
	}
}

func TestParseToken_Invalid(t *testing.T) {
	cases := []string{
		"",
		"agree",
		"agree_buyer",
		"agree_arbiter_DEAL1",
		"agree_buyer_",
		"claim_",
		"refund_DEAL1",
	}
	for _, data := range cases {
		if _, err := ParseToken(data); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ParseToken(%q) error = %v, want ErrInvalidToken", data, err)
		}
	}
}

func TestSessionComplete(t *testing.T) {
	s := &Session{UserID: "u1", Fields: make(map[string]string)}
	if s.Complete() {
		t.Error("empty session should not be complete")
	}
	s.Step = len(IntakeFields)
	if !s.Complete() {
		t.Error("session at final step should be complete")
	}
}

func TestDealClone_Isolation(t *testing.T) {
	deal := &Deal{
		ID:     "DEAL1",
		Data:   map[string]string{FieldAmount: "500"},
		Status: DealStatusPending,
		Agreed: map[Role]string{RoleBuyer: "b"},
	}

	clone := deal.Clone()
	clone.Data[FieldAmount] = "999"
	clone.Agreed[RoleSeller] = "s"

	if deal.Data[FieldAmount] != "500" {
		t.Error("mutating clone data leaked into original")
	}
	if _, ok := deal.Agreed[RoleSeller]; ok {
		t.Error("mutating clone agreed map leaked into original")
	}
}
