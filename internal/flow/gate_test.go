package flow

import (
	"context"
	"regexp"
	"testing"

	"github.com/bcbklhi/escrow-express/internal/messaging"
	"github.com/bcbklhi/escrow-express/internal/store"
	"github.com/bcbklhi/escrow-express/internal/testutil"
)

var codePattern = regexp.MustCompile(`\*(\d{4})\*`)

// challengeCode extracts the 4-digit code from the prompt sent to the user.
func challengeCode(t *testing.T, msg *testutil.MockService, userID string) string {
	t.Helper()
	prompt := msg.LastMessageTo(t, userID)
	match := codePattern.FindStringSubmatch(prompt.Body)
	if match == nil {
		t.Fatalf("challenge prompt has no code: %q", prompt.Body)
	}
	return match[1]
}

func newGateFixture() (*store.InMemoryStore, *testutil.MockService, *messaging.CaptureRegistry, *Gate) {
	st := store.NewInMemoryStore()
	msg := testutil.NewMockService()
	capture := messaging.NewCaptureRegistry()
	return st, msg, capture, NewGate(st, msg, capture)
}

func TestGate_ChallengesFirstPrivateContact(t *testing.T) {
	st, msg, capture, gate := newGateFixture()

	handled := gate.Intercept(context.Background(), testutil.PrivateResponse("alice", "/start"))
	if !handled {
		t.Fatal("first private contact must be held at the gate")
	}
	if !capture.IsPending("alice") {
		t.Error("answer capture not armed for alice")
	}
	if _, ok := st.TakeChallenge("alice"); !ok {
		t.Error("no challenge stored for alice")
	}
	msg.AssertLastMessageContains(t, "alice", "Captcha Verification")
}

func TestGate_GroupMessagesPassThrough(t *testing.T) {
	_, msg, _, gate := newGateFixture()

	handled := gate.Intercept(context.Background(),
		testutil.GroupResponse("alice", testutil.TestGroupChat, "hello"))
	if handled {
		t.Error("group messages must never be challenged")
	}
	if len(msg.Messages) != 0 {
		t.Errorf("unexpected sends: %+v", msg.Messages)
	}
}

func TestGate_CorrectAnswerVerifiesForLifetime(t *testing.T) {
	st, msg, capture, gate := newGateFixture()
	ctx := context.Background()

	gate.Intercept(ctx, testutil.PrivateResponse("alice", "/start"))
	code := challengeCode(t, msg, "alice")

	handled, err := capture.Consume(ctx, "alice", " "+code+" ", 0)
	if err != nil || !handled {
		t.Fatalf("Consume = (%v, %v), want (true, nil)", handled, err)
	}
	msg.AssertLastMessageContains(t, "alice", "verified")

	if !st.IsVerified("alice") {
		t.Fatal("alice not marked verified")
	}
	if gate.Intercept(ctx, testutil.PrivateResponse("alice", DealTrigger)) {
		t.Error("verified user was re-challenged")
	}
}

func TestGate_WrongAnswerRechallengesNextContact(t *testing.T) {
	st, msg, capture, gate := newGateFixture()
	ctx := context.Background()

	gate.Intercept(ctx, testutil.PrivateResponse("alice", "/start"))
	code := challengeCode(t, msg, "alice")

	if _, err := capture.Consume(ctx, "alice", code+"0", 0); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	msg.AssertLastMessageContains(t, "alice", "Incorrect captcha")

	if st.IsVerified("alice") {
		t.Error("wrong answer must not verify")
	}
	// The failed challenge is gone; the next contact starts a fresh one.
	if _, ok := st.TakeChallenge("alice"); ok {
		t.Error("stale challenge left behind")
	}
	if !gate.Intercept(ctx, testutil.PrivateResponse("alice", "/start")) {
		t.Error("unverified user must be re-challenged")
	}
}

func TestGate_ChallengesAreIndependentPerUser(t *testing.T) {
	st, msg, capture, gate := newGateFixture()
	ctx := context.Background()

	gate.Intercept(ctx, testutil.PrivateResponse("alice", "/start"))
	gate.Intercept(ctx, testutil.PrivateResponse("bob", "/start"))
	aliceCode := challengeCode(t, msg, "alice")
	bobCode := challengeCode(t, msg, "bob")
	if aliceCode == bobCode {
		t.Skip("codes collided")
	}

	// Bob answering with alice's code must not verify either of them.
	if _, err := capture.Consume(ctx, "bob", aliceCode, 0); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if st.IsVerified("bob") {
		t.Error("bob verified with alice's code")
	}
	if st.IsVerified("alice") {
		t.Error("alice verified by bob's answer")
	}
	if !capture.IsPending("alice") {
		t.Error("alice's capture consumed by bob's answer")
	}
}
