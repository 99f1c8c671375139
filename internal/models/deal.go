package models

// DealStatus tracks a deal through its lifecycle.
type DealStatus string

const (
	// DealStatusPending is the initial status of every created deal.
	DealStatusPending DealStatus = "pending"
	// DealStatusClaimed is set exactly once when an arbiter claims the deal.
	DealStatusClaimed DealStatus = "claimed"
)

// Role identifies a deal counterparty.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// IsValidRole checks if the given role is one of the two counterparties.
func IsValidRole(r Role) bool {
	return r == RoleBuyer || r == RoleSeller
}

// Intake field names, in submission order. The prompts in flow.Intake follow
// the same order.
const (
	FieldDealOf      = "dealOf"
	FieldAmount      = "amount"
	FieldTime        = "time"
	FieldReleaseWhen = "releaseWhen"
	FieldBank        = "bank"
	FieldSeller      = "seller"
	FieldBuyer       = "buyer"
)

// IntakeFields is the fixed ordered field sequence collected during intake.
var IntakeFields = []string{
	FieldDealOf,
	FieldAmount,
	FieldTime,
	FieldReleaseWhen,
	FieldBank,
	FieldSeller,
	FieldBuyer,
}

// Session is the in-progress per-user intake state. Step is a cursor into
// IntakeFields; Fields holds the answers for indices below Step.
type Session struct {
	UserID string            `json:"user_id"`
	Step   int               `json:"step"`
	Fields map[string]string `json:"fields"`
}

// Complete reports whether every intake field has been collected.
func (s *Session) Complete() bool {
	return s.Step >= len(IntakeFields)
}

// Deal is a finalized escrow negotiation record.
//
// Data and ID are immutable after creation. Agreed is populated at most once
// per role; ClaimedBy is set exactly once by the claim transition. CreatorID
// is the conversational identity that ran the intake and is used as the
// buyer-side broadcast recipient.
type Deal struct {
	ID        string            `json:"id"`
	Data      map[string]string `json:"data"`
	Status    DealStatus        `json:"status"`
	Agreed    map[Role]string   `json:"agreed"`
	ClaimedBy string            `json:"claimed_by,omitempty"`
	CreatorID string            `json:"creator_id"`
}

// Clone returns a deep copy so callers never hold references into store-owned
// maps.
func (d *Deal) Clone() Deal {
	out := *d
	out.Data = make(map[string]string, len(d.Data))
	for k, v := range d.Data {
		out.Data[k] = v
	}
	out.Agreed = make(map[Role]string, len(d.Agreed))
	for k, v := range d.Agreed {
		out.Agreed[k] = v
	}
	return out
}
