// Package flow implements the escrow deal lifecycle: the verification gate,
// the multi-step deal intake, the two-party confirmation protocol, the
// arbiter claim hand-off and the owner-only admin queries.
//
// Every component takes its dependencies (store, messaging service, config)
// explicitly; nothing here holds ambient global state.
package flow

// Config holds the static identities the flows deliver to.
type Config struct {
	// OwnerID is the single privileged identity. It receives claim prompts
	// and may run /broadcast and /analytics.
	OwnerID string
	// GroupChat is the shared venue where deals are announced and confirmed.
	GroupChat string
	// LogChannel receives terse log entries for created deals.
	LogChannel string
}
