// Package store provides the in-memory state backend for Escrow Express.
//
// It owns every Session, Deal and verification challenge for the process
// lifetime. All state is volatile: nothing survives a restart by design.
package store

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bcbklhi/escrow-express/internal/models"
)

// Store defines the state operations the flow components depend on. Deal
// mutations that carry cross-record invariants (dual-confirmation trigger,
// single claim) are expressed as atomic operations so the invariant check and
// the write happen under one lock.
type Store interface {
	// Intake sessions, keyed by user identity.
	SaveSession(s *models.Session)
	GetSession(userID string) (*models.Session, bool)
	DeleteSession(userID string)

	// Deals, keyed by assigned deal ID.
	CreateDeal(creatorID string, data map[string]string) models.Deal
	GetDeal(dealID string) (models.Deal, error)
	ListDeals() []models.Deal
	ConfirmRole(dealID string, role models.Role, username string) (bothAgreed bool, err error)
	ClaimDeal(dealID string, username string) (models.Deal, error)
	Analytics() models.Analytics

	// Verification challenges and the per-user verified flag.
	SetChallenge(userID string, code string)
	TakeChallenge(userID string) (code string, ok bool)
	MarkVerified(userID string)
	IsVerified(userID string) bool
}

// InMemoryStore is the reference Store implementation: plain maps guarded by
// a single RWMutex. A mutex-per-record scheme is unnecessary at this scale;
// every operation is a handful of map accesses.
type InMemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*models.Session
	deals      map[string]*models.Deal
	challenges map[string]string
	verified   map[string]struct{}
	dealCount  int
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:   make(map[string]*models.Session),
		deals:      make(map[string]*models.Deal),
		challenges: make(map[string]string),
		verified:   make(map[string]struct{}),
	}
}

// SaveSession inserts or replaces the intake session for its user. A second
// "start deal" trigger while a session is active lands here and silently
// replaces the old one (last trigger wins).
func (s *InMemoryStore) SaveSession(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
	slog.Debug("Store session saved", "userID", sess.UserID, "step", sess.Step)
}

// GetSession returns the active intake session for a user, if any.
func (s *InMemoryStore) GetSession(userID string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// DeleteSession removes the intake session for a user.
func (s *InMemoryStore) DeleteSession(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	slog.Debug("Store session deleted", "userID", userID)
}

// CreateDeal assigns the next deal ID from the global counter and inserts a
// pending deal snapshotting the given field data. The returned copy is safe
// for the caller to keep.
func (s *InMemoryStore) CreateDeal(creatorID string, data map[string]string) models.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dealCount++
	deal := &models.Deal{
		ID:        fmt.Sprintf("DEAL%d", s.dealCount),
		Data:      make(map[string]string, len(data)),
		Status:    models.DealStatusPending,
		Agreed:    make(map[models.Role]string),
		CreatorID: creatorID,
	}
	for k, v := range data {
		deal.Data[k] = v
	}
	s.deals[deal.ID] = deal

	slog.Info("Store deal created", "dealID", deal.ID, "creatorID", creatorID)
	return deal.Clone()
}

// GetDeal returns a copy of the deal, or ErrDealNotFound.
func (s *InMemoryStore) GetDeal(dealID string) (models.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deal, ok := s.deals[dealID]
	if !ok {
		return models.Deal{}, models.ErrDealNotFound
	}
	return deal.Clone(), nil
}

// ListDeals returns copies of all finalized deals.
func (s *InMemoryStore) ListDeals() []models.Deal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Deal, 0, len(s.deals))
	for _, deal := range s.deals {
		out = append(out, deal.Clone())
	}
	return out
}

// ConfirmRole records a counterparty's acceptance. Each role is set at most
// once; a repeat returns ErrAlreadyAgreed and mutates nothing. bothAgreed is
// true only on the exact call that completes the pair, so the caller's
// dual-confirmation trigger fires once per deal.
func (s *InMemoryStore) ConfirmRole(dealID string, role models.Role, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deal, ok := s.deals[dealID]
	if !ok {
		slog.Debug("Store ConfirmRole unknown deal", "dealID", dealID, "role", role)
		return false, models.ErrDealNotFound
	}
	if _, done := deal.Agreed[role]; done {
		slog.Debug("Store ConfirmRole duplicate", "dealID", dealID, "role", role)
		return false, models.ErrAlreadyAgreed
	}

	deal.Agreed[role] = username
	_, buyerOK := deal.Agreed[models.RoleBuyer]
	_, sellerOK := deal.Agreed[models.RoleSeller]

	slog.Info("Store role confirmed", "dealID", dealID, "role", role, "username", username, "bothAgreed", buyerOK && sellerOK)
	return buyerOK && sellerOK, nil
}

// ClaimDeal transitions a deal from pending to claimed in one critical
// section. A losing concurrent claimer gets ErrAlreadyClaimed and ClaimedBy
// is never overwritten.
func (s *InMemoryStore) ClaimDeal(dealID string, username string) (models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deal, ok := s.deals[dealID]
	if !ok {
		slog.Debug("Store ClaimDeal unknown deal", "dealID", dealID)
		return models.Deal{}, models.ErrDealNotFound
	}
	if deal.Status == models.DealStatusClaimed {
		slog.Debug("Store ClaimDeal already claimed", "dealID", dealID, "claimedBy", deal.ClaimedBy)
		return models.Deal{}, models.ErrAlreadyClaimed
	}

	deal.Status = models.DealStatusClaimed
	deal.ClaimedBy = username

	slog.Info("Store deal claimed", "dealID", dealID, "claimedBy", username)
	return deal.Clone(), nil
}

// Analytics returns deal counts. Total comes from the counter, so it reflects
// every deal ever created even if a future revision prunes records.
func (s *InMemoryStore) Analytics() models.Analytics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := models.Analytics{Total: s.dealCount}
	for _, deal := range s.deals {
		switch deal.Status {
		case models.DealStatusPending:
			a.Pending++
		case models.DealStatusClaimed:
			a.Claimed++
		}
	}
	return a
}

// SetChallenge stores the pending 4-digit code for a user. At most one live
// challenge per user; a new one replaces the old.
func (s *InMemoryStore) SetChallenge(userID string, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[userID] = code
	slog.Debug("Store challenge set", "userID", userID)
}

// TakeChallenge returns and deletes the pending code for a user. The
// challenge is consumed on first response regardless of outcome.
func (s *InMemoryStore) TakeChallenge(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.challenges[userID]
	if ok {
		delete(s.challenges, userID)
	}
	return code, ok
}

// MarkVerified records that the user passed the verification gate.
func (s *InMemoryStore) MarkVerified(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[userID] = struct{}{}
	slog.Debug("Store user verified", "userID", userID)
}

// IsVerified reports whether the user has passed the gate.
func (s *InMemoryStore) IsVerified(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.verified[userID]
	return ok
}
