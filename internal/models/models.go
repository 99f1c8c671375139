// Package models defines the core data structures for Escrow Express.
//
// It includes the messaging boundary types (responses, callbacks, buttons) and
// the shared error taxonomy, which are used across modules.
package models

import "errors"

// Error variables for better error handling and testability
var (
	ErrDealNotFound    = errors.New("deal not found")
	ErrAlreadyAgreed   = errors.New("role already agreed")
	ErrAlreadyClaimed  = errors.New("deal already claimed")
	ErrNoActiveSession = errors.New("no active intake session")
	ErrUnauthorized    = errors.New("actor is not the owner")
	ErrServiceStopped  = errors.New("messaging service stopped")
	ErrInvalidToken    = errors.New("invalid callback token")
)

// Response represents an inbound text message from a user.
type Response struct {
	From     string `json:"from"`     // canonical sender identity
	Username string `json:"username"` // sender handle, without leading @
	Chat     string `json:"chat"`     // conversation the message arrived in
	Body     string `json:"body"`
	Private  bool   `json:"private"` // true for one-on-one conversations
	Time     int64  `json:"time"`
}

// Callback represents a button tap on a previously sent message.
type Callback struct {
	ID       string     `json:"id"`   // interaction reference for acknowledgement
	From     string     `json:"from"` // canonical actor identity
	Username string     `json:"username"`
	Data     string     `json:"data"` // opaque action token (see token.go)
	Message  MessageRef `json:"message"`
	Time     int64      `json:"time"`
}

// MessageRef identifies a previously sent message so it can be edited in place.
type MessageRef struct {
	Chat string `json:"chat"`
	ID   string `json:"id"`
}

// Button is a single tappable control. Buttons are arranged in rows.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"` // opaque action token delivered back via Callback
}

// Analytics holds the owner-facing aggregate deal counts.
type Analytics struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Claimed int `json:"claimed"`
}
