// Package session stores the logged-in admin's session token in a single
// well-known slot of an injectable Storage.
//
// The token is base64-encoded JSON and carries no signature. It gates local
// UI and CLI state only; nothing server-side trusts it.
package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// SlotName is the storage key holding the session token.
const SlotName = "admin_session"

// token is the serialized form written to the slot.
type token struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	IssuedAt int64  `json:"issuedAt"` // unix milliseconds
}

// Current is the identity recovered from a valid session token.
type Current struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}

// Store issues, reads and clears the session token.
type Store struct {
	storage Storage
	now     func() time.Time
}

// New returns a Store over storage.
func New(storage Storage) *Store {
	return &Store{storage: storage, now: time.Now}
}

// Issue writes a fresh token for the admin, replacing any previous one.
func (s *Store) Issue(userID, email string) error {
	b, err := json.Marshal(token{
		UserID:   userID,
		Email:    email,
		IssuedAt: s.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.storage.Set(SlotName, base64.StdEncoding.EncodeToString(b)); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Clear removes the token. It is a no-op when no session exists.
func (s *Store) Clear() error {
	return s.storage.Clear(SlotName)
}

// Read returns the current session, or nil when there is none. A slot that
// cannot be read, decoded or parsed counts as no session.
func (s *Store) Read() *Current {
	raw, ok, err := s.storage.Get(SlotName)
	if err != nil || !ok || raw == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var t token
	if err := json.Unmarshal(b, &t); err != nil {
		return nil
	}
	if t.UserID == "" || t.Email == "" {
		return nil
	}
	return &Current{
		UserID:   t.UserID,
		Email:    t.Email,
		IssuedAt: time.UnixMilli(t.IssuedAt).UTC(),
	}
}

// IsActive reports whether Read would return a session.
func (s *Store) IsActive() bool {
	return s.Read() != nil
}
