package domain

import (
	"strings"
)

// Session is created at login and discarded at logout. It is never mutated.
type Session struct {
	Org     string
	Token   string
	StoreID string
}

// NewSession validates and creates a session
func NewSession(org, token string) (*Session, error) {
	org = strings.TrimSpace(org)
	if org == "" {
		return nil, ErrMissingOrg
	}
	if token == "" {
		return nil, ErrAuthFailed
	}
	return &Session{Org: org, Token: token}, nil
}

// WithStore returns a copy of the session scoped to a store
func (s Session) WithStore(storeID string) *Session {
	s.StoreID = strings.TrimSpace(storeID)
	return &s
}
