// Package session authenticates real-time clients against a static
// credential table.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an authenticated client connection.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ConnID    string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Gate tracks which connections have logged in.
type Gate struct {
	credentials map[string]string
	ttl         time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session // by token
	byConn   map[string]string   // conn id -> token
}

func NewGate(credentials map[string]string, ttl time.Duration) *Gate {
	return &Gate{
		credentials: credentials,
		ttl:         ttl,
		now:         time.Now,
		sessions:    make(map[string]*Session),
		byConn:      make(map[string]string),
	}
}

// Login checks the credentials and, on success, binds a fresh session to the
// connection. A second login on the same connection replaces the first.
func (g *Gate) Login(connID, username, password string) (*Session, bool) {
	expected, ok := g.credentials[username]
	if !ok || expected != password {
		return nil, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.byConn[connID]; ok {
		delete(g.sessions, old)
	}
	s := &Session{
		Token:     uuid.NewString(),
		Username:  username,
		ConnID:    connID,
		ExpiresAt: g.now().Add(g.ttl),
	}
	g.sessions[s.Token] = s
	g.byConn[connID] = s.Token
	return s, true
}

// Lookup returns the live session for token.
func (g *Gate) Lookup(token string) (*Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[token]
	if !ok {
		return nil, false
	}
	if !g.now().Before(s.ExpiresAt) {
		g.remove(s)
		return nil, false
	}
	return s, true
}

// Username returns the user logged in on a connection, if any.
func (g *Gate) Username(connID string) (string, bool) {
	g.mu.Lock()
	token, ok := g.byConn[connID]
	g.mu.Unlock()
	if !ok {
		return "", false
	}
	s, ok := g.Lookup(token)
	if !ok {
		return "", false
	}
	return s.Username, true
}

// Disconnect forgets the session bound to a connection.
func (g *Gate) Disconnect(connID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	token, ok := g.byConn[connID]
	if !ok {
		return "", false
	}
	s := g.sessions[token]
	delete(g.byConn, connID)
	delete(g.sessions, token)
	if s == nil {
		return "", false
	}
	return s.Username, true
}

// Len reports the number of tracked sessions.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *Gate) remove(s *Session) {
	delete(g.sessions, s.Token)
	if g.byConn[s.ConnID] == s.Token {
		delete(g.byConn, s.ConnID)
	}
}
