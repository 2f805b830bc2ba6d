package response

import (
	"time"

	"github.com/mcoot/tlschat/internal/chat"
	"github.com/mcoot/tlschat/internal/model"
)

// Health is the health check response
type Health struct {
	Status string `json:"status"`
}

// Session represents a connected chat session
type Session struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Login       string    `json:"login"`
	PeerAddr    string    `json:"peer_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

// SessionFromConn converts a registered connection
func SessionFromConn(c *chat.Conn) Session {
	return Session{
		ID:          c.ID(),
		DisplayName: c.DisplayName(),
		Login:       c.Login(),
		PeerAddr:    c.PeerAddr(),
		ConnectedAt: c.ConnectedAt(),
	}
}

// SessionList is the response for listing sessions
type SessionList struct {
	Count    int       `json:"count"`
	Sessions []Session `json:"sessions"`
}

// SessionListFromConns converts a registry snapshot
func SessionListFromConns(conns []*chat.Conn) SessionList {
	sessions := make([]Session, 0, len(conns))
	for _, c := range conns {
		sessions = append(sessions, SessionFromConn(c))
	}
	return SessionList{
		Count:    len(sessions),
		Sessions: sessions,
	}
}

// Account represents an account without its credentials
type Account struct {
	Login       string    `json:"login"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccountFromModel converts a model.Account
func AccountFromModel(a *model.Account) Account {
	return Account{
		Login:       a.Login,
		DisplayName: a.DisplayName,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
