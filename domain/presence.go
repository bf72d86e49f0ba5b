// Package domain holds concepts shared across chats: presence and roles.
package domain

import "time"

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	}
	return false
}

// PresenceState spans the authenticated session: it is mutated by
// explicit user action or by disconnect, never persisted.
type PresenceState struct {
	UserID   string    `json:"userId"`
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// CanBroadcast tells whether a role may issue a global broadcast.
func (r Role) CanBroadcast() bool {
	return r == RoleManager || r == RoleAdmin
}
