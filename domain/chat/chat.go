// Package chat contains core concepts of the team messaging system.
// This file defines chats and their membership invariants.
// No runtime, network, or UI logic should be added here.
package chat

import (
	"time"

	"github.com/samber/lo"
)

type ChatID string

type ChatType string

const (
	TypeDirect       ChatType = "direct"
	TypeGroup        ChatType = "group"
	TypeAnnouncement ChatType = "announcement"
)

// Chat is a conversation with a fixed participant set.
// Membership is the authority consulted before any join or publish.
type Chat struct {
	ID           ChatID    `json:"id"`
	Name         string    `json:"name"`
	Type         ChatType  `json:"type"`
	Participants []string  `json:"participants"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (c Chat) IsParticipant(userID string) bool {
	return lo.Contains(c.Participants, userID)
}
