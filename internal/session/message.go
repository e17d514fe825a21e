// Package session keeps the ordered, bounded message history of each chat
// session in memory.
package session

import "time"

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one history entry. Messages are never modified after append,
// except that the system message at index 0 is replaced wholesale.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a copy of one session's state.
type Session struct {
	ID      string    `json:"id"`
	History []Message `json:"history"`
}
