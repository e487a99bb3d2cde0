package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatTurn is one entry of the history handed to the text model.
type ChatTurn struct {
	Role    Role
	Content string
}

// FallbackReply is shown instead of an error when the text model fails.
const FallbackReply = "Oof! Connection lost. Check your redstone! 🧨"

// HistoryLimit bounds the number of past messages sent with a prompt.
const HistoryLimit = 10

// EmptyReply is used when the text model succeeds but returns no text.
const EmptyReply = "Oof!"
