package models

import "time"

// Role represents the role of a message participant.
type Role string

const (
	// RoleSystem represents the instruction message prepended to a conversation.
	RoleSystem Role = "system"
	// RoleUser represents a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a reply produced by the language model.
	RoleAssistant Role = "assistant"
)

// Message represents an individual communication entry within a conversation.
// Messages are immutable once created; the sequence they belong to is only
// ever appended to or discarded wholesale.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// IsError marks an assistant entry that stands in for a failed exchange.
	// The user's own message is never rolled back; this entry is appended
	// after it instead.
	IsError bool `json:"isError,omitempty"`
}

// Usage reports the token accounting of a single completion as returned by
// the provider.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Completion is the full reply from a language model provider for one chat
// request.
type Completion struct {
	Content string
	Model   string
	Usage   Usage
}
