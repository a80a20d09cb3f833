package models

import "time"

// Chat represents a conversation container. It provides basic identification
// and labeling capabilities for organizing message threads; the title is
// generated asynchronously from the first user message.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}
