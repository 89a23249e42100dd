package store

import (
	"time"

	"finance-rag-be/pkg/rag/reason"
)

// Turn is one question answered (or refused) within a chat session.
type Turn struct {
	Query     string           `json:"query"`
	Document  string           `json:"document,omitempty"`
	Route     string           `json:"route"`
	Stages    []string         `json:"stages"`
	Answer    string           `json:"answer,omitempty"`
	ToolCalls []reason.ToolUse `json:"tool_calls,omitempty"`
	Error     string           `json:"error,omitempty"`
	FailedAt  string           `json:"failed_stage,omitempty"`
	At        time.Time        `json:"at"`
}

// Session is the transcript kept in memory for a chat session ID.
type Session struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy whose Turns slice can be modified freely.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Turns = append([]Turn(nil), s.Turns...)
	return &c
}
