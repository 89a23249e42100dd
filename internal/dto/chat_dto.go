package dto

import (
	"time"

	"finance-rag-be/pkg/rag/reason"
	"finance-rag-be/pkg/vectorindex"
)

type ChatRequest struct {
	Query       string `json:"query" form:"query" validate:"required"`
	DocsPresent bool   `json:"docs_present" form:"docs_present"`
	DocumentRef string `json:"document_ref" form:"document_ref" validate:"required_if=DocsPresent true"`
	SessionID   string `json:"session_id" form:"session_id" validate:"omitempty,max=128"`
}

type ChatResponse struct {
	SessionID  string                  `json:"session_id"`
	Answer     string                  `json:"answer"`
	Route      string                  `json:"route"`
	Stages     []string                `json:"stages"`
	ToolCalls  []reason.ToolUse        `json:"tool_calls"`
	Fragments  int                     `json:"fragments"`
	Generation *vectorindex.Generation `json:"generation,omitempty"`
	DurationMs int64                   `json:"duration_ms"`
}

type IndexStatusResponse struct {
	Available  bool                    `json:"available"`
	Generation *vectorindex.Generation `json:"generation,omitempty"`
}

type IngestRequest struct {
	DocumentRef string `json:"document_ref" validate:"required"`
}

// WsMessage is the envelope of every frame the chat socket writes.
type WsMessage struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Error     any       `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	WsTypeAnswer        = "answer"
	WsTypeError         = "error"
	WsTypeIndexReplaced = "index_replaced"
)
