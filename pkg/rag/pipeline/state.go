package pipeline

import (
	"fmt"
	"strings"

	"finance-rag-be/pkg/rag/ragerr"
)

const (
	RoleUser      = "user"
	RoleContext   = "context"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionState is threaded through the stages of one run. Messages only grow.
type SessionState struct {
	Messages    []Message `json:"messages"`
	Query       string    `json:"query"`
	DocsPresent bool      `json:"docs_present"`
}

// Request is the pipeline entry. DocumentRef is a path the loader can read and
// is required when DocsPresent is set.
type Request struct {
	Query       string
	DocsPresent bool
	DocumentRef string
	SessionID   string
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is required", ragerr.ErrInvalidRequest)
	}
	if r.DocsPresent && strings.TrimSpace(r.DocumentRef) == "" {
		return fmt.Errorf("%w: document_ref is required when docs_present is true", ragerr.ErrInvalidRequest)
	}
	return nil
}

// NewSessionState seeds the transcript with the document reference, or an
// empty placeholder when no document was supplied.
func NewSessionState(req Request) SessionState {
	ref := ""
	if req.DocsPresent {
		ref = req.DocumentRef
	}
	return SessionState{
		Messages:    []Message{{Role: RoleUser, Content: ref}},
		Query:       req.Query,
		DocsPresent: req.DocsPresent,
	}
}

func (s *SessionState) Append(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

func (s SessionState) Last() Message {
	if len(s.Messages) == 0 {
		return Message{}
	}
	return s.Messages[len(s.Messages)-1]
}
