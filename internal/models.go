package internal

import (
	"sort"
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// TokenUsage holds per-message token counts reported by the vendor.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Cached int `json:"cached"`
}

// MessageMeta carries vendor-specific extras that survive normalization.
// Fields a vendor does not report stay zero and are omitted from output.
type MessageMeta struct {
	Model     string      `json:"model,omitempty"`
	Tokens    *TokenUsage `json:"tokens,omitempty"`
	ToolCalls []string    `json:"tool_calls,omitempty"`
	Thoughts  []string    `json:"thoughts,omitempty"`
}

// Message is one user or assistant turn in a normalized session.
type Message struct {
	ID        string      `json:"id,omitempty"`
	Seq       int         `json:"seq"`
	Role      Role        `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
	Content   string      `json:"content"`
	Meta      MessageMeta `json:"meta,omitempty"`
}

// SessionRecord is the canonical representation of one chat session,
// independent of which vendor produced it.
type SessionRecord struct {
	SessionID   string    `json:"session_id"`
	Provider    string    `json:"provider"`
	ProjectPath string    `json:"project_path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"` // zero while the session is open
	Messages    []Message `json:"messages"`
}

// Closed reports whether the session has been frozen.
func (s *SessionRecord) Closed() bool {
	return !s.EndedAt.IsZero()
}

// Title derives a display title from the first user message: its first
// line, truncated to 60 runes.
func (s *SessionRecord) Title() string {
	for _, m := range s.Messages {
		if m.Role != RoleUser {
			continue
		}
		line := m.Content
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > 60 {
			return string(runes[:60]) + "..."
		}
		return line
	}
	return "Untitled Session"
}

// TotalTokens sums input and output tokens across all messages.
func (s *SessionRecord) TotalTokens() int {
	total := 0
	for _, m := range s.Messages {
		if m.Meta.Tokens != nil {
			total += m.Meta.Tokens.Input + m.Meta.Tokens.Output
		}
	}
	return total
}

// finalize sorts messages by timestamp (stable, so vendor order breaks
// ties) and assigns strictly increasing sequence numbers. StartedAt falls
// back to the first message timestamp when the vendor did not report one.
func (s *SessionRecord) finalize() {
	sort.SliceStable(s.Messages, func(i, j int) bool {
		return s.Messages[i].Timestamp.Before(s.Messages[j].Timestamp)
	})
	for i := range s.Messages {
		s.Messages[i].Seq = i + 1
	}
	if s.StartedAt.IsZero() && len(s.Messages) > 0 {
		s.StartedAt = s.Messages[0].Timestamp
	}
}
