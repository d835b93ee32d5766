package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteClaudeSession writes a Claude Code JSONL session file into dir and
// returns its path. Events carry the cwd and a sidechain marker the way
// the real store does.
func WriteClaudeSession(t *testing.T, dir, sessionID, projectPath string, msgs []Msg) string {
	t.Helper()

	var lines []byte
	for i, m := range msgs {
		event := map[string]interface{}{
			"type":        m.Role,
			"sessionId":   sessionID,
			"cwd":         projectPath,
			"timestamp":   m.At.Format("2006-01-02T15:04:05.000Z"),
			"uuid":        fmt.Sprintf("%s-msg-%d", sessionID, i),
			"isSidechain": false,
		}
		if m.Role == "user" {
			event["message"] = map[string]interface{}{
				"role":    "user",
				"content": m.Content,
			}
		} else {
			event["message"] = map[string]interface{}{
				"role": "assistant",
				"content": []map[string]interface{}{
					{"type": "text", "text": m.Content},
				},
				"model": "claude-sonnet-4",
				"usage": map[string]int{"input_tokens": 10, "output_tokens": 20},
			}
		}
		line, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("Failed to marshal claude event: %v", err)
		}
		lines = append(lines, line...)
		lines = append(lines, '\n')
	}

	path := filepath.Join(dir, sessionID+".jsonl")
	WriteFile(t, path, lines)
	return path
}

// WriteClaudeSidechain writes a Claude subagent log that session listing
// must filter out.
func WriteClaudeSidechain(t *testing.T, dir, sessionID, projectPath string) string {
	t.Helper()
	event := map[string]interface{}{
		"type":        "user",
		"sessionId":   sessionID,
		"cwd":         projectPath,
		"timestamp":   BaseTime().Format("2006-01-02T15:04:05.000Z"),
		"uuid":        sessionID + "-side-0",
		"isSidechain": true,
		"message":     map[string]interface{}{"role": "user", "content": "subagent task"},
	}
	line, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal claude event: %v", err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	WriteFile(t, path, append(line, '\n'))
	return path
}

// WriteCodexSession writes a Codex rollout log under root's date
// hierarchy (root/YYYY/MM/DD/<sessionID>.jsonl) and returns its path.
// extraUserLines are injected verbatim as additional user response items,
// letting tests exercise instruction filtering.
func WriteCodexSession(t *testing.T, root, sessionID, projectPath string, msgs []Msg, extraUserLines ...string) string {
	t.Helper()

	at := BaseTime()
	if len(msgs) > 0 {
		at = msgs[0].At
	}

	var lines []byte
	appendEvent := func(event map[string]interface{}) {
		line, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("Failed to marshal codex event: %v", err)
		}
		lines = append(lines, line...)
		lines = append(lines, '\n')
	}

	appendEvent(map[string]interface{}{
		"type":      "session_meta",
		"timestamp": at.Format("2006-01-02T15:04:05.000Z"),
		"payload":   map[string]interface{}{"id": sessionID, "cwd": projectPath},
	})
	for _, extra := range extraUserLines {
		appendEvent(map[string]interface{}{
			"type":      "response_item",
			"timestamp": at.Format("2006-01-02T15:04:05.000Z"),
			"payload": map[string]interface{}{
				"type":    "message",
				"role":    "user",
				"content": []map[string]string{{"type": "input_text", "text": extra}},
			},
		})
	}
	for _, m := range msgs {
		contentType := "input_text"
		if m.Role == "assistant" {
			contentType = "output_text"
		}
		appendEvent(map[string]interface{}{
			"type":      "response_item",
			"timestamp": m.At.Format("2006-01-02T15:04:05.000Z"),
			"payload": map[string]interface{}{
				"type":    "message",
				"role":    m.Role,
				"content": []map[string]string{{"type": contentType, "text": m.Content}},
			},
		})
	}

	path := filepath.Join(root, at.Format("2006"), at.Format("01"), at.Format("02"), sessionID+".jsonl")
	WriteFile(t, path, lines)
	return path
}

// WriteGeminiSession writes a Gemini chat document under root's hashed
// project directory and returns its path. hashDir is the already-hashed
// directory name for the project.
func WriteGeminiSession(t *testing.T, root, hashDir, sessionID string, msgs []Msg) string {
	t.Helper()

	doc := map[string]interface{}{
		"sessionId":   sessionID,
		"projectHash": hashDir,
		"startTime":   BaseTime().Format("2006-01-02T15:04:05.000Z"),
	}
	var messages []map[string]interface{}
	for i, m := range msgs {
		role := "user"
		if m.Role == "assistant" {
			role = "gemini"
		}
		msg := map[string]interface{}{
			"id":        fmt.Sprintf("%s-msg-%d", sessionID, i),
			"timestamp": m.At.Format("2006-01-02T15:04:05.000Z"),
			"type":      role,
			"content":   m.Content,
		}
		if role == "gemini" {
			msg["model"] = "gemini-2.5-pro"
			msg["tokens"] = map[string]int{"input": 5, "output": 8}
		}
		messages = append(messages, msg)
	}
	doc["messages"] = messages

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal gemini session: %v", err)
	}
	path := filepath.Join(root, hashDir, "chats", "session-"+sessionID+".json")
	WriteFile(t, path, data)
	return path
}

// MustMkdirAll creates a directory tree or fails the test.
func MustMkdirAll(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory %s: %v", dir, err)
	}
}
