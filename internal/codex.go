package internal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodexProvider reads Codex CLI rollout logs. The store is organized by
// date (~/.codex/sessions/YYYY/MM/DD/*.jsonl) and mixes sessions from
// unrelated projects, so every file is probed for its working directory
// and attributed through the path-matching policy.
type CodexProvider struct {
	root    string // defaults to ~/.codex/sessions
	matcher PathMatcher
}

// NewCodexProvider creates a Codex CLI adapter.
func NewCodexProvider(matcher PathMatcher) *CodexProvider {
	return &CodexProvider{matcher: matcher}
}

func (p *CodexProvider) Name() string    { return "codex" }
func (p *CodexProvider) Command() string { return "codex" }

func (p *CodexProvider) Installed() bool {
	return commandInstalled(p.Command())
}

func (p *CodexProvider) dataDir() (string, error) {
	if p.root != "" {
		return p.root, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codex", "sessions"), nil
}

// SessionDir returns today's date directory, where a live session writes.
func (p *CodexProvider) SessionDir(projectPath string) (string, error) {
	dir, err := p.dataDir()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	return filepath.Join(dir, now.Format("2006"), now.Format("01"), now.Format("02")), nil
}

func (p *CodexProvider) Sessions(projectPath string) ([]string, error) {
	root, err := p.dataDir()
	if err != nil {
		return nil, &StoreError{Provider: p.Name(), Path: root, Err: err}
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StoreError{Provider: p.Name(), Path: root, Err: err}
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var candidates []candidate

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			LogDebug("codex: skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}
		if !p.probeProjectPath(path, projectPath) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		candidates = append(candidates, candidate{path: path, mod: info.ModTime()})
		return nil
	})
	if walkErr != nil {
		return nil, &StoreError{Provider: p.Name(), Path: root, Err: walkErr}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].mod.After(candidates[j].mod)
	})

	refs := make([]string, len(candidates))
	for i, c := range candidates {
		refs[i] = c.path
	}
	return refs, nil
}

// LatestSession only scans the last 7 day directories; the full recursive
// walk is too slow for the live capture loop.
func (p *CodexProvider) LatestSession(projectPath string) (string, error) {
	root, err := p.dataDir()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(root); err != nil {
		return "", nil
	}

	var best string
	var bestMod time.Time
	now := time.Now().UTC()
	for daysAgo := 0; daysAgo < 7; daysAgo++ {
		date := now.AddDate(0, 0, -daysAgo)
		dayDir := filepath.Join(root, date.Format("2006"), date.Format("01"), date.Format("02"))
		entries, err := os.ReadDir(dayDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
				continue
			}
			path := filepath.Join(dayDir, entry.Name())
			if !p.probeProjectPath(path, projectPath) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(bestMod) {
				best = path
				bestMod = info.ModTime()
			}
		}
	}
	return best, nil
}

// probeProjectPath scans the first 50 lines for a cwd (session_meta is
// usually first) and applies the attribution policy. One definite
// non-matching cwd ends the probe early.
func (p *CodexProvider) probeProjectPath(path, projectPath string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for checked := 0; checked < 50 && scanner.Scan(); checked++ {
		var event codexEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		if event.Payload != nil && event.Payload.CWD != "" {
			return p.matcher.Match(event.Payload.CWD, projectPath)
		}
	}
	return false
}

func (p *CodexProvider) ParseSession(ref string) (*SessionRecord, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}
	defer f.Close()

	record := &SessionRecord{
		Provider:  p.Name(),
		SessionID: strings.TrimSuffix(filepath.Base(ref), ".jsonl"),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	valid := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event codexEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			LogDebug("codex: skipping unparseable line in %s: %v", ref, err)
			continue
		}
		valid++

		switch event.Type {
		case "session_meta", "turn_context":
			if event.Payload != nil && event.Payload.CWD != "" {
				record.ProjectPath = event.Payload.CWD
			}
		case "response_item":
			if event.Payload == nil {
				continue
			}
			msg, ok := p.parseResponseItem(event.Payload, event.Timestamp)
			if !ok {
				continue
			}
			// Codex occasionally logs the same turn twice in a row.
			if n := len(record.Messages); n > 0 {
				last := record.Messages[n-1]
				if last.Role == msg.Role && last.Content == msg.Content {
					continue
				}
			}
			record.Messages = append(record.Messages, msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}
	if valid == 0 {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: fmt.Errorf("no parseable events")}
	}

	record.finalize()
	return record, nil
}

func (p *CodexProvider) parseResponseItem(payload *codexPayload, timestamp string) (Message, bool) {
	var role Role
	switch payload.Role {
	case "user":
		role = RoleUser
	case "assistant":
		role = RoleAssistant
	default:
		return Message{}, false
	}

	content := ""
	for _, item := range payload.Content {
		if item.Text != "" {
			content = item.Text
			break
		}
	}
	if content == "" {
		return Message{}, false
	}

	// Codex logs system injections as user messages; they are not part of
	// the conversation.
	if role == RoleUser {
		if strings.Contains(content, "<environment_context>") ||
			strings.Contains(content, "<INSTRUCTIONS>") ||
			strings.Contains(content, "# AGENTS.md instructions") {
			return Message{}, false
		}
	}

	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Timestamp: ts.UTC(),
		Content:   content,
	}, true
}

// Codex JSONL event structures.
type codexEvent struct {
	Type      string        `json:"type"`
	Timestamp string        `json:"timestamp"`
	Payload   *codexPayload `json:"payload"`
}

type codexPayload struct {
	Role    string         `json:"role"`
	CWD     string         `json:"cwd"`
	Content []codexContent `json:"content"`
}

type codexContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
