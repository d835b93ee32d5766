package internal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClaudeProvider reads Claude Code session logs. The store keeps one
// directory per working directory under ~/.claude/projects, holding one
// JSONL event stream per session.
type ClaudeProvider struct {
	root    string // defaults to ~/.claude/projects
	matcher PathMatcher
}

// NewClaudeProvider creates a Claude Code adapter.
func NewClaudeProvider(matcher PathMatcher) *ClaudeProvider {
	return &ClaudeProvider{matcher: matcher}
}

func (p *ClaudeProvider) Name() string    { return "claude" }
func (p *ClaudeProvider) Command() string { return "claude" }

func (p *ClaudeProvider) Installed() bool {
	return commandInstalled(p.Command())
}

func (p *ClaudeProvider) dataDir() (string, error) {
	if p.root != "" {
		return p.root, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude", "projects"), nil
}

// SessionDir returns the per-project store directory. Claude encodes the
// working directory by flattening every non-alphanumeric byte to '-'.
func (p *ClaudeProvider) SessionDir(projectPath string) (string, error) {
	dir, err := p.dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, encodeClaudePath(projectPath)), nil
}

func encodeClaudePath(path string) string {
	var b strings.Builder
	for _, r := range path {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func (p *ClaudeProvider) Sessions(projectPath string) ([]string, error) {
	dir, err := p.SessionDir(projectPath)
	if err != nil {
		return nil, &StoreError{Provider: p.Name(), Path: dir, Err: err}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StoreError{Provider: p.Name(), Path: dir, Err: err}
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !p.isMainSession(path) {
			continue
		}
		if !p.matchesProject(path, projectPath) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: path, mod: info.ModTime()})
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

func (p *ClaudeProvider) LatestSession(projectPath string) (string, error) {
	refs, err := p.Sessions(projectPath)
	if err != nil || len(refs) == 0 {
		return "", err
	}
	return refs[0], nil
}

func (p *ClaudeProvider) ParseSession(ref string) (*SessionRecord, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}
	defer f.Close()

	record := &SessionRecord{Provider: p.Name()}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	valid := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event claudeEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			LogDebug("claude: skipping unparseable line in %s: %v", ref, err)
			continue
		}
		valid++

		if record.SessionID == "" && event.SessionID != "" {
			record.SessionID = event.SessionID
		}
		if record.ProjectPath == "" && event.CWD != "" {
			record.ProjectPath = event.CWD
		}

		if event.Type != "user" && event.Type != "assistant" {
			continue
		}
		if msg, ok := p.parseMessage(event); ok {
			record.Messages = append(record.Messages, msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}
	if valid == 0 {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: fmt.Errorf("no parseable events")}
	}

	if record.SessionID == "" {
		record.SessionID = strings.TrimSuffix(filepath.Base(ref), ".jsonl")
	}
	record.finalize()
	return record, nil
}

func (p *ClaudeProvider) parseMessage(event claudeEvent) (Message, bool) {
	if event.Message == nil {
		return Message{}, false
	}

	content := event.Message.Content.text
	if content == "" {
		var parts []string
		for _, item := range event.Message.Content.items {
			if item.Type == "text" && item.Text != "" {
				parts = append(parts, item.Text)
			}
		}
		content = strings.Join(parts, "\n")
	}
	if content == "" {
		return Message{}, false
	}

	role := RoleAssistant
	if event.Type == "user" {
		role = RoleUser
		content = formatClaudeXML(content)
	}

	ts, err := time.Parse(time.RFC3339, event.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	meta := MessageMeta{Model: event.Message.Model}
	if u := event.Message.Usage; u != nil {
		meta.Tokens = &TokenUsage{Input: u.InputTokens, Output: u.OutputTokens, Cached: u.CacheReadInputTokens}
	}
	for _, item := range event.Message.Content.items {
		if item.Type == "tool_use" && item.Name != "" {
			meta.ToolCalls = append(meta.ToolCalls, item.Name)
		}
	}

	id := event.UUID
	if id == "" {
		id = uuid.NewString()
	}

	return Message{
		ID:        id,
		Role:      role,
		Timestamp: ts.UTC(),
		Content:   content,
		Meta:      meta,
	}, true
}

// formatClaudeXML rewrites Claude Code slash-command XML into the shape the
// official transcript export uses.
func formatClaudeXML(content string) string {
	if start := strings.Index(content, "<command-name>"); start >= 0 {
		rest := content[start+len("<command-name>"):]
		if end := strings.Index(rest, "</command-name>"); end >= 0 {
			cmd := strings.TrimSpace(rest[:end])
			// User text can legitimately contain the tag; only commands
			// starting with a slash get rewritten.
			if strings.HasPrefix(cmd, "/") {
				return "> " + cmd
			}
		}
	}

	if start := strings.Index(content, "<local-command-stdout>"); start >= 0 {
		rest := content[start+len("<local-command-stdout>"):]
		if end := strings.Index(rest, "</local-command-stdout>"); end >= 0 {
			return "> ⎿ " + strings.TrimSpace(rest[:end])
		}
	}

	return content
}

// matchesProject verifies the session's recorded cwd against the project.
// The directory encoding flattens every non-alphanumeric byte, so two
// different paths can land in the same store directory; the cwd in the
// events disambiguates. A session without a recorded cwd is accepted.
func (p *ClaudeProvider) matchesProject(path, projectPath string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for checked := 0; checked < 10 && scanner.Scan(); checked++ {
		var event claudeEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		if event.CWD != "" {
			return p.matcher.Match(event.CWD, projectPath)
		}
	}
	return true
}

// isMainSession reports whether a session file is a main session rather
// than a sidechain (subagent) log. Decided from the first 10 lines.
func (p *ClaudeProvider) isMainSession(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	checked := 0
	for scanner.Scan() && checked < 10 {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		checked++

		// Fast path before a full JSON parse.
		if strings.Contains(line, `"isSidechain":true`) {
			return false
		}
		if strings.Contains(line, `"isSidechain":false`) {
			return true
		}

		var event claudeEvent
		if err := json.Unmarshal([]byte(line), &event); err == nil {
			if event.IsSidechain != nil && *event.IsSidechain {
				return false
			}
		}
	}
	return true
}

// Claude Code JSONL event structures.
type claudeEvent struct {
	Type        string         `json:"type"`
	SessionID   string         `json:"sessionId"`
	CWD         string         `json:"cwd"`
	Timestamp   string         `json:"timestamp"`
	UUID        string         `json:"uuid"`
	IsSidechain *bool          `json:"isSidechain"`
	Message     *claudeMessage `json:"message"`
}

type claudeMessage struct {
	Role    string        `json:"role"`
	Content claudeContent `json:"content"`
	Model   string        `json:"model"`
	Usage   *claudeUsage  `json:"usage"`
}

// claudeContent is either a plain string or an array of typed items.
type claudeContent struct {
	text  string
	items []claudeContentItem
}

func (c *claudeContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.text)
	}
	return json.Unmarshal(data, &c.items)
}

type claudeContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Name string `json:"name"` // for tool_use
}

type claudeUsage struct {
	InputTokens          int `json:"input_tokens"`
	OutputTokens         int `json:"output_tokens"`
	CacheReadInputTokens int `json:"cache_read_input_tokens"`
}
