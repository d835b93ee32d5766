package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// GeminiProvider reads Gemini CLI chat logs. Sessions live under
// ~/.gemini/tmp/<sha256(project)>/chats as one JSON document per session,
// so the store is project-scoped by construction.
type GeminiProvider struct {
	root    string // defaults to ~/.gemini/tmp
	matcher PathMatcher
}

// NewGeminiProvider creates a Gemini CLI adapter.
func NewGeminiProvider(matcher PathMatcher) *GeminiProvider {
	return &GeminiProvider{matcher: matcher}
}

func (p *GeminiProvider) Name() string    { return "gemini" }
func (p *GeminiProvider) Command() string { return "gemini" }

// Installed falls back on the data directory: the gemini binary is often
// run through npx and absent from PATH.
func (p *GeminiProvider) Installed() bool {
	if commandInstalled(p.Command()) {
		return true
	}
	dir, err := p.dataDir()
	if err != nil {
		return false
	}
	_, err = os.Stat(dir)
	return err == nil
}

func (p *GeminiProvider) dataDir() (string, error) {
	if p.root != "" {
		return p.root, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gemini", "tmp"), nil
}

// SessionDir hashes the project path the way the Gemini CLI does.
func (p *GeminiProvider) SessionDir(projectPath string) (string, error) {
	dir, err := p.dataDir()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(projectPath))
	return filepath.Join(dir, hex.EncodeToString(sum[:]), "chats"), nil
}

func (p *GeminiProvider) Sessions(projectPath string) ([]string, error) {
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
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(dir, entry.Name()), mod: info.ModTime()})
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

func (p *GeminiProvider) LatestSession(projectPath string) (string, error) {
	refs, err := p.Sessions(projectPath)
	if err != nil || len(refs) == 0 {
		return "", err
	}
	return refs[0], nil
}

func (p *GeminiProvider) ParseSession(ref string) (*SessionRecord, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}

	var doc geminiSession
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}

	record := &SessionRecord{
		Provider:  p.Name(),
		SessionID: doc.SessionID,
	}
	if record.SessionID == "" {
		record.SessionID = strings.TrimSuffix(filepath.Base(ref), ".json")
	}
	if ts, err := time.Parse(time.RFC3339, doc.StartTime); err == nil {
		record.StartedAt = ts.UTC()
	}

	for _, m := range doc.Messages {
		if msg, ok := p.parseMessage(m); ok {
			record.Messages = append(record.Messages, msg)
		}
	}

	// The directory name is a hash of the project path and cannot be
	// decoded; the caller fills ProjectPath from its scan scope.
	record.finalize()
	return record, nil
}

func (p *GeminiProvider) parseMessage(m geminiMessage) (Message, bool) {
	var role Role
	switch m.Type {
	case "user":
		role = RoleUser
	case "gemini":
		role = RoleAssistant
	default:
		return Message{}, false
	}
	if m.Content == "" {
		return Message{}, false
	}

	ts, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	meta := MessageMeta{Model: m.Model}
	for _, t := range m.Thoughts {
		meta.Thoughts = append(meta.Thoughts, t.Subject+": "+t.Description)
	}
	if m.Tokens != nil {
		meta.Tokens = &TokenUsage{Input: m.Tokens.Input, Output: m.Tokens.Output, Cached: m.Tokens.Cached}
	}

	return Message{
		ID:        m.ID,
		Role:      role,
		Timestamp: ts.UTC(),
		Content:   m.Content,
		Meta:      meta,
	}, true
}

// Gemini JSON session structures.
type geminiSession struct {
	SessionID   string          `json:"sessionId"`
	ProjectHash string          `json:"projectHash"`
	StartTime   string          `json:"startTime"`
	LastUpdated string          `json:"lastUpdated"`
	Messages    []geminiMessage `json:"messages"`
}

type geminiMessage struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Content   string          `json:"content"`
	Model     string          `json:"model"`
	Thoughts  []geminiThought `json:"thoughts"`
	Tokens    *geminiTokens   `json:"tokens"`
}

type geminiThought struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type geminiTokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Cached int `json:"cached"`
}
