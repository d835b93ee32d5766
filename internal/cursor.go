package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// CursorProvider reads Cursor's globalStorage database. One SQLite
// key-value table holds sessions from every workspace on the machine, so
// attribution goes through each composer's recorded project layouts.
// The database is only ever opened in read-only mode.
type CursorProvider struct {
	base    string // Cursor User directory; defaults per-OS
	matcher PathMatcher
}

// NewCursorProvider creates a Cursor adapter.
func NewCursorProvider(matcher PathMatcher) *CursorProvider {
	return &CursorProvider{matcher: matcher}
}

func (p *CursorProvider) Name() string    { return "cursor" }
func (p *CursorProvider) Command() string { return "cursor-agent" }

func (p *CursorProvider) Installed() bool {
	return commandInstalled(p.Command())
}

func (p *CursorProvider) baseDir() (string, error) {
	if p.base != "" {
		return p.base, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library/Application Support/Cursor/User"), nil
	case "linux":
		return filepath.Join(home, ".config/Cursor/User"), nil
	default:
		return "", fmt.Errorf("unsupported OS for cursor storage: %s", runtime.GOOS)
	}
}

// SessionDir returns the globalStorage directory holding state.vscdb.
func (p *CursorProvider) SessionDir(projectPath string) (string, error) {
	base, err := p.baseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "globalStorage"), nil
}

func (p *CursorProvider) dbPath() (string, error) {
	dir, err := p.SessionDir("")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.vscdb"), nil
}

func (p *CursorProvider) openDB() (*sql.DB, string, error) {
	path, err := p.dbPath()
	if err != nil {
		return nil, path, err
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, path, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, path, err
	}
	return db, path, nil
}

func (p *CursorProvider) Sessions(projectPath string) ([]string, error) {
	path, err := p.dbPath()
	if err != nil {
		return nil, &StoreError{Provider: p.Name(), Path: path, Err: err}
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StoreError{Provider: p.Name(), Path: path, Err: err}
	}

	db, _, err := p.openDB()
	if err != nil {
		return nil, &StoreError{Provider: p.Name(), Path: path, Err: err}
	}
	defer db.Close()

	composers, err := p.loadComposers(db)
	if err != nil {
		return nil, &StoreError{Provider: p.Name(), Path: path, Err: err}
	}
	layouts, err := p.loadProjectLayouts(db)
	if err != nil {
		return nil, &StoreError{Provider: p.Name(), Path: path, Err: err}
	}

	type candidate struct {
		id      string
		updated int64
	}
	var candidates []candidate
	for _, c := range composers {
		if !p.attributed(layouts[c.ComposerID], projectPath) {
			continue
		}
		updated := c.LastUpdatedAt
		if updated == 0 {
			updated = c.CreatedAt
		}
		candidates = append(candidates, candidate{id: c.ComposerID, updated: updated})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].updated > candidates[j].updated
	})

	refs := make([]string, len(candidates))
	for i, c := range candidates {
		refs[i] = c.id
	}
	return refs, nil
}

func (p *CursorProvider) LatestSession(projectPath string) (string, error) {
	refs, err := p.Sessions(projectPath)
	if err != nil || len(refs) == 0 {
		return "", err
	}
	return refs[0], nil
}

// attributed applies the path-matching policy to the project layouts a
// composer was recorded against.
func (p *CursorProvider) attributed(layouts []string, projectPath string) bool {
	for _, layout := range layouts {
		if p.matcher.Match(strings.TrimPrefix(layout, "file://"), projectPath) {
			return true
		}
	}
	return false
}

func (p *CursorProvider) ParseSession(ref string) (*SessionRecord, error) {
	db, path, err := p.openDB()
	if err != nil {
		return nil, &StoreError{Provider: p.Name(), Path: path, Err: err}
	}
	defer db.Close()

	composer, err := p.loadComposer(db, ref)
	if err != nil {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}

	bubbles, err := p.loadBubbles(db, ref)
	if err != nil {
		return nil, &RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}

	record := &SessionRecord{
		Provider:  p.Name(),
		SessionID: ref,
		StartedAt: msTime(composer.CreatedAt),
	}

	// The conversation header list gives the authoritative order; fall
	// back on bubble timestamps when it is absent.
	if len(composer.FullConversationHeadersOnly) > 0 {
		for _, header := range composer.FullConversationHeadersOnly {
			b, ok := bubbles[header.BubbleID]
			if !ok {
				continue
			}
			if msg, ok := p.bubbleMessage(b); ok {
				record.Messages = append(record.Messages, msg)
			}
		}
	} else {
		ordered := make([]*cursorBubble, 0, len(bubbles))
		for _, b := range bubbles {
			ordered = append(ordered, b)
		}
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].Timestamp < ordered[j].Timestamp
		})
		for _, b := range ordered {
			if msg, ok := p.bubbleMessage(b); ok {
				record.Messages = append(record.Messages, msg)
			}
		}
	}

	for i := range record.Messages {
		record.Messages[i].Seq = i + 1
	}
	if record.StartedAt.IsZero() && len(record.Messages) > 0 {
		record.StartedAt = record.Messages[0].Timestamp
	}
	return record, nil
}

func (p *CursorProvider) bubbleMessage(b *cursorBubble) (Message, bool) {
	text := b.Text
	if text == "" && len(b.CodeBlocks) > 0 {
		var parts []string
		for _, cb := range b.CodeBlocks {
			parts = append(parts, fmt.Sprintf("```%s\n%s\n```", cb.Language, cb.Content))
		}
		text = strings.Join(parts, "\n\n")
	}
	if text == "" {
		return Message{}, false
	}

	role := RoleUser
	if b.Type == 2 {
		role = RoleAssistant
	}

	return Message{
		ID:        b.BubbleID,
		Role:      role,
		Timestamp: msTime(b.Timestamp),
		Content:   text,
	}, true
}

func msTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

func (p *CursorProvider) loadComposer(db *sql.DB, composerID string) (*cursorComposer, error) {
	var value string
	row := db.QueryRow("SELECT value FROM cursorDiskKV WHERE key = ?", "composerData:"+composerID)
	if err := row.Scan(&value); err != nil {
		return nil, fmt.Errorf("composer %s not found: %w", composerID, err)
	}
	var composer cursorComposer
	if err := json.Unmarshal([]byte(value), &composer); err != nil {
		return nil, err
	}
	composer.ComposerID = composerID
	return &composer, nil
}

func (p *CursorProvider) loadComposers(db *sql.DB) ([]*cursorComposer, error) {
	rows, err := db.Query("SELECT key, value FROM cursorDiskKV WHERE key LIKE ? AND value IS NOT NULL", "composerData:%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var composers []*cursorComposer
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		var composer cursorComposer
		if err := json.Unmarshal([]byte(value), &composer); err != nil {
			LogDebug("cursor: skipping unparseable composer %s: %v", key, err)
			continue
		}
		composer.ComposerID = strings.TrimPrefix(key, "composerData:")
		composers = append(composers, &composer)
	}
	return composers, rows.Err()
}

// loadBubbles returns the message bubbles of one composer keyed by bubble id.
func (p *CursorProvider) loadBubbles(db *sql.DB, composerID string) (map[string]*cursorBubble, error) {
	rows, err := db.Query("SELECT key, value FROM cursorDiskKV WHERE key LIKE ? AND value IS NOT NULL", "bubbleId:"+composerID+":%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bubbles := make(map[string]*cursorBubble)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		var bubble cursorBubble
		if err := json.Unmarshal([]byte(value), &bubble); err != nil {
			LogDebug("cursor: skipping unparseable bubble %s: %v", key, err)
			continue
		}
		parts := strings.Split(key, ":")
		if len(parts) == 3 {
			bubble.BubbleID = parts[2]
		}
		bubbles[bubble.BubbleID] = &bubble
	}
	return bubbles, rows.Err()
}

// loadProjectLayouts maps composer ids to the project paths recorded in
// their message request contexts.
func (p *CursorProvider) loadProjectLayouts(db *sql.DB) (map[string][]string, error) {
	rows, err := db.Query("SELECT key, value FROM cursorDiskKV WHERE key LIKE ? AND value IS NOT NULL", "messageRequestContext:%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	layouts := make(map[string][]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		parts := strings.Split(key, ":")
		if len(parts) < 3 {
			continue
		}
		composerID := parts[1]

		var ctx struct {
			ProjectLayouts []string `json:"projectLayouts"`
		}
		if err := json.Unmarshal([]byte(value), &ctx); err != nil {
			continue
		}
		layouts[composerID] = append(layouts[composerID], ctx.ProjectLayouts...)
	}
	return layouts, rows.Err()
}

// Cursor globalStorage structures.
type cursorComposer struct {
	ComposerID                  string               `json:"composerId"`
	Name                        string               `json:"name"`
	FullConversationHeadersOnly []cursorConvHeader   `json:"fullConversationHeadersOnly"`
	CreatedAt                   int64                `json:"createdAt"`
	LastUpdatedAt               int64                `json:"lastUpdatedAt"`
}

type cursorConvHeader struct {
	BubbleID string `json:"bubbleId"`
	Type     int    `json:"type"`
}

type cursorBubble struct {
	BubbleID   string            `json:"bubbleId"`
	Text       string            `json:"text"`
	CodeBlocks []cursorCodeBlock `json:"codeBlocks"`
	Timestamp  int64             `json:"timestamp"`
	Type       int               `json:"type"` // 1=user, 2=assistant
}

type cursorCodeBlock struct {
	Language string `json:"language"`
	Content  string `json:"content"`
}
