package testutil

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// CursorSession describes one composer to plant in a fixture database.
type CursorSession struct {
	ComposerID string
	Name       string
	Project    string // project layout path; empty means no attribution row
	CreatedAt  time.Time
	Messages   []Msg
}

// CreateCursorStore builds a Cursor globalStorage database under userDir
// (userDir/globalStorage/state.vscdb) populated with the given sessions,
// mirroring the cursorDiskKV layout the desktop app writes.
func CreateCursorStore(t *testing.T, userDir string, sessions []CursorSession) string {
	t.Helper()

	dbPath := filepath.Join(userDir, "globalStorage", "state.vscdb")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create globalStorage directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open fixture database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cursorDiskKV (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		t.Fatalf("Failed to create cursorDiskKV: %v", err)
	}

	insert := func(key string, value interface{}) {
		data, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("Failed to marshal %s: %v", key, err)
		}
		if _, err := db.Exec("INSERT INTO cursorDiskKV (key, value) VALUES (?, ?)", key, string(data)); err != nil {
			t.Fatalf("Failed to insert %s: %v", key, err)
		}
	}

	for _, s := range sessions {
		var headers []map[string]interface{}
		for i, m := range s.Messages {
			bubbleID := s.ComposerID + "-b" + strconv.Itoa(i)
			bubbleType := 1
			if m.Role == "assistant" {
				bubbleType = 2
			}
			insert("bubbleId:"+s.ComposerID+":"+bubbleID, map[string]interface{}{
				"bubbleId":  bubbleID,
				"text":      m.Content,
				"timestamp": m.At.UnixMilli(),
				"type":      bubbleType,
			})
			headers = append(headers, map[string]interface{}{"bubbleId": bubbleID, "type": bubbleType})
		}

		insert("composerData:"+s.ComposerID, map[string]interface{}{
			"composerId":                  s.ComposerID,
			"name":                        s.Name,
			"fullConversationHeadersOnly": headers,
			"createdAt":                   s.CreatedAt.UnixMilli(),
			"lastUpdatedAt":               s.CreatedAt.UnixMilli(),
		})

		if s.Project != "" {
			insert("messageRequestContext:"+s.ComposerID+":ctx0", map[string]interface{}{
				"projectLayouts": []string{"file://" + s.Project},
			})
		}
	}

	return dbPath
}
