package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

const ledgerVersion = 1

// SyncEntry records one synced session in the ledger.
type SyncEntry struct {
	Provider    string    `json:"-"`
	SessionID   string    `json:"-"`
	ContentHash string    `json:"content_hash"`
	SyncedAt    time.Time `json:"synced_at"`
	FilePath    string    `json:"file_path"`
}

func entryKey(provider, sessionID string) string {
	return provider + ":" + sessionID
}

type ledgerFile struct {
	Version  int                  `json:"version"`
	Sessions map[string]SyncEntry `json:"sessions"`
}

// StateStore is the idempotency ledger: an in-memory mapping of
// provider:session_id to sync metadata, loaded fully at start and written
// back atomically. Entries are only ever upserted, never deleted.
type StateStore struct {
	path string

	mu      sync.Mutex
	entries map[string]SyncEntry
}

// LoadStateStore reads the ledger at path. A missing file yields an empty
// store; an unreadable or invalid one yields a *LedgerError, because a
// silently re-imported archive would break idempotency.
func LoadStateStore(path string) (*StateStore, error) {
	store := &StateStore{
		path:    path,
		entries: make(map[string]SyncEntry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, &LedgerError{Path: path, Err: err}
	}

	var file ledgerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &LedgerError{Path: path, Err: err}
	}
	if file.Version != ledgerVersion {
		return nil, &LedgerError{Path: path, Err: fmt.Errorf("unsupported ledger version %d", file.Version)}
	}

	for key, entry := range file.Sessions {
		provider, sessionID, ok := splitEntryKey(key)
		if !ok {
			return nil, &LedgerError{Path: path, Err: fmt.Errorf("invalid session key %q", key)}
		}
		entry.Provider = provider
		entry.SessionID = sessionID
		store.entries[key] = entry
	}
	return store, nil
}

func splitEntryKey(key string) (provider, sessionID string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			if i == 0 || i == len(key)-1 {
				return "", "", false
			}
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

// Lookup returns the active entry for (provider, sessionID), if any.
func (s *StateStore) Lookup(provider, sessionID string) (SyncEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryKey(provider, sessionID)]
	return entry, ok
}

// Upsert inserts or replaces the entry for its (provider, sessionID) key.
func (s *StateStore) Upsert(entry SyncEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey(entry.Provider, entry.SessionID)] = entry
}

// Enumerate returns all entries sorted by key.
func (s *StateStore) Enumerate() []SyncEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]SyncEntry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, s.entries[key])
	}
	return entries
}

// Len returns the number of ledger entries.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Save persists the ledger via write-temp-then-rename so a crash never
// leaves a half-written file.
func (s *StateStore) Save() error {
	s.mu.Lock()
	file := ledgerFile{
		Version:  ledgerVersion,
		Sessions: make(map[string]SyncEntry, len(s.entries)),
	}
	for key, entry := range s.entries {
		file.Sessions[key] = entry
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(&file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	data = append(data, '\n')
	return WriteFileAtomic(s.path, data)
}
