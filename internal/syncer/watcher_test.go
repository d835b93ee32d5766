package syncer

import (
	"strings"
	"testing"
	"time"

	"github.com/CrazyForks/waylog-cli/internal"
	"github.com/CrazyForks/waylog-cli/internal/export"
)

// newLiveWatcher builds a watcher whose clock sits before the fixture
// timestamps, as if the run had started just before the vendor store
// session appeared.
func newLiveWatcher(p internal.Provider, project string) *SessionWatcher {
	w := NewSessionWatcher(p, project)
	w.startedAt = time.Date(2025, 3, 14, 8, 59, 0, 0, time.UTC)
	return w
}

func TestWatcherAdoptsAndFlushesIncrementally(t *testing.T) {
	project := t.TempDir()
	provider := newFakeProvider("fake")
	record := fakeRecord("sess-live", 1)
	provider.add("ref-live", record)

	w := newLiveWatcher(provider, project)
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync(): %v", err)
	}

	if countArchives(t, project) != 1 {
		t.Fatal("adoption should create the archive file")
	}
	_, msgs, err := export.ParseArchiveFile(w.archivePath)
	if err != nil {
		t.Fatalf("mid-session archive unreadable: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("flushed %d messages, want 1", len(msgs))
	}

	// The session grows; only the new message is appended.
	record.Messages = append(record.Messages, internal.Message{
		ID:        "sess-live-m1",
		Role:      internal.RoleAssistant,
		Timestamp: record.Messages[0].Timestamp.Add(time.Minute),
		Content:   "on it",
	})
	if err := w.Sync(); err != nil {
		t.Fatalf("second Sync(): %v", err)
	}

	_, msgs, err = export.ParseArchiveFile(w.archivePath)
	if err != nil {
		t.Fatalf("archive unreadable after flush: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("flushed %d messages, want 2", len(msgs))
	}
	if msgs[1].Content != "on it" {
		t.Errorf("msgs[1].Content = %q", msgs[1].Content)
	}
}

func TestWatcherArchiveValidWithoutFinalize(t *testing.T) {
	project := t.TempDir()
	provider := newFakeProvider("fake")
	provider.add("ref-live", fakeRecord("sess-live", 3))

	w := newLiveWatcher(provider, project)
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync(): %v", err)
	}

	// Simulated crash: no Finalize. The file on disk must still parse,
	// with open-session frontmatter.
	fm, msgs, err := export.ParseArchiveFile(w.archivePath)
	if err != nil {
		t.Fatalf("crashed-run archive unreadable: %v", err)
	}
	if fm.EndedAt != "" {
		t.Errorf("EndedAt = %q, want empty while open", fm.EndedAt)
	}
	if len(msgs) != 3 {
		t.Errorf("flushed %d messages, want 3", len(msgs))
	}
}

func TestWatcherFinalizeClosesArchive(t *testing.T) {
	project := t.TempDir()
	provider := newFakeProvider("fake")
	provider.add("ref-live", fakeRecord("sess-live", 2))

	w := newLiveWatcher(provider, project)
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync(): %v", err)
	}

	record, path, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize(): %v", err)
	}
	if record == nil {
		t.Fatal("Finalize() returned no record")
	}
	if !record.Closed() {
		t.Error("finalized record should be closed")
	}

	fm, msgs, err := export.ParseArchiveFile(path)
	if err != nil {
		t.Fatalf("finalized archive unreadable: %v", err)
	}
	if fm.EndedAt == "" {
		t.Error("finalized frontmatter missing ended_at")
	}
	if fm.MessageCount != 2 || len(msgs) != 2 {
		t.Errorf("message_count = %d, parsed %d; want 2", fm.MessageCount, len(msgs))
	}
}

func TestWatcherIgnoresStaleStoreSession(t *testing.T) {
	project := t.TempDir()
	provider := newFakeProvider("fake")
	provider.add("ref-old", fakeRecord("sess-old", 2))

	// The watcher starts well after the store session did, so the
	// leftover session from a previous run is not adopted.
	w := NewSessionWatcher(provider, project)
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync(): %v", err)
	}

	if countArchives(t, project) != 0 {
		t.Error("stale session must not produce an archive")
	}
	record, _, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize(): %v", err)
	}
	if record != nil {
		t.Error("Finalize() should report nothing captured")
	}
}

func TestWatcherEmptyStore(t *testing.T) {
	project := t.TempDir()
	provider := newFakeProvider("fake")

	w := newLiveWatcher(provider, project)
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync() on empty store: %v", err)
	}

	record, path, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize(): %v", err)
	}
	if record != nil || path != "" {
		t.Errorf("Finalize() = %v, %q; want nothing captured", record, path)
	}
}

func TestWatcherArchiveFilenameShape(t *testing.T) {
	project := t.TempDir()
	provider := newFakeProvider("fake")
	provider.add("ref-live", fakeRecord("sess-live", 1))

	w := newLiveWatcher(provider, project)
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync(): %v", err)
	}

	if !strings.Contains(w.archivePath, "2025-03-14_09-00-00Z-fake-") {
		t.Errorf("archive path = %q, want timestamp-provider prefix", w.archivePath)
	}
	if !strings.HasSuffix(w.archivePath, ".md") {
		t.Errorf("archive path = %q, want .md suffix", w.archivePath)
	}
}
