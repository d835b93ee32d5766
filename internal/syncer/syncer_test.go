package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/CrazyForks/waylog-cli/internal"
)

// fakeProvider serves canned session records, standing in for a vendor
// store on disk.
type fakeProvider struct {
	name     string
	dir      string
	order    []string // refs, newest first
	records  map[string]*internal.SessionRecord
	scanErr  error
	parseErr map[string]error
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{
		name:     name,
		records:  make(map[string]*internal.SessionRecord),
		parseErr: make(map[string]error),
	}
}

func (f *fakeProvider) add(ref string, record *internal.SessionRecord) {
	f.records[ref] = record
	f.order = append([]string{ref}, f.order...)
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Command() string { return f.name }
func (f *fakeProvider) Installed() bool { return true }

func (f *fakeProvider) SessionDir(projectPath string) (string, error) {
	return f.dir, nil
}

func (f *fakeProvider) Sessions(projectPath string) ([]string, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return append([]string(nil), f.order...), nil
}

func (f *fakeProvider) LatestSession(projectPath string) (string, error) {
	refs, err := f.Sessions(projectPath)
	if err != nil || len(refs) == 0 {
		return "", err
	}
	return refs[0], nil
}

func (f *fakeProvider) ParseSession(ref string) (*internal.SessionRecord, error) {
	if err := f.parseErr[ref]; err != nil {
		return nil, err
	}
	record, ok := f.records[ref]
	if !ok {
		return nil, &internal.RecordError{Provider: f.name, Ref: ref, Err: os.ErrNotExist}
	}
	// Callers own their copy, like a real parse from disk.
	clone := *record
	clone.Messages = append([]internal.Message(nil), record.Messages...)
	return &clone, nil
}

func fakeRecord(id string, n int) *internal.SessionRecord {
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	record := &internal.SessionRecord{
		SessionID: id,
		Provider:  "fake",
		StartedAt: base,
	}
	for i := 0; i < n; i++ {
		role := internal.RoleUser
		if i%2 == 1 {
			role = internal.RoleAssistant
		}
		record.Messages = append(record.Messages, internal.Message{
			ID:        fmt.Sprintf("%s-m%d", id, i),
			Seq:       i + 1,
			Role:      role,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Content:   fmt.Sprintf("message %d of %s", i, id),
		})
	}
	return record
}

func newTestSync(t *testing.T) (string, *internal.StateStore) {
	t.Helper()
	project := t.TempDir()
	store, err := internal.LoadStateStore(internal.StatePath(project))
	if err != nil {
		t.Fatalf("LoadStateStore(): %v", err)
	}
	return project, store
}

func countArchives(t *testing.T, project string) int {
	t.Helper()
	entries, err := os.ReadDir(internal.HistoryDir(project))
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatal(err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".md") {
			n++
		}
	}
	return n
}

func TestPullImportsAndIsIdempotent(t *testing.T) {
	project, store := newTestSync(t)
	provider := newFakeProvider("fake")
	provider.add("ref-a", fakeRecord("sess-a", 2))
	provider.add("ref-b", fakeRecord("sess-b", 4))

	stats, err := New(project, store, false).PullAll(context.Background(), []internal.Provider{provider})
	if err != nil {
		t.Fatalf("PullAll(): %v", err)
	}
	if stats.Imported != 2 || stats.Skipped != 0 || stats.Failed != 0 {
		t.Errorf("first pull stats = %+v, want 2 imported", stats)
	}
	if got := countArchives(t, project); got != 2 {
		t.Errorf("archive count = %d, want 2", got)
	}

	// Same store, nothing changed: the second pull is a no-op.
	stats, err = New(project, store, false).PullAll(context.Background(), []internal.Provider{provider})
	if err != nil {
		t.Fatalf("second PullAll(): %v", err)
	}
	if stats.Imported != 0 || stats.Skipped != 2 {
		t.Errorf("second pull stats = %+v, want 2 skipped", stats)
	}
	if got := countArchives(t, project); got != 2 {
		t.Errorf("archive count after second pull = %d, want 2", got)
	}
}

func TestPullSurvivesProcessRestart(t *testing.T) {
	project, store := newTestSync(t)
	provider := newFakeProvider("fake")
	provider.add("ref-a", fakeRecord("sess-a", 2))

	if _, err := New(project, store, false).PullAll(context.Background(), []internal.Provider{provider}); err != nil {
		t.Fatalf("PullAll(): %v", err)
	}

	// A fresh process loads the saved ledger and still skips.
	reloaded, err := internal.LoadStateStore(internal.StatePath(project))
	if err != nil {
		t.Fatalf("LoadStateStore(): %v", err)
	}
	stats, err := New(project, reloaded, false).PullAll(context.Background(), []internal.Provider{provider})
	if err != nil {
		t.Fatalf("PullAll() after reload: %v", err)
	}
	if stats.Imported != 0 || stats.Skipped != 1 {
		t.Errorf("stats after reload = %+v, want 1 skipped", stats)
	}
}

func TestPullReimportsGrownSession(t *testing.T) {
	project, store := newTestSync(t)
	provider := newFakeProvider("fake")
	record := fakeRecord("sess-a", 2)
	provider.add("ref-a", record)

	if _, err := New(project, store, false).PullAll(context.Background(), []internal.Provider{provider}); err != nil {
		t.Fatalf("PullAll(): %v", err)
	}

	// The vendor store session kept growing after the first import.
	record.Messages = append(record.Messages, internal.Message{
		ID:        "sess-a-m2",
		Role:      internal.RoleUser,
		Timestamp: record.Messages[len(record.Messages)-1].Timestamp.Add(time.Minute),
		Content:   "one more thing",
	})

	stats, err := New(project, store, false).PullAll(context.Background(), []internal.Provider{provider})
	if err != nil {
		t.Fatalf("PullAll(): %v", err)
	}
	if stats.Imported != 1 {
		t.Errorf("stats = %+v, want the grown session re-imported", stats)
	}
	// The re-import replaces the session's archive, never duplicates it.
	if got := countArchives(t, project); got != 1 {
		t.Errorf("archive count = %d, want 1", got)
	}
}

func TestPullForceRewritesInPlace(t *testing.T) {
	project, store := newTestSync(t)
	provider := newFakeProvider("fake")
	provider.add("ref-a", fakeRecord("sess-a", 2))

	if _, err := New(project, store, false).PullAll(context.Background(), []internal.Provider{provider}); err != nil {
		t.Fatalf("PullAll(): %v", err)
	}

	stats, err := New(project, store, true).PullAll(context.Background(), []internal.Provider{provider})
	if err != nil {
		t.Fatalf("forced PullAll(): %v", err)
	}
	if stats.Imported != 1 {
		t.Errorf("forced stats = %+v, want 1 imported", stats)
	}
	if got := countArchives(t, project); got != 1 {
		t.Errorf("archive count = %d, want 1", got)
	}
}

func TestPullSkipsEmptySessions(t *testing.T) {
	project, store := newTestSync(t)
	provider := newFakeProvider("fake")
	provider.add("ref-empty", fakeRecord("sess-empty", 0))

	stats, err := New(project, store, false).PullAll(context.Background(), []internal.Provider{provider})
	if err != nil {
		t.Fatalf("PullAll(): %v", err)
	}
	if stats.Imported != 0 {
		t.Errorf("stats = %+v, want empty session not imported", stats)
	}
	if got := countArchives(t, project); got != 0 {
		t.Errorf("archive count = %d, want 0", got)
	}
}

func TestPullCountsSessionFailures(t *testing.T) {
	project, store := newTestSync(t)
	provider := newFakeProvider("fake")
	provider.add("ref-bad", fakeRecord("sess-bad", 2))
	provider.add("ref-good", fakeRecord("sess-good", 2))
	provider.parseErr["ref-bad"] = &internal.RecordError{Provider: "fake", Ref: "ref-bad", Err: errors.New("truncated")}

	stats, err := New(project, store, false).PullAll(context.Background(), []internal.Provider{provider})
	if err != nil {
		t.Fatalf("PullAll(): %v (a bad session must not fail the batch)", err)
	}
	if stats.Imported != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 imported and 1 failed", stats)
	}
}

func TestPullScanFailureDoesNotBlockOtherProviders(t *testing.T) {
	project, store := newTestSync(t)

	broken := newFakeProvider("broken")
	broken.scanErr = &internal.StoreError{Provider: "broken", Path: "/dev/null", Err: errors.New("locked")}
	healthy := newFakeProvider("healthy")
	healthy.add("ref-a", fakeRecord("sess-a", 2))

	stats, err := New(project, store, false).PullAll(context.Background(),
		[]internal.Provider{broken, healthy})
	if err == nil {
		t.Fatal("PullAll() should surface the scan failure")
	}
	if stats.Imported != 1 {
		t.Errorf("stats = %+v, want the healthy provider imported anyway", stats)
	}
}

func TestCommitRecordsLedgerEntry(t *testing.T) {
	project, store := newTestSync(t)
	record := fakeRecord("sess-live", 2)
	record.EndedAt = record.Messages[1].Timestamp

	if err := New(project, store, false).Commit(record, "/tmp/archive.md"); err != nil {
		t.Fatalf("Commit(): %v", err)
	}

	entry, ok := store.Lookup("fake", "sess-live")
	if !ok {
		t.Fatal("Commit() did not record a ledger entry")
	}
	if entry.FilePath != "/tmp/archive.md" {
		t.Errorf("FilePath = %q", entry.FilePath)
	}
	if entry.ContentHash == "" {
		t.Error("ContentHash is empty")
	}

	// Commit persists immediately so a later pull sees the capture.
	if _, err := os.Stat(internal.StatePath(project)); err != nil {
		t.Errorf("ledger not saved: %v", err)
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("hello"))
	b := ContentHash([]byte("hello"))
	c := ContentHash([]byte("hello!"))

	if a != b {
		t.Error("ContentHash() not stable")
	}
	if a == c {
		t.Error("ContentHash() collision on different input")
	}
	if len(a) != 64 {
		t.Errorf("ContentHash() length = %d, want 64 hex chars", len(a))
	}
}
