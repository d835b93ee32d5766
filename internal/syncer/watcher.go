package syncer

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/CrazyForks/waylog-cli/internal"
	"github.com/CrazyForks/waylog-cli/internal/export"
)

const (
	// fallback sync cadence when no store events arrive
	syncInterval = 15 * time.Second
	// quiet period after output/store activity before a sync runs
	debounceDelay = 750 * time.Millisecond
	// tolerance when deciding whether a store session belongs to this run
	adoptionSlack = 2 * time.Second
)

// SessionWatcher tails the vendor store for the session created by a live
// run and flushes each newly completed message to the archive file.
// Writes are append-only: the frontmatter written at session discovery
// omits completion-dependent fields, and Finalize performs the single
// atomic rewrite that fills them in. A crash at any point leaves a valid
// archive holding exactly the flushed messages.
type SessionWatcher struct {
	provider  internal.Provider
	project   string
	startedAt time.Time

	ref         string
	archivePath string
	flushed     int
	record      *internal.SessionRecord
}

// NewSessionWatcher prepares a watcher for one run invocation.
func NewSessionWatcher(p internal.Provider, project string) *SessionWatcher {
	return &SessionWatcher{
		provider:  p,
		project:   project,
		startedAt: time.Now().UTC(),
	}
}

// Run flushes the transcript until the context is cancelled. The activity
// channel carries output nudges from the recorder; store changes arrive
// via fsnotify, with a periodic fallback tick for stores fsnotify cannot
// see into.
func (w *SessionWatcher) Run(ctx context.Context, activity <-chan struct{}) {
	var storeEvents chan fsnotify.Event
	if fw, err := fsnotify.NewWatcher(); err == nil {
		defer fw.Close()
		if dir, err := w.provider.SessionDir(w.project); err == nil {
			if _, statErr := os.Stat(dir); statErr == nil {
				if err := fw.Add(dir); err == nil {
					storeEvents = make(chan fsnotify.Event, 16)
					go func() {
						for ev := range fw.Events {
							select {
							case storeEvents <- ev:
							default:
							}
						}
					}()
				}
			}
		}
	}

	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	debounce := time.NewTimer(debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	nudge := func() {
		if !debounce.Stop() {
			select {
			case <-debounce.C:
			default:
			}
		}
		debounce.Reset(debounceDelay)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-activity:
			nudge()
		case <-storeEvents:
			nudge()
		case <-debounce.C:
			w.syncOnce()
		case <-ticker.C:
			w.syncOnce()
		}
	}
}

func (w *SessionWatcher) syncOnce() {
	if err := w.Sync(); err != nil {
		internal.LogDebug("live sync: %v", err)
	}
}

// Sync flushes newly completed messages from the vendor store to the
// archive. Before a session is adopted it locates the latest store
// session that began after this run started; exactly one session owns
// the destination file for the run's lifetime.
func (w *SessionWatcher) Sync() error {
	if w.ref == "" {
		return w.adopt()
	}

	record, err := w.provider.ParseSession(w.ref)
	if err != nil {
		return err
	}
	if record.ProjectPath == "" {
		record.ProjectPath = w.project
	}
	return w.flush(record)
}

func (w *SessionWatcher) adopt() error {
	ref, err := w.provider.LatestSession(w.project)
	if err != nil || ref == "" {
		return err
	}

	record, err := w.provider.ParseSession(ref)
	if err != nil {
		return err
	}
	if len(record.Messages) == 0 {
		return nil
	}
	// An older session still sitting in the store is not ours to touch.
	if record.StartedAt.Before(w.startedAt.Add(-adoptionSlack)) {
		return nil
	}
	if record.ProjectPath == "" {
		record.ProjectPath = w.project
	}

	w.ref = ref
	w.archivePath = filepath.Join(internal.HistoryDir(w.project), internal.ArchiveFilename(record))

	head, err := export.RenderOpen(record)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.archivePath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(w.archivePath, head, 0644); err != nil {
		return err
	}
	internal.LogDebug("live capture: adopted session %s -> %s", record.SessionID, w.archivePath)
	return w.flush(record)
}

// flush appends messages past the high-water mark. Only complete turns
// are ever in the parsed record, so a crash between flushes still leaves
// whole messages.
func (w *SessionWatcher) flush(record *internal.SessionRecord) error {
	w.record = record
	if len(record.Messages) <= w.flushed {
		return nil
	}

	f, err := os.OpenFile(w.archivePath, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	fresh := record.Messages[w.flushed:]
	if err := export.AppendMessages(f, fresh); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	w.flushed = len(record.Messages)
	internal.LogDebug("live capture: flushed %d message(s)", len(fresh))
	return nil
}

// Finalize performs one last sync, freezes the record, and atomically
// rewrites the archive with completed frontmatter. Returns the frozen
// record and archive path, or nil when the run captured nothing.
func (w *SessionWatcher) Finalize() (*internal.SessionRecord, string, error) {
	w.syncOnce()

	if w.record == nil || len(w.record.Messages) == 0 {
		return nil, "", nil
	}

	record := w.record
	if !record.Closed() {
		record.EndedAt = record.Messages[len(record.Messages)-1].Timestamp
	}

	data, err := export.Render(record)
	if err != nil {
		return nil, "", err
	}
	if err := internal.WriteFileAtomic(w.archivePath, data); err != nil {
		return nil, "", err
	}
	return record, w.archivePath, nil
}
