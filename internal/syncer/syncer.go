// Package syncer drives the live-capture and bulk-recovery workflows,
// coordinating provider adapters, the normalizer, and the sync ledger.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CrazyForks/waylog-cli/internal"
	"github.com/CrazyForks/waylog-cli/internal/export"
)

// Stats aggregates the outcome of one pull batch.
type Stats struct {
	Imported int
	Skipped  int
	Failed   int
}

func (s *Stats) add(other Stats) {
	s.Imported += other.Imported
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// Synchronizer imports discovered sessions into the project archive,
// consulting the ledger for idempotency.
type Synchronizer struct {
	project string
	store   *internal.StateStore
	force   bool
}

// New creates a synchronizer for one project. With force set, every
// discovered session is rewritten even when its content is unchanged.
func New(project string, store *internal.StateStore, force bool) *Synchronizer {
	return &Synchronizer{project: project, store: store, force: force}
}

// PullAll scans the given providers in parallel, one worker per provider.
// Individual session failures are counted, never fatal; a provider whose
// scan fails outright contributes to the returned error while the other
// providers proceed. The ledger is saved once at the end of the batch.
func (s *Synchronizer) PullAll(ctx context.Context, providers []internal.Provider) (Stats, error) {
	var (
		mu       sync.Mutex
		total    Stats
		scanErrs []error
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		p := p
		g.Go(func() error {
			stats, err := s.pullProvider(ctx, p)
			mu.Lock()
			total.add(stats)
			if err != nil {
				scanErrs = append(scanErrs, err)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := s.store.Save(); err != nil {
		scanErrs = append(scanErrs, err)
	}
	return total, errors.Join(scanErrs...)
}

func (s *Synchronizer) pullProvider(ctx context.Context, p internal.Provider) (Stats, error) {
	var stats Stats

	refs, err := p.Sessions(s.project)
	if err != nil {
		internal.LogError("%v", err)
		return stats, err
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		imported, err := s.syncSession(p, ref)
		switch {
		case err != nil:
			internal.LogWarn("pull: %v", err)
			stats.Failed++
		case imported:
			stats.Imported++
		default:
			stats.Skipped++
		}
	}
	return stats, nil
}

// syncSession normalizes one discovered session and writes its archive
// unless the ledger already holds an entry with the same content hash.
func (s *Synchronizer) syncSession(p internal.Provider, ref string) (bool, error) {
	record, err := p.ParseSession(ref)
	if err != nil {
		return false, err
	}
	if len(record.Messages) == 0 {
		return false, nil
	}

	if record.ProjectPath == "" {
		record.ProjectPath = s.project
	}
	// Historical sessions are frozen; the last message closes them.
	if !record.Closed() {
		record.EndedAt = record.Messages[len(record.Messages)-1].Timestamp
	}

	data, err := export.Render(record)
	if err != nil {
		return false, &internal.RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}
	hash := ContentHash(data)

	path := filepath.Join(internal.HistoryDir(s.project), internal.ArchiveFilename(record))
	if prev, ok := s.store.Lookup(p.Name(), record.SessionID); ok {
		if prev.ContentHash == hash && !s.force {
			return false, nil
		}
		// A forced re-sync overwrites the session's existing archive
		// rather than leaving two files for one session id.
		if prev.FilePath != "" {
			path = prev.FilePath
		}
	}

	if err := internal.WriteFileAtomic(path, data); err != nil {
		return false, &internal.RecordError{Provider: p.Name(), Ref: ref, Err: err}
	}

	s.store.Upsert(internal.SyncEntry{
		Provider:    p.Name(),
		SessionID:   record.SessionID,
		ContentHash: hash,
		SyncedAt:    time.Now().UTC(),
		FilePath:    path,
	})
	return true, nil
}

// Commit records a completed live capture in the ledger. The archive at
// path must already hold the record's rendered bytes.
func (s *Synchronizer) Commit(record *internal.SessionRecord, path string) error {
	data, err := export.Render(record)
	if err != nil {
		return err
	}
	s.store.Upsert(internal.SyncEntry{
		Provider:    record.Provider,
		SessionID:   record.SessionID,
		ContentHash: ContentHash(data),
		SyncedAt:    time.Now().UTC(),
		FilePath:    path,
	})
	return s.store.Save()
}

// ContentHash is the idempotency hash of rendered archive bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
