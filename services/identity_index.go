package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/camden-git/facetrack/faces"
	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/repository"
)

// IdentityEntry is one enrolled descriptor with the identity it belongs to.
type IdentityEntry struct {
	PersonID    uint
	DisplayName string
	Descriptor  faces.Descriptor
}

// IdentitySource is the store view the index is built from.
type IdentitySource interface {
	ListIdentityDescriptors(ctx context.Context) ([]repository.IdentityDescriptor, error)
}

// IdentityIndex caches every enrolled descriptor in memory. It is never
// patched: Reload rebuilds the whole snapshot from the store and swaps it in
// under the write lock, so readers see either the old or the new set.
type IdentityIndex struct {
	source IdentitySource

	reloadMu sync.Mutex // serializes reloads so the newest read always lands last
	mu       sync.RWMutex
	entries  []IdentityEntry
}

func NewIdentityIndex(source IdentitySource) *IdentityIndex {
	return &IdentityIndex{source: source}
}

// Reload re-reads all identity descriptors. Rows whose descriptor cannot be
// decoded are skipped with a warning. On a store error the current snapshot
// is kept and the error returned. It returns the number of loaded entries.
func (ix *IdentityIndex) Reload(ctx context.Context) (int, error) {
	log := logger.Named("index")

	ix.reloadMu.Lock()
	defer ix.reloadMu.Unlock()

	rows, err := ix.source.ListIdentityDescriptors(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reload identity index: %w", err)
	}

	next := make([]IdentityEntry, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		kind, err := faces.ParseKind(row.Strategy)
		if err != nil {
			log.Warnf("skipping embedding %d of person %d: %v", row.EmbeddingID, row.PersonID, err)
			skipped++
			continue
		}
		d, err := faces.DecodeDescriptor(kind, row.Data)
		if err != nil {
			log.Warnf("skipping corrupt embedding %d of person %d: %v", row.EmbeddingID, row.PersonID, err)
			skipped++
			continue
		}
		next = append(next, IdentityEntry{
			PersonID:    row.PersonID,
			DisplayName: row.DisplayName(),
			Descriptor:  d,
		})
	}

	ix.mu.Lock()
	ix.entries = next
	ix.mu.Unlock()

	log.Infof("identity index reloaded: %d entries, %d skipped", len(next), skipped)
	return len(next), nil
}

// Entries returns the current snapshot in reload order. The descriptors are
// shared with the index and must not be modified.
func (ix *IdentityIndex) Entries() []IdentityEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]IdentityEntry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

func (ix *IdentityIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// IsEmpty reports whether nobody is enrolled, in which case every
// recognition ends as "no identities registered".
func (ix *IdentityIndex) IsEmpty() bool {
	return ix.Len() == 0
}
