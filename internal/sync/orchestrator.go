// Package sync walks the remote board listings, decides which articles need
// a detail refetch, and wires client, normalizer, store and diff engine
// together. Every write it performs is idempotent, so repeated runs over
// unchanged upstream content change nothing.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/servaltullius/aion2-hub-sub001/internal/board"
	"github.com/servaltullius/aion2-hub-sub001/internal/debuglog"
	"github.com/servaltullius/aion2-hub-sub001/internal/difftext"
	"github.com/servaltullius/aion2-hub-sub001/internal/normalize"
	"github.com/servaltullius/aion2-hub-sub001/internal/storage"
)

// Options controls one sync run. Validated before any network activity.
type Options struct {
	MaxPages      int
	PageSize      int
	IncludePinned bool
}

// ConfigError reports invalid sync options.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "sync: invalid options: " + e.Reason
}

func (o Options) validate() error {
	if o.MaxPages <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("max pages must be positive, got %d", o.MaxPages)}
	}
	if o.PageSize <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("page size must be positive, got %d", o.PageSize)}
	}
	return nil
}

// Totals are the counters of one sync run.
type Totals struct {
	MetasFetched      int `json:"metas_fetched"`
	DetailsFetched    int `json:"details_fetched"`
	ItemsUpserted     int `json:"items_upserted"`
	SnapshotsInserted int `json:"snapshots_inserted"`
	DiffsInserted     int `json:"diffs_inserted"`
	Skipped           int `json:"skipped"`
	Failed            int `json:"failed"`
}

type Orchestrator struct {
	store  *storage.Store
	client *board.Client
}

func NewOrchestrator(store *storage.Store, client *board.Client) *Orchestrator {
	return &Orchestrator{store: store, client: client}
}

// Sync runs the change-detection pipeline for the given sources, in the
// given order. A fetch or shape failure for one article is logged and
// counted but does not stop the run; store failures abort it.
func (o *Orchestrator) Sync(ctx context.Context, sources []board.Source, opts Options) (Totals, error) {
	var totals Totals

	if err := opts.validate(); err != nil {
		return totals, err
	}

	for _, source := range sources {
		lg := debuglog.WithFields(map[string]interface{}{"source": source})

		metas, err := o.client.FetchLatest(ctx, source, board.FetchOptions{
			MaxPages:      opts.MaxPages,
			PageSize:      opts.PageSize,
			IncludePinned: opts.IncludePinned,
		})
		if err != nil {
			// Partial listings are still processed below.
			lg.Warnf("listing fetch incomplete: %v", err)
			totals.Failed++
		}

		for _, meta := range metas {
			totals.MetasFetched++
			if err := o.syncArticle(ctx, source, meta, &totals); err != nil {
				return totals, fmt.Errorf("syncing article %s/%s: %w", source, meta.ID, err)
			}
		}

		lg.Infof("source done: fetched=%d skipped=%d failed=%d", len(metas), totals.Skipped, totals.Failed)
	}

	return totals, nil
}

// syncArticle processes one listing entry. Its returned error is always a
// store failure, which is fatal to the run; remote failures are swallowed
// after logging and counting.
func (o *Orchestrator) syncArticle(ctx context.Context, source board.Source, meta board.ArticleMeta, totals *Totals) error {
	lg := debuglog.WithFields(map[string]interface{}{"source": source, "article": meta.ID})

	effUpdated := effectiveUpdatedAt(meta)

	existing, err := o.store.GetItem(string(source), meta.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	// Skip-fast rule: a known item whose remote updatedAt matches the
	// stored one, and which already has a snapshot, needs no detail fetch.
	if existing != nil && existing.UpdatedAt != nil && effUpdated != nil && existing.UpdatedAt.Equal(*effUpdated) {
		latest, err := o.store.LatestSnapshot(existing.ID)
		if err != nil {
			return err
		}
		if latest != nil {
			totals.Skipped++
			return nil
		}
	}

	detail, err := o.client.FetchDetail(ctx, source, meta.ID)
	if err != nil {
		lg.Warnf("detail fetch failed: %v", err)
		totals.Failed++
		return nil
	}
	totals.DetailsFetched++

	publishedAt := board.ParseTime(detail.PublishedAt)
	if publishedAt == nil {
		publishedAt = board.ParseTime(detail.PostedAt)
	}
	updatedAt := effUpdated
	if updatedAt == nil {
		updatedAt = board.ParseTime(detail.UpdatedAt)
	}

	item, err := o.store.UpsertItem(&storage.NoticeItem{
		Source:      string(source),
		ExternalID:  meta.ID,
		URL:         firstNonEmpty(detail.URL, meta.URL),
		Title:       firstNonEmpty(detail.Title, meta.Title),
		PublishedAt: publishedAt,
		UpdatedAt:   updatedAt,
	})
	if err != nil {
		return err
	}
	totals.ItemsUpserted++

	// The previous latest snapshot must be read before the new one is
	// written; it is the "from" side of the diff.
	before, err := o.store.LatestSnapshot(item.ID)
	if err != nil {
		return err
	}

	text, hash, err := normalize.NormalizeAndHash(detail.ContentHTML)
	if err != nil {
		lg.Warnf("normalizing content failed: %v", err)
		totals.Failed++
		return nil
	}

	snap, inserted, err := o.store.UpsertSnapshot(item.ID, hash, text)
	if err != nil {
		return err
	}
	if inserted {
		totals.SnapshotsInserted++
		lg.Debugf("new snapshot %s", snap.ContentHash)
	}

	if before == nil {
		// First-ever snapshot, nothing to diff against.
		return nil
	}
	if before.ContentHash == snap.ContentHash || before.ID == snap.ID {
		return nil
	}

	blocks := difftext.DiffLines(before.NormalizedText, text)
	diffJSON, err := json.Marshal(blocks)
	if err != nil {
		return fmt.Errorf("encoding diff: %w", err)
	}

	if _, err := o.store.UpsertDiff(item.ID, before.ID, snap.ID, string(diffJSON)); err != nil {
		return err
	}
	totals.DiffsInserted++
	lg.Infof("content changed, diff recorded")

	return nil
}

// effectiveUpdatedAt resolves the listing-level change marker: the remote
// updatedAt, falling back to publishedAt. Missing or unparsable dates yield
// nil.
func effectiveUpdatedAt(meta board.ArticleMeta) *time.Time {
	if t := board.ParseTime(meta.UpdatedAt); t != nil {
		return t
	}
	return board.ParseTime(meta.PublishedAt)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
