package storage

import (
	"time"
)

// NoticeItem is one tracked board article, identified by its (source,
// external id) pair. The pipeline creates it on first sight and updates it
// in place; it is never deleted.
type NoticeItem struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	ExternalID  string     `json:"external_id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NoticeSnapshot is a content-addressed capture of an item's normalized
// text. Snapshots are append-only; the latest one for an item is the one
// with the maximum FetchedAt.
type NoticeSnapshot struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"item_id"`
	ContentHash    string    `json:"content_hash"`
	NormalizedText string    `json:"normalized_text"`
	FetchedAt      time.Time `json:"fetched_at"`
	Seq            uint64    `json:"seq"`
}

// NoticeDiff is the stored line-diff between two snapshots of the same item.
type NoticeDiff struct {
	ID             string    `json:"id"`
	ItemID         string    `json:"item_id"`
	FromSnapshotID string    `json:"from_snapshot_id"`
	ToSnapshotID   string    `json:"to_snapshot_id"`
	DiffJSON       string    `json:"diff_json"`
	CreatedAt      time.Time `json:"created_at"`
	Seq            uint64    `json:"seq"`
}

// SnapshotSummary is what the read API exposes about an item's latest
// snapshot without shipping the full text.
type SnapshotSummary struct {
	ID          string    `json:"id"`
	ContentHash string    `json:"content_hash"`
	FetchedAt   time.Time `json:"fetched_at"`
}

func (s *NoticeSnapshot) Summary() SnapshotSummary {
	return SnapshotSummary{ID: s.ID, ContentHash: s.ContentHash, FetchedAt: s.FetchedAt}
}
