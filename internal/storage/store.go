package storage

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	itemsBucket     = []byte("items")
	snapshotsBucket = []byte("snapshots")
	diffsBucket     = []byte("diffs")
)

// ErrNotFound is returned by point lookups for absent records.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{itemsBucket, snapshotsBucket, diffsBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ItemID derives the storage key for a (source, externalID) pair.
func ItemID(source, externalID string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(source+":"+externalID)))
}

// SnapshotID derives the storage key for an (itemID, contentHash) pair.
// Refetching identical content maps to the same key, which is what makes
// snapshot upserts naturally deduplicating.
func SnapshotID(itemID, contentHash string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(itemID+":"+contentHash)))
}

// DiffID derives the storage key for a (fromSnapshotID, toSnapshotID) pair.
func DiffID(fromID, toID string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(fromID+":"+toID)))
}

// UpsertItem creates the item on first sight of its (source, externalID)
// pair, or updates url/title/publishedAt/updatedAt in place. CreatedAt of an
// existing item is preserved. Returns the stored item.
func (s *Store) UpsertItem(item *NoticeItem) (*NoticeItem, error) {
	if item.Source == "" || item.ExternalID == "" {
		return nil, fmt.Errorf("upserting item: source and external id are required")
	}

	stored := *item
	stored.ID = ItemID(item.Source, item.ExternalID)

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(itemsBucket)
		if data := b.Get([]byte(stored.ID)); data != nil {
			var existing NoticeItem
			if err := json.Unmarshal(data, &existing); err != nil {
				return err
			}
			stored.CreatedAt = existing.CreatedAt
		} else {
			stored.CreatedAt = time.Now().UTC()
		}

		data, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		return b.Put([]byte(stored.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("upserting item: %w", err)
	}
	return &stored, nil
}

func (s *Store) GetItem(source, externalID string) (*NoticeItem, error) {
	return s.GetItemByID(ItemID(source, externalID))
}

func (s *Store) GetItemByID(id string) (*NoticeItem, error) {
	var item NoticeItem
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(itemsBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems returns one page of items ordered by publishedAt desc, then
// updatedAt desc, plus the total number of matches. An empty source matches
// all sources; titleQuery is a case-insensitive substring filter.
func (s *Store) ListItems(source, titleQuery string, page, pageSize int) ([]*NoticeItem, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	query := strings.ToLower(titleQuery)

	var items []*NoticeItem
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(itemsBucket).ForEach(func(_ []byte, v []byte) error {
			var item NoticeItem
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			if source != "" && item.Source != source {
				return nil
			}
			if query != "" && !strings.Contains(strings.ToLower(item.Title), query) {
				return nil
			}
			items = append(items, &item)
			return nil
		})
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing items: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		pi, pj := timeOrZero(items[i].PublishedAt), timeOrZero(items[j].PublishedAt)
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		ui, uj := timeOrZero(items[i].UpdatedAt), timeOrZero(items[j].UpdatedAt)
		if !ui.Equal(uj) {
			return ui.After(uj)
		}
		return items[i].ID < items[j].ID
	})

	total := len(items)
	start := (page - 1) * pageSize
	if start >= total {
		return []*NoticeItem{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

// UpsertSnapshot stores normalized text for an item, keyed by content hash.
// If a snapshot with this (itemID, contentHash) already exists it is
// returned unchanged with inserted=false.
func (s *Store) UpsertSnapshot(itemID, contentHash, normalizedText string) (*NoticeSnapshot, bool, error) {
	id := SnapshotID(itemID, contentHash)

	var snap NoticeSnapshot
	inserted := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(snapshotsBucket)
		if data := b.Get([]byte(id)); data != nil {
			return json.Unmarshal(data, &snap)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		snap = NoticeSnapshot{
			ID:             id,
			ItemID:         itemID,
			ContentHash:    contentHash,
			NormalizedText: normalizedText,
			FetchedAt:      time.Now().UTC(),
			Seq:            seq,
		}
		data, err := json.Marshal(&snap)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(id), data); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("upserting snapshot: %w", err)
	}
	return &snap, inserted, nil
}

func (s *Store) GetSnapshot(id string) (*NoticeSnapshot, error) {
	var snap NoticeSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(snapshotsBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// LatestSnapshot returns the snapshot with the maximum fetchedAt for the
// item, or nil if the item has none.
func (s *Store) LatestSnapshot(itemID string) (*NoticeSnapshot, error) {
	var latest *NoticeSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).ForEach(func(_ []byte, v []byte) error {
			var snap NoticeSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return err
			}
			if snap.ItemID != itemID {
				return nil
			}
			if latest == nil || snap.FetchedAt.After(latest.FetchedAt) ||
				(snap.FetchedAt.Equal(latest.FetchedAt) && snap.Seq > latest.Seq) {
				found := snap
				latest = &found
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading latest snapshot: %w", err)
	}
	return latest, nil
}

// UpsertDiff stores the diff for a snapshot transition. Recomputing the same
// (from, to) transition overwrites the JSON but keeps the original CreatedAt.
func (s *Store) UpsertDiff(itemID, fromSnapshotID, toSnapshotID, diffJSON string) (*NoticeDiff, error) {
	id := DiffID(fromSnapshotID, toSnapshotID)

	diff := NoticeDiff{
		ID:             id,
		ItemID:         itemID,
		FromSnapshotID: fromSnapshotID,
		ToSnapshotID:   toSnapshotID,
		DiffJSON:       diffJSON,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(diffsBucket)
		if data := b.Get([]byte(id)); data != nil {
			var existing NoticeDiff
			if err := json.Unmarshal(data, &existing); err != nil {
				return err
			}
			diff.CreatedAt = existing.CreatedAt
			diff.Seq = existing.Seq
		} else {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			diff.CreatedAt = time.Now().UTC()
			diff.Seq = seq
		}

		data, err := json.Marshal(&diff)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return nil, fmt.Errorf("upserting diff: %w", err)
	}
	return &diff, nil
}

// LatestDiff returns the most recent diff for the item, or nil if none.
func (s *Store) LatestDiff(itemID string) (*NoticeDiff, error) {
	var latest *NoticeDiff
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(diffsBucket).ForEach(func(_ []byte, v []byte) error {
			var diff NoticeDiff
			if err := json.Unmarshal(v, &diff); err != nil {
				return err
			}
			if diff.ItemID != itemID {
				return nil
			}
			if latest == nil || diff.CreatedAt.After(latest.CreatedAt) ||
				(diff.CreatedAt.Equal(latest.CreatedAt) && diff.Seq > latest.Seq) {
				found := diff
				latest = &found
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading latest diff: %w", err)
	}
	return latest, nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
