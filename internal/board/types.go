package board

import (
	"fmt"
	"time"
)

// Source is a logical remote board category, e.g. "notice" or "update".
type Source string

// ArticleMeta is the board-listing view of an article. Timestamps are kept
// as the raw strings the remote sent; ParseTime resolves them.
type ArticleMeta struct {
	ID          string
	Title       string
	URL         string
	PublishedAt string
	UpdatedAt   string
	PostedAt    string
}

// ArticleDetail is ArticleMeta plus the raw article HTML.
type ArticleDetail struct {
	ArticleMeta
	ContentHTML string
}

// Page is one slice of the paginated board listing.
type Page struct {
	Metas   []ArticleMeta
	HasMore bool
}

// FetchOptions controls how FetchLatest walks the board.
type FetchOptions struct {
	MaxPages      int
	PageSize      int
	IncludePinned bool
}

// FetchError reports a non-2xx response from the board API.
type FetchError struct {
	Status int
	URL    string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("board: http %d fetching %s", e.Status, e.URL)
}

// ShapeError reports a remote payload that decodes but lacks required
// fields. It is fatal for the one article it concerns, never for a whole
// sync run.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return "board: unexpected payload shape: " + e.Reason
}

// timeLayouts covers the formats the board has been observed to emit.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a remote timestamp string. Missing or unparsable input
// yields nil rather than an error; callers treat nil as "no data".
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
