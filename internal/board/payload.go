package board

import (
	"encoding/json"
)

// metaPayload is the loosely-typed wire form of a listing entry. Remote ids
// arrive as JSON numbers or strings depending on the endpoint; both are
// canonicalized to a string.
type metaPayload struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	PublishedAt string          `json:"publishedAt"`
	UpdatedAt   string          `json:"updatedAt"`
	PostedAt    string          `json:"postedAt"`
}

type detailPayload struct {
	metaPayload
	Content *string `json:"content"`
}

func (p *metaPayload) idString() string {
	if len(p.ID) == 0 || string(p.ID) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.ID, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(p.ID, &n); err == nil {
		return n.String()
	}
	return ""
}

func (p *metaPayload) toMeta() ArticleMeta {
	return ArticleMeta{
		ID:          p.idString(),
		Title:       p.Title,
		URL:         p.URL,
		PublishedAt: p.PublishedAt,
		UpdatedAt:   p.UpdatedAt,
		PostedAt:    p.PostedAt,
	}
}

// toMetas converts listing entries, dropping ones without a resolvable id.
func toMetas(payloads []metaPayload) []ArticleMeta {
	metas := make([]ArticleMeta, 0, len(payloads))
	for i := range payloads {
		meta := payloads[i].toMeta()
		if meta.ID == "" {
			continue
		}
		metas = append(metas, meta)
	}
	return metas
}

// validate turns a detail payload into an ArticleDetail or a *ShapeError.
func (p *detailPayload) validate() (*ArticleDetail, error) {
	meta := p.toMeta()
	if meta.ID == "" {
		return nil, &ShapeError{Reason: "detail has no resolvable id"}
	}
	if meta.Title == "" {
		return nil, &ShapeError{Reason: "detail has no title"}
	}
	if p.Content == nil {
		return nil, &ShapeError{Reason: "detail has no content html"}
	}
	return &ArticleDetail{ArticleMeta: meta, ContentHTML: *p.Content}, nil
}
