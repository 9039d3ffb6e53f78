// Package board talks to the external game board API: pinned listings,
// cursor-paginated listings and per-article detail.
//
// Remote payloads are decoded loosely and passed through an explicit
// validation step. Unknown fields are ignored; where the contract says a
// missing field means "no data" (absent pinned/list arrays, unparsable
// timestamps) no error is raised, while a detail response without a
// resolvable id, title or content string fails with *ShapeError.
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultUserAgent = "noticehub/1.0 (board watcher)"
	defaultTimeout   = 30 * time.Second
)

// StartCursor is the cursor value that requests the first page.
const StartCursor = "0"

type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewClient(baseURL string, timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// FetchPinned returns the board-pinned articles for a source. A response
// without a pinned list yields an empty slice.
func (c *Client) FetchPinned(ctx context.Context, source Source) ([]ArticleMeta, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/%s/pinned", c.baseURL, source), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Pinned []metaPayload `json:"pinned"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return []ArticleMeta{}, nil
	}
	return toMetas(payload.Pinned), nil
}

// FetchPage returns one page of the board listing. The cursor is the id of
// the last article of the previous page; StartCursor requests the first
// page. A malformed payload yields an empty page, not an error.
func (c *Client) FetchPage(ctx context.Context, source Source, cursor string, pageSize int) (Page, error) {
	query := url.Values{}
	query.Set("cursor", cursor)
	query.Set("size", strconv.Itoa(pageSize))

	body, err := c.get(ctx, fmt.Sprintf("%s/%s/list", c.baseURL, source), query)
	if err != nil {
		return Page{}, err
	}

	var payload struct {
		List    []metaPayload `json:"list"`
		HasNext bool          `json:"hasNext"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Page{Metas: []ArticleMeta{}}, nil
	}
	return Page{Metas: toMetas(payload.List), HasMore: payload.HasNext}, nil
}

// FetchLatest merges pinned articles with up to opts.MaxPages pages of the
// listing into one set de-duplicated by remote id. Pinned articles are added
// first and first-seen wins, so a pinned article never gets overridden by
// its paginated copy. Pagination stops early when a page reports no further
// pages or returns zero articles.
//
// On a page fetch failure the articles collected so far are returned
// together with the error, so a caller can still process the partial
// listing.
func (c *Client) FetchLatest(ctx context.Context, source Source, opts FetchOptions) ([]ArticleMeta, error) {
	seen := make(map[string]bool)
	var metas []ArticleMeta

	add := func(batch []ArticleMeta) {
		for _, meta := range batch {
			if seen[meta.ID] {
				continue
			}
			seen[meta.ID] = true
			metas = append(metas, meta)
		}
	}

	if opts.IncludePinned {
		pinned, err := c.FetchPinned(ctx, source)
		if err != nil {
			return metas, err
		}
		add(pinned)
	}

	cursor := StartCursor
	for page := 0; page < opts.MaxPages; page++ {
		result, err := c.FetchPage(ctx, source, cursor, opts.PageSize)
		if err != nil {
			return metas, err
		}
		if len(result.Metas) == 0 {
			break
		}
		add(result.Metas)
		if !result.HasMore {
			break
		}
		cursor = result.Metas[len(result.Metas)-1].ID
	}

	return metas, nil
}

// FetchDetail fetches one article with its content HTML. A response lacking
// a resolvable id/title or a content string fails with *ShapeError.
func (c *Client) FetchDetail(ctx context.Context, source Source, id string) (*ArticleDetail, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/%s/articles/%s", c.baseURL, source, url.PathEscape(id)), nil)
	if err != nil {
		return nil, err
	}

	var payload detailPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ShapeError{Reason: "detail response is not a JSON object"}
	}
	return payload.validate()
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching board: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Status: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
