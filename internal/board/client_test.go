package board

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(url, 5*time.Second, "noticehub-test/1.0")
}

func TestClient_FetchPinned(t *testing.T) {
	tests := []struct {
		name         string
		response     func(w http.ResponseWriter, r *http.Request)
		expectIDs    []string
		expectError  bool
		expectStatus int
	}{
		{
			name: "pinned entries",
			response: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"pinned":[{"id":101,"title":"Notice A"},{"id":"102","title":"Notice B"}]}`)
			},
			expectIDs: []string{"101", "102"},
		},
		{
			name: "missing pinned field yields empty list",
			response: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"something":"else"}`)
			},
			expectIDs: []string{},
		},
		{
			name: "malformed payload yields empty list",
			response: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `not json at all`)
			},
			expectIDs: []string{},
		},
		{
			name: "entries without id are dropped",
			response: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"pinned":[{"title":"no id"},{"id":7,"title":"ok"}]}`)
			},
			expectIDs: []string{"7"},
		},
		{
			name: "server error",
			response: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			expectError:  true,
			expectStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/notice/pinned" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("User-Agent") != "noticehub-test/1.0" {
					t.Errorf("unexpected User-Agent %s", r.Header.Get("User-Agent"))
				}
				tt.response(w, r)
			}))
			defer server.Close()

			metas, err := newTestClient(server.URL).FetchPinned(context.Background(), "notice")

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var fetchErr *FetchError
				if !errors.As(err, &fetchErr) {
					t.Fatalf("expected *FetchError, got %T", err)
				}
				if fetchErr.Status != tt.expectStatus {
					t.Errorf("expected status %d, got %d", tt.expectStatus, fetchErr.Status)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ids := make([]string, 0, len(metas))
			for _, m := range metas {
				ids = append(ids, m.ID)
			}
			if len(ids) != len(tt.expectIDs) {
				t.Fatalf("expected ids %v, got %v", tt.expectIDs, ids)
			}
			for i := range ids {
				if ids[i] != tt.expectIDs[i] {
					t.Errorf("expected ids %v, got %v", tt.expectIDs, ids)
				}
			}
		})
	}
}

func TestClient_FetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/update/list" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("cursor"); got != "0" {
			t.Errorf("expected cursor 0, got %s", got)
		}
		if got := r.URL.Query().Get("size"); got != "20" {
			t.Errorf("expected size 20, got %s", got)
		}
		fmt.Fprint(w, `{"list":[{"id":1,"title":"a"},{"id":2,"title":"b"}],"hasNext":true,"extra":"ignored"}`)
	}))
	defer server.Close()

	page, err := newTestClient(server.URL).FetchPage(context.Background(), "update", StartCursor, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Metas) != 2 {
		t.Fatalf("expected 2 metas, got %d", len(page.Metas))
	}
	if !page.HasMore {
		t.Error("expected hasMore")
	}
}

func TestClient_FetchPage_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	page, err := newTestClient(server.URL).FetchPage(context.Background(), "update", StartCursor, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Metas) != 0 || page.HasMore {
		t.Errorf("expected empty page, got %+v", page)
	}
}

func TestClient_FetchLatest(t *testing.T) {
	var pageCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notice/pinned":
			fmt.Fprint(w, `{"pinned":[{"id":1,"title":"pinned one"},{"id":2,"title":"pinned two"}]}`)
		case "/notice/list":
			pageCalls++
			switch r.URL.Query().Get("cursor") {
			case "0":
				// id 2 appears again with a different title; the pinned
				// version must win.
				fmt.Fprint(w, `{"list":[{"id":2,"title":"paginated two"},{"id":3,"title":"three"}],"hasNext":true}`)
			case "3":
				fmt.Fprint(w, `{"list":[{"id":4,"title":"four"}],"hasNext":false}`)
			default:
				t.Errorf("unexpected cursor %s", r.URL.Query().Get("cursor"))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	metas, err := newTestClient(server.URL).FetchLatest(context.Background(), "notice", FetchOptions{
		MaxPages:      5,
		PageSize:      20,
		IncludePinned: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pageCalls != 2 {
		t.Errorf("expected pagination to stop after 2 pages, got %d", pageCalls)
	}

	wantIDs := []string{"1", "2", "3", "4"}
	if len(metas) != len(wantIDs) {
		t.Fatalf("expected %d metas, got %d", len(wantIDs), len(metas))
	}
	for i, want := range wantIDs {
		if metas[i].ID != want {
			t.Errorf("position %d: expected id %s, got %s", i, want, metas[i].ID)
		}
	}
	if metas[1].Title != "pinned two" {
		t.Errorf("first-seen must win for duplicated id, got title %q", metas[1].Title)
	}
}

func TestClient_FetchLatest_StopsOnEmptyPage(t *testing.T) {
	var pageCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageCalls++
		fmt.Fprint(w, `{"list":[],"hasNext":true}`)
	}))
	defer server.Close()

	metas, err := newTestClient(server.URL).FetchLatest(context.Background(), "notice", FetchOptions{
		MaxPages: 10,
		PageSize: 20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("expected no metas, got %d", len(metas))
	}
	if pageCalls != 1 {
		t.Errorf("expected a single page call, got %d", pageCalls)
	}
}

func TestClient_FetchLatest_ReturnsPartialOnPageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notice/pinned":
			fmt.Fprint(w, `{"pinned":[{"id":1,"title":"one"}]}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	metas, err := newTestClient(server.URL).FetchLatest(context.Background(), "notice", FetchOptions{
		MaxPages:      2,
		PageSize:      20,
		IncludePinned: true,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(metas) != 1 || metas[0].ID != "1" {
		t.Errorf("expected the pinned meta to survive the page failure, got %+v", metas)
	}
}

func TestClient_FetchDetail(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		status      int
		expectShape bool
		expectFetch bool
	}{
		{
			name:    "valid detail",
			payload: `{"id":55,"title":"Patch notes","url":"https://board.example/55","content":"<p>hello</p>","publishedAt":"2026-08-20T10:00:00Z"}`,
		},
		{
			name:        "missing content",
			payload:     `{"id":55,"title":"Patch notes"}`,
			expectShape: true,
		},
		{
			name:        "missing title",
			payload:     `{"id":55,"content":"<p>x</p>"}`,
			expectShape: true,
		},
		{
			name:        "missing id",
			payload:     `{"title":"Patch notes","content":"<p>x</p>"}`,
			expectShape: true,
		},
		{
			name:        "not an object",
			payload:     `[1,2,3]`,
			expectShape: true,
		},
		{
			name:        "http error",
			status:      http.StatusNotFound,
			expectFetch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/notice/articles/55" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if tt.status != 0 {
					w.WriteHeader(tt.status)
					return
				}
				fmt.Fprint(w, tt.payload)
			}))
			defer server.Close()

			detail, err := newTestClient(server.URL).FetchDetail(context.Background(), "notice", "55")

			switch {
			case tt.expectShape:
				var shapeErr *ShapeError
				if !errors.As(err, &shapeErr) {
					t.Fatalf("expected *ShapeError, got %v", err)
				}
			case tt.expectFetch:
				var fetchErr *FetchError
				if !errors.As(err, &fetchErr) {
					t.Fatalf("expected *FetchError, got %v", err)
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if detail.ID != "55" || detail.Title != "Patch notes" {
					t.Errorf("unexpected meta: %+v", detail.ArticleMeta)
				}
				if detail.ContentHTML != "<p>hello</p>" {
					t.Errorf("unexpected content: %q", detail.ContentHTML)
				}
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, 20*time.Millisecond, "")
	_, err := client.FetchPinned(context.Background(), "notice")
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
