// Package server exposes the read-side HTTP JSON API: item listings, item
// detail with the latest snapshot summary, latest diffs and a manual sync
// trigger. All writes happen in the sync pipeline; this surface is
// read-only apart from the trigger.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/servaltullius/aion2-hub-sub001/internal/debuglog"
	"github.com/servaltullius/aion2-hub-sub001/internal/scheduler"
	"github.com/servaltullius/aion2-hub-sub001/internal/storage"
)

type Server struct {
	store *storage.Store
	sched *scheduler.Scheduler
}

func New(store *storage.Store, sched *scheduler.Scheduler) *Server {
	return &Server{store: store, sched: sched}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("GET /api/items/{id}", s.handleGetItem)
	mux.HandleFunc("GET /api/items/{id}/diff", s.handleGetLatestDiff)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/sync", s.handleTriggerSync)
	return mux
}

type listResponse struct {
	Items    []*storage.NoticeItem `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(q.Get("page"), 1)
	pageSize := intParam(q.Get("pageSize"), 20)

	items, total, err := s.store.ListItems(q.Get("source"), q.Get("q"), page, pageSize)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

type itemResponse struct {
	Item           *storage.NoticeItem      `json:"item"`
	LatestSnapshot *storage.SnapshotSummary `json:"latest_snapshot"`
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetItemByID(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	snap, err := s.store.LatestSnapshot(item.ID)
	if err != nil {
		s.fail(w, err)
		return
	}

	resp := itemResponse{Item: item}
	if snap != nil {
		summary := snap.Summary()
		resp.LatestSnapshot = &summary
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLatestDiff(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetItemByID(r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	diff, err := s.store.LatestDiff(item.ID)
	if err != nil {
		s.fail(w, err)
		return
	}

	// diff is nil when the item never changed; the client gets JSON null.
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Status())
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	status, err := s.sched.TriggerManual(r.Context())
	if err != nil {
		// The run's failure is already part of the status; the trigger
		// itself succeeded.
		debuglog.Warnf("manual sync failed: %v", err)
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	debuglog.Errorf("api error: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debuglog.Errorf("encoding response: %v", err)
	}
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
