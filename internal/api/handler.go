package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/feedwatch/feedwatch/internal/history"
	"github.com/feedwatch/feedwatch/internal/security"
	"github.com/feedwatch/feedwatch/internal/status"
)

// Handler is the HTTP handler for all /api/v1/* endpoints. It reads feed
// state from the status store and spike history from the SQLite store.
type Handler struct {
	store   *status.Store
	history *history.Store
	certs   func() []security.CertStatus
	started time.Time
	mux     *http.ServeMux
}

// New creates a Handler wired to the given stores and registers all routes.
// certs may be nil when no HTTPS sources are configured.
func New(st *status.Store, hist *history.Store, certs func() []security.CertStatus) http.Handler {
	h := &Handler{
		store:   st,
		history: hist,
		certs:   certs,
		started: time.Now(),
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/feeds", h.listFeeds)
	h.mux.HandleFunc("/api/v1/feeds/", h.getFeed) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/spikes", h.spikes)
	h.mux.HandleFunc("/api/v1/certs", h.certStatuses)
	h.mux.HandleFunc("/api/v1/diagnostics", h.diagnostics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health serves GET /api/v1/health: liveness plus feed state counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{
		Status:    "ok",
		FeedCount: len(entries),
	}
	for _, e := range entries {
		if e.Status.Spiked {
			resp.SpikingCount++
		}
		if e.Status.Unskewed != nil {
			resp.CorrectingCount++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listFeeds serves GET /api/v1/feeds: all live feeds, most listened first.
func (h *Handler) listFeeds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store).Feeds)
}

// getFeed serves GET /api/v1/feeds/{id}: a single live feed including its
// hourly baseline table.
func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/feeds/")
	if raw == "" {
		// Redirect bare /api/v1/feeds/ to the list handler.
		h.listFeeds(w, r)
		return
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid feed id")
		return
	}

	e, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "feed not found")
		return
	}

	jsonResp(w, http.StatusOK, toFeedResponse(e, true))
}

// spikes serves GET /api/v1/spikes?feed_id=&limit=, the recorded spike history,
// newest first.
func (h *Handler) spikes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	feedID := 0
	if raw := q.Get("feed_id"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid feed_id")
			return
		}
		feedID = v
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			jsonErr(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	spikes, err := h.history.ListSpikes(r.Context(), feedID, limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "spike history unavailable")
		return
	}
	jsonResp(w, http.StatusOK, spikes)
}

// certStatuses serves GET /api/v1/certs: TLS certificate status per HTTPS
// source, refreshed once per polling cycle.
func (h *Handler) certStatuses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	out := []security.CertStatus{}
	if h.certs != nil {
		if cs := h.certs(); cs != nil {
			out = cs
		}
	}
	jsonResp(w, http.StatusOK, out)
}

// diagnostics serves GET /api/v1/diagnostics: process-level runtime info.
func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	recorded, err := h.history.CountSpikes(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "spike history unavailable")
		return
	}

	jsonResp(w, http.StatusOK, DiagnosticsResponse{
		Uptime:         time.Since(h.started).Round(time.Second).String(),
		Goroutines:     runtime.NumGoroutine(),
		GoVersion:      runtime.Version(),
		FeedsTracked:   h.store.Count(),
		SpikesRecorded: recorded,
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// BuildSnapshot renders the status store as the shared live view, feeds
// ordered by listener count descending (ties by id).
func BuildSnapshot(st *status.Store) SnapshotResponse {
	entries := st.List()
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Status, entries[j].Status
		if a.Listeners != b.Listeners {
			return a.Listeners > b.Listeners
		}
		return a.ID < b.ID
	})

	feeds := make([]FeedResponse, 0, len(entries))
	for _, e := range entries {
		feeds = append(feeds, toFeedResponse(e, false))
	}
	return SnapshotResponse{
		Feeds:       feeds,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// toFeedResponse maps a status entry to its JSON representation.
func toFeedResponse(e *status.Entry, includeHourly bool) FeedResponse {
	st := e.Status
	fr := FeedResponse{
		ID:          st.ID,
		Name:        st.Name,
		Listeners:   st.Listeners,
		Average:     st.Average,
		Delta:       st.Delta,
		Spiked:      st.Spiked,
		Streak:      st.Streak,
		Unskewed:    st.Unskewed,
		Alert:       st.Alert,
		Diagnostics: computeDiagnostics(st),
		UpdatedAt:   e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if includeHourly {
		fr.Hourly = st.Hourly[:]
	}
	return fr
}
