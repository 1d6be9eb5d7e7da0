package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Pareto/internal/store"
	"github.com/MikeSquared-Agency/Pareto/internal/sweep"
)

// FrontiersHandler serves persisted frontiers. The summary list is cached for
// ttl, or until Invalidate is called on a frontier.persisted event. A zero ttl
// disables the cache.
type FrontiersHandler struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	cached   []store.Summary
	cachedAt time.Time
}

func NewFrontiersHandler(s store.Store, ttl time.Duration) *FrontiersHandler {
	return &FrontiersHandler{store: s, ttl: ttl, now: time.Now}
}

// Invalidate drops the cached summary list.
func (h *FrontiersHandler) Invalidate() {
	h.mu.Lock()
	h.cached = nil
	h.mu.Unlock()
}

func (h *FrontiersHandler) fresh() bool {
	return h.cached != nil && h.ttl > 0 && h.now().Sub(h.cachedAt) < h.ttl
}

// List returns a summary of every persisted frontier.
// GET /api/v1/frontiers
func (h *FrontiersHandler) List(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.fresh() {
		sums, err := h.store.ListFrontiers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if sums == nil {
			sums = []store.Summary{}
		}
		h.cached = sums
		h.cachedAt = h.now()
	}
	writeJSON(w, http.StatusOK, h.cached)
}

type FrontierResponse struct {
	*store.Frontier
	Efficient         bool      `json:"efficient"`
	NormalizedWelfare []float64 `json:"normalized_welfare,omitempty"`
}

// Get returns one scenario's frontier. With efficient=true only the
// non-dominated points are returned.
// GET /api/v1/frontiers/{tag}
func (h *FrontiersHandler) Get(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	f, err := h.store.GetFrontier(r.Context(), tag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if f == nil {
		writeError(w, http.StatusNotFound, "frontier not found")
		return
	}

	resp := FrontierResponse{Frontier: f}
	if r.URL.Query().Get("efficient") == "true" {
		cp := *f
		cp.Points = sweep.NonDominated(f.Points)
		resp.Frontier = &cp
		resp.Efficient = true
	}
	if norm, ok := sweep.NormalizedWelfare(resp.Points); ok {
		resp.NormalizedWelfare = norm
	}
	writeJSON(w, http.StatusOK, resp)
}
