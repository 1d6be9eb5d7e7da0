package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Pareto/internal/config"
	"github.com/MikeSquared-Agency/Pareto/internal/demand"
	"github.com/MikeSquared-Agency/Pareto/internal/pricing"
)

// AnalysisHandler answers single-instance questions: curve shape, local
// elasticity and price statistics.
type AnalysisHandler struct {
	load    Loader
	demand  config.DemandConfig
	pricing config.PricingConfig

	mu   sync.RWMutex
	inst *Instance
}

// NewAnalysisHandler serves inst, which may be nil until a reload succeeds.
func NewAnalysisHandler(inst *Instance, load Loader, cfg *config.Config) *AnalysisHandler {
	return &AnalysisHandler{load: load, demand: cfg.Demand, pricing: cfg.Pricing, inst: inst}
}

func (h *AnalysisHandler) instance(w http.ResponseWriter) *Instance {
	h.mu.RLock()
	inst := h.inst
	h.mu.RUnlock()
	if inst == nil {
		writeError(w, http.StatusServiceUnavailable, "no instance loaded")
	}
	return inst
}

func curveKey(r *http.Request) (demand.Key, error) {
	hour, err := strconv.Atoi(chi.URLParam(r, "hour"))
	if err != nil {
		return demand.Key{}, errors.New("invalid hour")
	}
	td, err := strconv.Atoi(chi.URLParam(r, "td"))
	if err != nil {
		return demand.Key{}, errors.New("invalid typical day")
	}
	return demand.Key{
		Consumer:   chi.URLParam(r, "ct"),
		Node:       chi.URLParam(r, "node"),
		Hour:       hour,
		TypicalDay: td,
	}, nil
}

func demandStatus(err error) int {
	switch {
	case errors.Is(err, demand.ErrNoCurve):
		return http.StatusNotFound
	case errors.Is(err, demand.ErrUndefinedElasticity), errors.Is(err, demand.ErrVOLLInverse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type CurveResponse struct {
	demand.Curve
	Reference *demand.ReferencePoint `json:"reference,omitempty"`
	SpanOK    bool                   `json:"span_ok"`
	SpanError string                 `json:"span_error,omitempty"`
}

// Curve returns the breakpoints of one inverse demand curve.
// GET /api/v1/curves/{ct}/{node}/{hour}/{td}
func (h *AnalysisHandler) Curve(w http.ResponseWriter, r *http.Request) {
	inst := h.instance(w)
	if inst == nil {
		return
	}
	key, err := curveKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := inst.Table.BuildCurve(key)
	if err != nil {
		writeError(w, demandStatus(err), err.Error())
		return
	}

	resp := CurveResponse{Curve: c}
	if ref, err := inst.Table.Reference(key); err == nil {
		resp.Reference = &ref
	}
	if err := inst.Table.CheckSpan(key, h.demand.SpanRatio, h.demand.SpanRTol); err != nil {
		resp.SpanError = err.Error()
	} else {
		resp.SpanOK = true
	}
	writeJSON(w, http.StatusOK, resp)
}

type ElasticityResponse struct {
	Key  demand.Key `json:"key"`
	Mode string     `json:"mode"`
	demand.Estimate
	Profile []demand.ProfilePoint `json:"profile,omitempty"`
}

// Elasticity estimates the local price elasticity at the curve's reference
// quantity (mode=quantity, the default) or reference price (mode=price).
// profile=true adds the sampled elasticity profile.
// GET /api/v1/elasticity/{ct}/{node}/{hour}/{td}
func (h *AnalysisHandler) Elasticity(w http.ResponseWriter, r *http.Request) {
	inst := h.instance(w)
	if inst == nil {
		return
	}
	key, err := curveKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode := r.URL.Query().Get("mode")
	var est demand.Estimate
	switch mode {
	case "", "quantity":
		mode = "quantity"
		est, err = inst.Table.ElasticityAtQuantity(key)
	case "price":
		est, err = inst.Table.ElasticityAtPrice(key)
	default:
		writeError(w, http.StatusBadRequest, "mode must be quantity or price")
		return
	}
	if err != nil {
		writeError(w, demandStatus(err), err.Error())
		return
	}

	resp := ElasticityResponse{Key: key, Mode: mode, Estimate: est}
	if r.URL.Query().Get("profile") == "true" {
		profile, err := inst.Table.Profile(key, h.demand.ProfileSamples)
		if err != nil {
			writeError(w, demandStatus(err), err.Error())
			return
		}
		resp.Profile = profile
	}
	writeJSON(w, http.StatusOK, resp)
}

// PriceSummary summarises recovered prices of one commodity. Query parameters
// commodity, zero_tol and peak override the configured defaults.
// GET /api/v1/prices/summary
func (h *AnalysisHandler) PriceSummary(w http.ResponseWriter, r *http.Request) {
	inst := h.instance(w)
	if inst == nil {
		return
	}
	q := r.URL.Query()
	commodity := q.Get("commodity")
	if commodity == "" {
		commodity = h.pricing.Commodity
	}
	th := pricing.Thresholds{ZeroTolerance: h.pricing.ZeroTolerance, PeakThreshold: h.pricing.PeakThreshold}
	for name, dst := range map[string]*float64{"zero_tol": &th.ZeroTolerance, "peak": &th.PeakThreshold} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = v
	}

	sum, ok := pricing.Summarize(inst.Prices, commodity, th)
	if !ok {
		writeError(w, http.StatusNotFound, "no priced hours for commodity "+commodity)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Reload re-reads the instance export.
// POST /api/v1/admin/reload
func (h *AnalysisHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.load == nil {
		writeError(w, http.StatusNotImplemented, "no loader configured")
		return
	}
	inst, err := h.load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.mu.Lock()
	h.inst = inst
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "reloaded",
		"curves":    len(inst.Table.Keys()),
		"prices":    len(inst.Prices),
		"loaded_at": inst.LoadedAt,
	})
}
