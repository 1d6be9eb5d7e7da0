package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pareto/internal/config"
	"github.com/MikeSquared-Agency/Pareto/internal/demand"
	"github.com/MikeSquared-Agency/Pareto/internal/pricing"
	"github.com/MikeSquared-Agency/Pareto/internal/store"
)

// Mocks
type mockStore struct {
	frontiers map[string]*store.Frontier
	listCalls int
}

func newMockStore() *mockStore {
	return &mockStore{frontiers: make(map[string]*store.Frontier)}
}
func (m *mockStore) SaveFrontier(_ context.Context, f *store.Frontier) error {
	m.frontiers[f.Tag] = f
	return nil
}
func (m *mockStore) GetFrontier(_ context.Context, tag string) (*store.Frontier, error) {
	return m.frontiers[tag], nil
}
func (m *mockStore) ListFrontiers(_ context.Context) ([]store.Summary, error) {
	m.listCalls++
	var out []store.Summary
	for _, f := range m.frontiers {
		out = append(out, f.Summary())
	}
	return out, nil
}
func (m *mockStore) Close() error { return nil }

var refKey = demand.Key{Consumer: "ELECTRICITY", Node: "GERMANY", Hour: 12, TypicalDay: 6}

func testInstance() *Instance {
	tbl := demand.NewTable()
	tbl.AddSegment(refKey, demand.Segment{Index: 0, Intercept: 8000, Slope: 80, Width: 95})
	tbl.AddSegment(refKey, demand.Segment{Index: 1, Intercept: 400, Slope: 40, Width: 5})
	tbl.AddSegment(refKey, demand.Segment{Index: 2, Intercept: 200, Slope: 20, Width: 10})
	tbl.SetReference(refKey, demand.ReferencePoint{Quantity: 100, Price: 100})

	voll := demand.Key{Consumer: "HEAT", Node: "GERMANY", Hour: 3, TypicalDay: 1}
	tbl.AddSegment(voll, demand.Segment{Index: 0, Intercept: 3000, Slope: 0, Width: 40})
	tbl.SetReference(voll, demand.ReferencePoint{Quantity: 40, Price: 3000})

	price := func(v float64, hours float64) pricing.Price {
		return pricing.Price{
			DualRecord: pricing.DualRecord{Commodity: "ELECTRICITY", Node: "GERMANY", Mult: hours, TOp: 1},
			Value:      v,
		}
	}
	return &Instance{
		Table:    tbl,
		Prices:   []pricing.Price{price(0, 10), price(100, 20), price(500, 10)},
		LoadedAt: time.Now(),
	}
}

func eps(v float64) *float64 { return &v }

func testFrontier() *store.Frontier {
	return &store.Frontier{
		ID:      uuid.New(),
		SweepID: uuid.New(),
		Tag:     "elast_5pct",
		Points: []store.Point{
			{TotalEmissions: 100, SocialWelfare: 100, Epsilon: eps(0)},
			{TotalEmissions: 300, SocialWelfare: 90, Epsilon: eps(300)},
			{TotalEmissions: 1000, SocialWelfare: 400},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func setupTestRouter(inst *Instance, load Loader) (http.Handler, *mockStore, *FrontiersHandler) {
	ms := newMockStore()
	ms.frontiers["elast_5pct"] = testFrontier()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()
	cfg.Server.AdminToken = "test-token"
	frontiers := NewFrontiersHandler(ms, time.Minute)
	router := NewRouter(frontiers, NewAnalysisHandler(inst, load, cfg), cfg, logger)
	return router, ms, frontiers
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestListFrontiers(t *testing.T) {
	router, ms, frontiers := setupTestRouter(nil, nil)

	w := get(t, router, "/api/v1/frontiers")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var sums []store.Summary
	json.NewDecoder(w.Body).Decode(&sums)
	if len(sums) != 1 || sums[0].Points != 3 || sums[0].MaxWelfare != 400 {
		t.Errorf("unexpected summaries %+v", sums)
	}

	get(t, router, "/api/v1/frontiers")
	if ms.listCalls != 1 {
		t.Errorf("expected cached list, store called %d times", ms.listCalls)
	}
	frontiers.Invalidate()
	get(t, router, "/api/v1/frontiers")
	if ms.listCalls != 2 {
		t.Errorf("expected reload after invalidate, store called %d times", ms.listCalls)
	}
}

func TestListFrontiersCacheExpires(t *testing.T) {
	ms := newMockStore()
	ms.frontiers["elast_5pct"] = testFrontier()
	frontiers := NewFrontiersHandler(ms, 30*time.Second)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	frontiers.now = func() time.Time { return clock }

	list := func() {
		w := httptest.NewRecorder()
		frontiers.List(w, httptest.NewRequest("GET", "/api/v1/frontiers", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}

	list()
	clock = clock.Add(29 * time.Second)
	list()
	if ms.listCalls != 1 {
		t.Errorf("expected cached list within ttl, store called %d times", ms.listCalls)
	}

	ms.frontiers["elast_10pct"] = testFrontier()
	clock = clock.Add(2 * time.Second)
	w := httptest.NewRecorder()
	frontiers.List(w, httptest.NewRequest("GET", "/api/v1/frontiers", nil))
	if ms.listCalls != 2 {
		t.Errorf("expected reload after ttl, store called %d times", ms.listCalls)
	}
	var sums []store.Summary
	json.NewDecoder(w.Body).Decode(&sums)
	if len(sums) != 2 {
		t.Errorf("expected 2 summaries after reload, got %d", len(sums))
	}
}

func TestListFrontiersWithoutCache(t *testing.T) {
	ms := newMockStore()
	frontiers := NewFrontiersHandler(ms, 0)
	for i := 0; i < 3; i++ {
		frontiers.List(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/frontiers", nil))
	}
	if ms.listCalls != 3 {
		t.Errorf("expected every request to hit the store, got %d calls", ms.listCalls)
	}
}

func TestGetFrontier(t *testing.T) {
	router, _, _ := setupTestRouter(nil, nil)

	w := get(t, router, "/api/v1/frontiers/elast_5pct")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp FrontierResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Points) != 3 || resp.Efficient {
		t.Errorf("expected all 3 points, got %d", len(resp.Points))
	}
	if len(resp.NormalizedWelfare) != 3 || resp.NormalizedWelfare[2] != 1 || resp.NormalizedWelfare[0] != 0.25 {
		t.Errorf("unexpected normalized welfare %v", resp.NormalizedWelfare)
	}
	if resp.Points[2].Epsilon != nil {
		t.Error("unconstrained point should have null epsilon")
	}

	w = get(t, router, "/api/v1/frontiers/elast_5pct?efficient=true")
	resp = FrontierResponse{}
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Efficient || len(resp.Points) != 2 {
		t.Errorf("expected 2 efficient points, got %d", len(resp.Points))
	}

	w = get(t, router, "/api/v1/frontiers/unknown")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCurveEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(testInstance(), nil)

	w := get(t, router, "/api/v1/curves/ELECTRICITY/GERMANY/12/6")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp CurveResponse
	json.NewDecoder(w.Body).Decode(&resp)
	want := []float64{0, 95, 100, 110}
	for i, q := range want {
		if resp.Quantities[i] != q {
			t.Errorf("quantity %d: expected %g, got %g", i, q, resp.Quantities[i])
		}
	}
	if resp.VOLL || !resp.SpanOK || resp.Reference == nil || resp.Reference.Quantity != 100 {
		t.Errorf("unexpected curve response %+v", resp)
	}

	w = get(t, router, "/api/v1/curves/HEAT/GERMANY/3/1")
	resp = CurveResponse{}
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.VOLL || resp.SpanOK {
		t.Errorf("expected VOLL curve failing the span check, got %+v", resp)
	}

	if w := get(t, router, "/api/v1/curves/NONE/GERMANY/12/6"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := get(t, router, "/api/v1/curves/ELECTRICITY/GERMANY/noon/6"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestElasticityEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(testInstance(), nil)

	w := get(t, router, "/api/v1/elasticity/ELECTRICITY/GERMANY/12/6")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ElasticityResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Mode != "quantity" || resp.Segment != 1 || resp.Elasticity > -0.0499 || resp.Elasticity < -0.0501 {
		t.Errorf("unexpected quantity-mode estimate %+v", resp)
	}

	w = get(t, router, "/api/v1/elasticity/ELECTRICITY/GERMANY/12/6?mode=price&profile=true")
	resp = ElasticityResponse{}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Mode != "price" || resp.Segment != 2 || len(resp.Profile) == 0 {
		t.Errorf("unexpected price-mode estimate %+v", resp)
	}

	if w := get(t, router, "/api/v1/elasticity/HEAT/GERMANY/3/1"); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for VOLL curve, got %d", w.Code)
	}
	if w := get(t, router, "/api/v1/elasticity/ELECTRICITY/GERMANY/12/6?mode=arc"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown mode, got %d", w.Code)
	}
}

func TestPriceSummaryEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(testInstance(), nil)

	w := get(t, router, "/api/v1/prices/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var sum pricing.Summary
	json.NewDecoder(w.Body).Decode(&sum)
	if sum.ZeroPriceHours != 10 || sum.PeakPriceHours != 10 || sum.AveragePrice != 175 {
		t.Errorf("unexpected summary %+v", sum)
	}

	w = get(t, router, "/api/v1/prices/summary?peak=50")
	sum = pricing.Summary{}
	json.NewDecoder(w.Body).Decode(&sum)
	if sum.PeakPriceHours != 30 || sum.Thresholds.PeakThreshold != 50 {
		t.Errorf("expected peak override, got %+v", sum)
	}

	if w := get(t, router, "/api/v1/prices/summary?commodity=HEAT"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := get(t, router, "/api/v1/prices/summary?zero_tol=abc"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalysisWithoutInstance(t *testing.T) {
	router, _, _ := setupTestRouter(nil, nil)
	if w := get(t, router, "/api/v1/prices/summary"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestReloadRequiresAdminToken(t *testing.T) {
	loads := 0
	load := func() (*Instance, error) {
		loads++
		return testInstance(), nil
	}
	router, _, _ := setupTestRouter(nil, load)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/admin/reload", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/v1/admin/reload", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || loads != 1 {
		t.Fatalf("expected reload, got %d after %d loads", w.Code, loads)
	}

	if w := get(t, router, "/api/v1/prices/summary"); w.Code != http.StatusOK {
		t.Errorf("expected instance after reload, got %d", w.Code)
	}
}

func TestReloadFailureKeepsInstance(t *testing.T) {
	router, _, _ := setupTestRouter(testInstance(), func() (*Instance, error) {
		return nil, errors.New("export missing")
	})

	req := httptest.NewRequest("POST", "/api/v1/admin/reload", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if w := get(t, router, "/api/v1/prices/summary"); w.Code != http.StatusOK {
		t.Errorf("previous instance should still be served, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	w := get(t, router, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
