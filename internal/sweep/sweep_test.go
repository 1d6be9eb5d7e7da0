package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Pareto/internal/config"
	"github.com/MikeSquared-Agency/Pareto/internal/metrics"
	"github.com/MikeSquared-Agency/Pareto/internal/oracle"
	"github.com/MikeSquared-Agency/Pareto/internal/scenario"
	"github.com/MikeSquared-Agency/Pareto/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Mock implementations

type call struct {
	params     scenario.ParameterSet
	dir        string
	dirExisted bool
}

type fakeExecutor struct {
	calls   []call
	respond func(ps scenario.ParameterSet) (*oracle.Result, error)
}

func (f *fakeExecutor) Execute(_ context.Context, ps scenario.ParameterSet, dir string) (*oracle.Result, error) {
	_, err := os.Stat(dir)
	f.calls = append(f.calls, call{params: ps, dir: dir, dirExisted: err == nil})
	if f.respond != nil {
		return f.respond(ps)
	}
	return linearModel(ps)
}

// linearModel solves anchors at emissions 1000 (uncapped) and 100 (cap 0);
// any other cap binds exactly.
func linearModel(ps scenario.ParameterSet) (*oracle.Result, error) {
	switch {
	case !ps.EpsilonEnabled:
		return &oracle.Result{TotalCost: 10, TotalEmissions: 1000, SocialWelfare: 500, SolveTime: 1}, nil
	case ps.EpsilonValue == 0:
		return &oracle.Result{TotalCost: 90, TotalEmissions: 100, SocialWelfare: 100, SolveTime: 1}, nil
	default:
		return &oracle.Result{TotalCost: 50, TotalEmissions: ps.EpsilonValue, SocialWelfare: ps.EpsilonValue / 2, SolveTime: 1}, nil
	}
}

type fakeStore struct {
	saved []*store.Frontier
}

func (s *fakeStore) SaveFrontier(_ context.Context, f *store.Frontier) error {
	s.saved = append(s.saved, f)
	return nil
}
func (s *fakeStore) GetFrontier(_ context.Context, tag string) (*store.Frontier, error) {
	for i := len(s.saved) - 1; i >= 0; i-- {
		if s.saved[i].Tag == tag {
			return s.saved[i], nil
		}
	}
	return nil, nil
}
func (s *fakeStore) ListFrontiers(_ context.Context) ([]store.Summary, error) {
	return nil, nil
}
func (s *fakeStore) Close() error { return nil }

type fakeHermes struct {
	mu       sync.Mutex
	subjects []string
}

func (h *fakeHermes) Publish(subject string, _ interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subjects = append(h.subjects, subject)
	return nil
}
func (h *fakeHermes) Subscribe(string, func(string, []byte)) error { return nil }
func (h *fakeHermes) Close()                                       {}

type harness struct {
	exec    *fakeExecutor
	store   *fakeStore
	hermes  *fakeHermes
	metrics *metrics.Metrics
	orch    *Orchestrator
	root    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Defaults()
	cfg.Sweep.RunRoot = t.TempDir()
	h := &harness{
		exec:    &fakeExecutor{},
		store:   &fakeStore{},
		hermes:  &fakeHermes{},
		metrics: metrics.New(prometheus.NewRegistry()),
		root:    cfg.Sweep.RunRoot,
	}
	h.orch = New(h.exec, h.store, h.hermes, h.metrics, cfg, discardLogger())
	return h
}

var elastic5 = scenario.Scenario{Tag: "elast_5pct", Elasticity: -0.05}

func emissions(points []store.Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.TotalEmissions
	}
	return out
}

func TestInteriorTargets(t *testing.T) {
	assert.Equal(t, []float64{325, 550, 775}, InteriorTargets(100, 1000, 5))
	assert.Equal(t, []float64{550}, InteriorTargets(100, 1000, 3))
	assert.Empty(t, InteriorTargets(100, 1000, 2))
}

func TestRunDirNames(t *testing.T) {
	v := 325.0
	assert.Equal(t, "elast_5pct_eps_NONE", RunDirName("elast_5pct", nil))
	assert.Equal(t, "elast_5pct_eps_325.00", RunDirName("elast_5pct", &v))

	dirs := newRunDirs()
	a, b := 1.001, 1.004
	assert.Equal(t, "t_eps_1.00", dirs.next("t", &a))
	assert.Equal(t, "t_eps_1.00_2", dirs.next("t", &b))
	assert.Equal(t, "t_eps_1.00_3", dirs.next("t", &a))
	assert.Equal(t, "t_eps_NONE", dirs.next("t", nil))
}

func TestRunScenarioBuildsSortedFrontier(t *testing.T) {
	h := newHarness(t)

	f, err := h.orch.RunScenario(context.Background(), elastic5)
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, []float64{100, 325, 550, 775, 1000}, emissions(f.Points))
	assert.Nil(t, f.Points[4].Epsilon)
	require.NotNil(t, f.Points[0].Epsilon)
	assert.Equal(t, 0.0, *f.Points[0].Epsilon)
	for _, p := range f.Points {
		assert.Equal(t, "elast_5pct", p.ElasticityTag)
		assert.Equal(t, 1.0, p.SolveTime)
	}

	require.Len(t, h.store.saved, 1)
	assert.Same(t, f, h.store.saved[0])

	require.Len(t, h.exec.calls, 5)
	wantDirs := []string{
		"elast_5pct_eps_NONE", "elast_5pct_eps_0.00",
		"elast_5pct_eps_325.00", "elast_5pct_eps_550.00", "elast_5pct_eps_775.00",
	}
	for i, c := range h.exec.calls {
		assert.Equal(t, filepath.Join(h.root, f.SweepID.String(), wantDirs[i]), c.dir)
		assert.True(t, c.dirExisted, "run dir %s must exist before invocation", c.dir)
		assert.Equal(t, -0.05, c.params.Elasticity)
		assert.False(t, c.params.FixedDemand)
	}
	assert.False(t, h.exec.calls[0].params.EpsilonEnabled)
	assert.Equal(t, scenario.DisabledEpsilonValue, h.exec.calls[0].params.EpsilonValue)
	assert.True(t, h.exec.calls[1].params.EpsilonEnabled)
	assert.Equal(t, 0.0, h.exec.calls[1].params.EpsilonValue)
	assert.Equal(t, 550.0, h.exec.calls[3].params.EpsilonValue)
}

func TestRepeatedSweepsKeepSeparateRunDirs(t *testing.T) {
	h := newHarness(t)

	first, err := h.orch.RunScenario(context.Background(), elastic5)
	require.NoError(t, err)
	second, err := h.orch.RunScenario(context.Background(), elastic5)
	require.NoError(t, err)
	require.NotEqual(t, first.SweepID, second.SweepID)

	require.Len(t, h.exec.calls, 10)
	for i := 0; i < 5; i++ {
		a, b := h.exec.calls[i].dir, h.exec.calls[i+5].dir
		assert.NotEqual(t, a, b)
		assert.Equal(t, filepath.Base(a), filepath.Base(b))
		assert.Equal(t, filepath.Join(h.root, first.SweepID.String()), filepath.Dir(a))
		assert.Equal(t, filepath.Join(h.root, second.SweepID.String()), filepath.Dir(b))
	}
	for i, p := range first.Points {
		assert.NotEqual(t, p.RunDir, second.Points[i].RunDir)
	}
}

func TestInfeasibleInteriorPointIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.exec.respond = func(ps scenario.ParameterSet) (*oracle.Result, error) {
		if ps.EpsilonEnabled && ps.EpsilonValue == 550 {
			return nil, oracle.ErrInfeasible
		}
		if ps.EpsilonEnabled && ps.EpsilonValue == 775 {
			return nil, &oracle.ExecError{ExitCode: 1}
		}
		return linearModel(ps)
	}

	f, err := h.orch.RunScenario(context.Background(), elastic5)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 325, 1000}, emissions(f.Points))
	assert.Len(t, h.exec.calls, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OracleRuns.WithLabelValues("elast_5pct", metrics.KindInterior, "infeasible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OracleRuns.WithLabelValues("elast_5pct", metrics.KindInterior, "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.FrontierPoints.WithLabelValues("elast_5pct")))
}

func TestRunTimeoutIsSkippedNotFatal(t *testing.T) {
	h := newHarness(t)
	h.exec.respond = func(ps scenario.ParameterSet) (*oracle.Result, error) {
		if ps.EpsilonEnabled && ps.EpsilonValue == 325 {
			return nil, context.DeadlineExceeded
		}
		return linearModel(ps)
	}
	f, err := h.orch.RunScenario(context.Background(), elastic5)
	require.NoError(t, err)
	assert.Len(t, f.Points, 4)
}

func TestAnchorFailureAbandonsScenario(t *testing.T) {
	cases := []struct {
		name      string
		failAt    func(ps scenario.ParameterSet) bool
		err       error
		wantCalls int
	}{
		{"max welfare infeasible", func(ps scenario.ParameterSet) bool { return !ps.EpsilonEnabled }, oracle.ErrInfeasible, 1},
		{"min emissions crashed", func(ps scenario.ParameterSet) bool { return ps.EpsilonEnabled && ps.EpsilonValue == 0 }, &oracle.ExecError{ExitCode: 2}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.exec.respond = func(ps scenario.ParameterSet) (*oracle.Result, error) {
				if tc.failAt(ps) {
					return nil, tc.err
				}
				return linearModel(ps)
			}
			f, err := h.orch.RunScenario(context.Background(), elastic5)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, ErrAnchorUnavailable)
			assert.Empty(t, h.store.saved)
			assert.Len(t, h.exec.calls, tc.wantCalls)
		})
	}
}

func TestRunContinuesPastAbandonedScenario(t *testing.T) {
	h := newHarness(t)
	h.exec.respond = func(ps scenario.ParameterSet) (*oracle.Result, error) {
		if ps.Elasticity == -0.10 && !ps.EpsilonEnabled {
			return nil, oracle.ErrInfeasible
		}
		return linearModel(ps)
	}

	report, err := h.orch.Run(context.Background(), scenario.DefaultScenarios())
	require.NoError(t, err)
	require.Len(t, report.Abandoned, 1)
	assert.Equal(t, "elast_10pct", report.Abandoned[0].Tag)
	assert.Equal(t, []string{"elast_5pct", "elast_2_5pct", "demand_fixed"}, report.Persisted())
	assert.Len(t, h.store.saved, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ScenariosAbandoned.WithLabelValues("elast_10pct")))

	for _, f := range report.Frontiers {
		assert.Equal(t, report.SweepID, f.SweepID)
	}

	// Every scenario starts with the cap disabled, whatever the previous
	// scenario left behind.
	var fixed []call
	for i, c := range h.exec.calls {
		if i > 0 && h.exec.calls[i-1].params.Elasticity != c.params.Elasticity {
			assert.False(t, c.params.EpsilonEnabled, "first run of a scenario must be uncapped")
		}
		if c.params.FixedDemand {
			fixed = append(fixed, c)
		}
	}
	require.Len(t, fixed, 5)
	for _, c := range fixed {
		assert.Equal(t, scenario.FixedDemandElasticity, c.params.Elasticity)
	}

	assert.Contains(t, h.hermes.subjects, "pareto.scenario.elast_10pct.abandoned")
	assert.Contains(t, h.hermes.subjects, "pareto.scenario.demand_fixed.frontier.persisted")
	assert.Equal(t, "pareto.sweep."+report.SweepID.String()+".started", h.hermes.subjects[0])
	assert.Equal(t, "pareto.sweep."+report.SweepID.String()+".completed", h.hermes.subjects[len(h.hermes.subjects)-1])
}

func TestMalformedResultAbortsSweep(t *testing.T) {
	h := newHarness(t)
	h.exec.respond = func(ps scenario.ParameterSet) (*oracle.Result, error) {
		if ps.Elasticity == -0.05 && ps.EpsilonEnabled && ps.EpsilonValue == 550 {
			return nil, oracle.ErrMalformedResult
		}
		return linearModel(ps)
	}

	report, err := h.orch.Run(context.Background(), scenario.DefaultScenarios())
	require.Error(t, err)
	assert.ErrorIs(t, err, oracle.ErrMalformedResult)
	assert.Equal(t, []string{"elast_10pct"}, report.Persisted())
	assert.Len(t, h.store.saved, 1)
}

func TestCancelledSweep(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.exec.respond = func(ps scenario.ParameterSet) (*oracle.Result, error) {
		if ps.EpsilonEnabled && ps.EpsilonValue == 0 {
			cancel()
			return nil, context.Canceled
		}
		return linearModel(ps)
	}

	report, err := h.orch.Run(ctx, scenario.DefaultScenarios())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, report.Frontiers)
	assert.Empty(t, report.Abandoned)
	assert.Empty(t, h.store.saved)
}

func TestNilHermesAndMetrics(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sweep.RunRoot = t.TempDir()
	cfg.Sweep.Points = 2
	exec := &fakeExecutor{}
	st := &fakeStore{}
	o := New(exec, st, nil, nil, cfg, discardLogger())

	f, err := o.RunScenario(context.Background(), elastic5)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 1000}, emissions(f.Points))
	assert.Len(t, exec.calls, 2)
}

func TestSortByEmissionsIsStable(t *testing.T) {
	points := []store.Point{
		{TotalEmissions: 5, TotalCost: 1},
		{TotalEmissions: 1, TotalCost: 2},
		{TotalEmissions: 5, TotalCost: 3},
		{TotalEmissions: 3, TotalCost: 4},
	}
	SortByEmissions(points)
	costs := []float64{points[0].TotalCost, points[1].TotalCost, points[2].TotalCost, points[3].TotalCost}
	assert.Equal(t, []float64{2, 4, 1, 3}, costs)
}

func TestNonDominated(t *testing.T) {
	points := []store.Point{
		{TotalEmissions: 100, SocialWelfare: 100},
		{TotalEmissions: 300, SocialWelfare: 90}, // dominated by the first
		{TotalEmissions: 550, SocialWelfare: 275},
		{TotalEmissions: 1000, SocialWelfare: 500},
		{TotalEmissions: 1000, SocialWelfare: 500}, // ties do not dominate
	}
	got := NonDominated(points)
	assert.Equal(t, []float64{100, 550, 1000, 1000}, emissions(got))
	assert.Len(t, NonDominated(points[:1]), 1)
}

func TestNormalizedWelfare(t *testing.T) {
	norm, ok := NormalizedWelfare([]store.Point{{SocialWelfare: 50}, {SocialWelfare: 200}, {SocialWelfare: 100}})
	require.True(t, ok)
	assert.Equal(t, []float64{0.25, 1, 0.5}, norm)

	_, ok = NormalizedWelfare([]store.Point{{SocialWelfare: -1}})
	assert.False(t, ok)
	_, ok = NormalizedWelfare(nil)
	assert.False(t, ok)
}
