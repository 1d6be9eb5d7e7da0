// Package sweep drives the epsilon-constraint sweep: for every scenario it
// solves the two anchors, then evenly spaced emission caps between them, and
// persists the resulting frontier once.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Pareto/internal/config"
	"github.com/MikeSquared-Agency/Pareto/internal/hermes"
	"github.com/MikeSquared-Agency/Pareto/internal/metrics"
	"github.com/MikeSquared-Agency/Pareto/internal/oracle"
	"github.com/MikeSquared-Agency/Pareto/internal/scenario"
	"github.com/MikeSquared-Agency/Pareto/internal/store"
)

// ErrAnchorUnavailable means one of a scenario's anchor runs produced no
// result, so no frontier can be built for it.
var ErrAnchorUnavailable = errors.New("sweep: anchor run produced no result")

type Orchestrator struct {
	executor oracle.Executor
	store    store.Store
	hermes   hermes.Client
	metrics  *metrics.Metrics
	cfg      *config.Config
	logger   *slog.Logger

	// mu serialises sweeps: the oracle shares one parameter file.
	mu      sync.Mutex
	params  scenario.ParameterSet
	sweepID uuid.UUID
	dirs    *runDirs
	now     func() time.Time
}

func New(exec oracle.Executor, s store.Store, h hermes.Client, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		executor: exec,
		store:    s,
		hermes:   h,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
		params:   scenario.NewParameterSet(),
		now:      time.Now,
	}
}

// Abandoned records a scenario that produced no frontier.
type Abandoned struct {
	Tag    string `json:"tag"`
	Reason string `json:"reason"`
}

// Report summarises a sweep.
type Report struct {
	SweepID    uuid.UUID         `json:"sweep_id"`
	Frontiers  []*store.Frontier `json:"frontiers"`
	Abandoned  []Abandoned       `json:"abandoned"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Persisted lists the tags whose frontier was saved.
func (r *Report) Persisted() []string {
	tags := make([]string, len(r.Frontiers))
	for i, f := range r.Frontiers {
		tags[i] = f.Tag
	}
	return tags
}

// Run sweeps the scenarios one after another. A scenario whose anchor fails
// is recorded in the report and the sweep moves on; any other error stops the
// sweep and is returned together with the partial report.
func (o *Orchestrator) Run(ctx context.Context, scenarios []scenario.Scenario) (*Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sweepID = uuid.New()
	o.dirs = newRunDirs()
	report := &Report{SweepID: o.sweepID, StartedAt: o.now().UTC()}

	tags := make([]string, len(scenarios))
	for i, sc := range scenarios {
		tags[i] = sc.Tag
	}
	o.logger.Info("sweep started", "sweep_id", o.sweepID, "scenarios", tags, "points", o.cfg.Sweep.Points)
	o.publish(hermes.SubjectSweepStarted(o.sweepID.String()), hermes.SweepStartedEvent{
		SweepID:   o.sweepID.String(),
		Scenarios: tags,
		Points:    o.cfg.Sweep.Points,
		Timestamp: report.StartedAt,
	})

	var runErr error
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		f, err := o.runScenario(ctx, sc)
		if errors.Is(err, ErrAnchorUnavailable) {
			o.logger.Error("scenario abandoned", "tag", sc.Tag, "error", err)
			report.Abandoned = append(report.Abandoned, Abandoned{Tag: sc.Tag, Reason: err.Error()})
			o.metrics.ScenarioAbandoned(sc.Tag)
			o.publish(hermes.SubjectScenarioAbandoned(sc.Tag), hermes.ScenarioAbandonedEvent{
				SweepID: o.sweepID.String(),
				Tag:     sc.Tag,
				Reason:  err.Error(),
			})
			continue
		}
		if err != nil {
			runErr = fmt.Errorf("scenario %s: %w", sc.Tag, err)
			break
		}
		report.Frontiers = append(report.Frontiers, f)
	}

	report.FinishedAt = o.now().UTC()
	abandoned := make([]string, len(report.Abandoned))
	for i, a := range report.Abandoned {
		abandoned[i] = a.Tag
	}
	o.publish(hermes.SubjectSweepCompleted(o.sweepID.String()), hermes.SweepCompletedEvent{
		SweepID:   o.sweepID.String(),
		Persisted: report.Persisted(),
		Abandoned: abandoned,
		Duration:  report.FinishedAt.Sub(report.StartedAt).String(),
		Timestamp: report.FinishedAt,
	})
	if runErr != nil {
		o.logger.Error("sweep aborted", "sweep_id", o.sweepID, "error", runErr)
		return report, runErr
	}
	o.logger.Info("sweep completed", "sweep_id", o.sweepID,
		"persisted", len(report.Frontiers), "abandoned", len(report.Abandoned))
	return report, nil
}

// RunScenario sweeps a single scenario as its own sweep.
func (o *Orchestrator) RunScenario(ctx context.Context, sc scenario.Scenario) (*store.Frontier, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sweepID = uuid.New()
	o.dirs = newRunDirs()
	return o.runScenario(ctx, sc)
}

func (o *Orchestrator) runScenario(ctx context.Context, sc scenario.Scenario) (*store.Frontier, error) {
	logger := o.logger.With("sweep_id", o.sweepID, "tag", sc.Tag)
	o.params.SetScenario(sc)
	logger.Info("scenario configured", "elasticity", o.params.Elasticity, "fix_demand", o.params.FixedDemand)

	// Anchor A: maximum welfare, no emissions cap.
	o.params.DisableEpsilon()
	maxWelfare, err := o.run(ctx, sc.Tag, metrics.KindAnchorMaxWelfare)
	if err != nil {
		return nil, o.anchorError(err, "max-welfare")
	}
	logger.Info("anchor solved", "kind", metrics.KindAnchorMaxWelfare, "emissions", maxWelfare.TotalEmissions, "welfare", maxWelfare.SocialWelfare)

	// Anchor B: minimum emissions, cap at zero.
	o.params.SetEpsilon(0)
	minEmissions, err := o.run(ctx, sc.Tag, metrics.KindAnchorMinEmissions)
	if err != nil {
		return nil, o.anchorError(err, "min-emissions")
	}
	logger.Info("anchor solved", "kind", metrics.KindAnchorMinEmissions, "emissions", minEmissions.TotalEmissions, "welfare", minEmissions.SocialWelfare)

	high, low := maxWelfare.TotalEmissions, minEmissions.TotalEmissions
	if low > high {
		logger.Warn("min-emissions anchor emits more than max-welfare anchor", "low", low, "high", high)
	}

	points := []store.Point{*maxWelfare, *minEmissions}
	for _, target := range InteriorTargets(low, high, o.cfg.Sweep.Points) {
		o.params.SetEpsilon(target)
		p, err := o.run(ctx, sc.Tag, metrics.KindInterior)
		if err != nil {
			if !recoverable(err) {
				return nil, err
			}
			logger.Warn("interior point skipped", "epsilon", target, "error", err)
			continue
		}
		points = append(points, *p)
	}

	SortByEmissions(points)
	f := &store.Frontier{
		ID:        uuid.New(),
		SweepID:   o.sweepID,
		Tag:       sc.Tag,
		Points:    points,
		CreatedAt: o.now().UTC(),
	}
	if err := o.store.SaveFrontier(ctx, f); err != nil {
		return nil, fmt.Errorf("persist frontier: %w", err)
	}
	o.metrics.FrontierPersisted(sc.Tag, len(points))
	o.publish(hermes.SubjectFrontierPersisted(sc.Tag), hermes.FrontierPersistedEvent{
		SweepID:    o.sweepID.String(),
		FrontierID: f.ID.String(),
		Tag:        sc.Tag,
		Points:     len(points),
	})
	logger.Info("frontier persisted", "frontier_id", f.ID, "points", len(points))
	return f, nil
}

// run performs one oracle invocation with the current parameters in a fresh
// run directory.
func (o *Orchestrator) run(ctx context.Context, tag, kind string) (*store.Point, error) {
	ps := o.params
	eps := ps.Epsilon()
	dir := filepath.Join(o.cfg.Sweep.RunRoot, o.sweepID.String(), o.dirs.next(tag, eps))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	runCtx := ctx
	if timeout := o.cfg.OracleTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := o.executor.Execute(runCtx, ps, dir)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		err = &oracle.ExecError{Dir: dir, ExitCode: -1, Err: fmt.Errorf("run exceeded %s", o.cfg.OracleTimeout())}
	}

	evt := hermes.RunEvent{
		SweepID: o.sweepID.String(),
		Tag:     tag,
		Kind:    kind,
		RunDir:  dir,
		Epsilon: eps,
	}
	if err != nil {
		o.metrics.ObserveRun(tag, kind, oracle.Outcome(err), 0)
		evt.Error = err.Error()
		if errors.Is(err, oracle.ErrInfeasible) {
			o.publish(hermes.SubjectRunInfeasible(tag), evt)
		} else {
			o.publish(hermes.SubjectRunFailed(tag), evt)
		}
		return nil, err
	}

	solve := res.Duration()
	o.metrics.ObserveRun(tag, kind, "ok", solve)
	evt.TotalEmissions = res.TotalEmissions
	evt.SocialWelfare = res.SocialWelfare
	evt.SolveSeconds = solve.Seconds()
	o.publish(hermes.SubjectRunCompleted(tag), evt)

	return &store.Point{
		ID:             uuid.New(),
		TotalCost:      res.TotalCost,
		TotalEmissions: res.TotalEmissions,
		SocialWelfare:  res.SocialWelfare,
		Epsilon:        eps,
		ElasticityTag:  tag,
		SolveTime:      solve.Seconds(),
		RunDir:         dir,
	}, nil
}

// anchorError turns a recoverable anchor failure into ErrAnchorUnavailable.
// Anything else aborts the sweep.
func (o *Orchestrator) anchorError(err error, anchor string) error {
	if recoverable(err) {
		return fmt.Errorf("%w: %s anchor: %v", ErrAnchorUnavailable, anchor, err)
	}
	return err
}

// recoverable reports whether a run error only affects the point being
// solved. Malformed records, cancellation and I/O failures are not.
func recoverable(err error) bool {
	var execErr *oracle.ExecError
	return errors.Is(err, oracle.ErrInfeasible) || errors.As(err, &execErr)
}

func (o *Orchestrator) publish(subject string, data interface{}) {
	if o.hermes == nil {
		return
	}
	if err := o.hermes.Publish(subject, data); err != nil {
		o.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
