package hermes

const (
	SubjectFrontierPersistedAll = "pareto.scenario.*.frontier.persisted"
	SubjectSweepCompletedAll    = "pareto.sweep.*.completed"

	StreamName   = "PARETO_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectSweepStarted(sweepID string) string   { return "pareto.sweep." + sweepID + ".started" }
func SubjectSweepCompleted(sweepID string) string { return "pareto.sweep." + sweepID + ".completed" }

// Per-run subjects
func SubjectRunCompleted(tag string) string  { return "pareto.scenario." + tag + ".run.completed" }
func SubjectRunInfeasible(tag string) string { return "pareto.scenario." + tag + ".run.infeasible" }
func SubjectRunFailed(tag string) string     { return "pareto.scenario." + tag + ".run.failed" }

// Scenario outcome subjects
func SubjectFrontierPersisted(tag string) string {
	return "pareto.scenario." + tag + ".frontier.persisted"
}

func SubjectScenarioAbandoned(tag string) string {
	return "pareto.scenario." + tag + ".abandoned"
}
