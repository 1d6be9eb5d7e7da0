package hermes

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSubjectsAreCoveredByStream(t *testing.T) {
	subjects := []string{
		SubjectSweepStarted("abc"),
		SubjectSweepCompleted("abc"),
		SubjectRunCompleted("elast_5pct"),
		SubjectRunInfeasible("elast_5pct"),
		SubjectRunFailed("elast_5pct"),
		SubjectFrontierPersisted("elast_5pct"),
		SubjectScenarioAbandoned("elast_5pct"),
	}
	for _, s := range subjects {
		if !strings.HasPrefix(s, "pareto.sweep.") && !strings.HasPrefix(s, "pareto.scenario.") {
			t.Errorf("subject %s not captured by %s", s, StreamName)
		}
	}
}

func TestSubjectFormat(t *testing.T) {
	if got := SubjectFrontierPersisted("demand_fixed"); got != "pareto.scenario.demand_fixed.frontier.persisted" {
		t.Errorf("unexpected subject %s", got)
	}
	if got := SubjectSweepCompleted("s1"); got != "pareto.sweep.s1.completed" {
		t.Errorf("unexpected subject %s", got)
	}
}

func TestRunEventOmitsNilEpsilonAsNull(t *testing.T) {
	data, err := json.Marshal(RunEvent{Tag: "elast_5pct", Kind: "anchor_max_welfare"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"epsilon":null`) {
		t.Errorf("expected null epsilon, got %s", data)
	}
}
