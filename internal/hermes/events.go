package hermes

import "time"

type SweepStartedEvent struct {
	SweepID   string    `json:"sweep_id"`
	Scenarios []string  `json:"scenarios"`
	Points    int       `json:"points"`
	Timestamp time.Time `json:"timestamp"`
}

type SweepCompletedEvent struct {
	SweepID   string    `json:"sweep_id"`
	Persisted []string  `json:"persisted"`
	Abandoned []string  `json:"abandoned,omitempty"`
	Duration  string    `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// RunEvent reports the outcome of one oracle run. Kind is anchor_max_welfare,
// anchor_min_emissions or interior.
type RunEvent struct {
	SweepID        string   `json:"sweep_id"`
	Tag            string   `json:"tag"`
	Kind           string   `json:"kind"`
	RunDir         string   `json:"run_dir"`
	Epsilon        *float64 `json:"epsilon"`
	TotalEmissions float64  `json:"total_emissions,omitempty"`
	SocialWelfare  float64  `json:"social_welfare,omitempty"`
	SolveSeconds   float64  `json:"solve_seconds,omitempty"`
	Error          string   `json:"error,omitempty"`
}

type FrontierPersistedEvent struct {
	SweepID    string `json:"sweep_id"`
	FrontierID string `json:"frontier_id"`
	Tag        string `json:"tag"`
	Points     int    `json:"points"`
}

type ScenarioAbandonedEvent struct {
	SweepID string `json:"sweep_id"`
	Tag     string `json:"tag"`
	Reason  string `json:"reason"`
}
