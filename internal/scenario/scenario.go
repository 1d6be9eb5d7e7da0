package scenario

import (
	"fmt"
	"strconv"
)

const (
	// FixedDemandElasticity is written alongside fix_demand = 1. The model
	// ignores it, but the parameter must still hold a valid value.
	FixedDemandElasticity = -0.02
	// DisabledEpsilonValue is written as the emissions cap whenever the
	// epsilon constraint is switched off.
	DisabledEpsilonValue = 1e12
)

// Scenario is one demand regime of a sweep: either an elastic demand with a
// negative elasticity, or fixed demand.
type Scenario struct {
	Tag         string  `yaml:"tag" json:"tag"`
	Elasticity  float64 `yaml:"elasticity" json:"elasticity"`
	FixedDemand bool    `yaml:"fixed_demand" json:"fixed_demand"`
}

// String renders the elasticity label used in logs.
func (s Scenario) String() string {
	if s.FixedDemand {
		return s.Tag + "(HARD)"
	}
	return s.Tag + "(" + strconv.FormatFloat(s.Elasticity, 'g', -1, 64) + ")"
}

// Validate checks that the scenario can be written to a parameter file.
func (s Scenario) Validate() error {
	if s.Tag == "" {
		return fmt.Errorf("scenario: empty tag")
	}
	if !s.FixedDemand && s.Elasticity >= 0 {
		return fmt.Errorf("scenario %s: elasticity must be negative, got %g", s.Tag, s.Elasticity)
	}
	return nil
}

// DefaultScenarios returns the reference sweep order.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Tag: "elast_10pct", Elasticity: -0.10},
		{Tag: "elast_5pct", Elasticity: -0.05},
		{Tag: "elast_2_5pct", Elasticity: -0.025},
		{Tag: "demand_fixed", FixedDemand: true},
	}
}
