package scenario

import "math"

// ParameterSet is the complete set of oracle inputs the sweep controls. It is
// passed by value to the executor, so every run sees an immutable snapshot.
type ParameterSet struct {
	Elasticity     float64 `json:"elasticity"`
	FixedDemand    bool    `json:"fix_demand"`
	EpsilonEnabled bool    `json:"use_epsilon"`
	EpsilonValue   float64 `json:"epsilon_value"`
}

// NewParameterSet returns a set with epsilon disabled and no scenario applied.
func NewParameterSet() ParameterSet {
	return ParameterSet{EpsilonValue: DisabledEpsilonValue}
}

// DisableEpsilon switches the emissions cap off.
func (p *ParameterSet) DisableEpsilon() {
	p.EpsilonEnabled = false
	p.EpsilonValue = DisabledEpsilonValue
}

// SetEpsilon enables the emissions cap at v.
func (p *ParameterSet) SetEpsilon(v float64) {
	p.EpsilonEnabled = true
	p.EpsilonValue = v
}

// SetScenario applies the scenario's demand regime. The emissions cap is
// always disabled first: a cap left over from the previous scenario can make
// the new regime infeasible.
func (p *ParameterSet) SetScenario(s Scenario) {
	p.DisableEpsilon()
	if s.FixedDemand {
		p.Elasticity = FixedDemandElasticity
		p.FixedDemand = true
		return
	}
	p.Elasticity = s.Elasticity
	p.FixedDemand = false
}

// Epsilon returns the active cap, or nil when the cap is disabled.
func (p ParameterSet) Epsilon() *float64 {
	if !p.EpsilonEnabled {
		return nil
	}
	v := p.EpsilonValue
	return &v
}

// Equal reports whether two sets would render identically.
func (p ParameterSet) Equal(o ParameterSet) bool {
	return p.FixedDemand == o.FixedDemand &&
		p.EpsilonEnabled == o.EpsilonEnabled &&
		sameFloat(p.Elasticity, o.Elasticity) &&
		sameFloat(p.EpsilonValue, o.EpsilonValue)
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
