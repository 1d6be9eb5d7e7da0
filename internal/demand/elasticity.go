package demand

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Estimate is the local point elasticity of a PWL curve at an operating point.
type Estimate struct {
	Segment    int     `json:"segment"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Elasticity float64 `json:"elasticity"`
	// Clamped is set when the operating point fell outside the curve and the
	// last segment was used instead.
	Clamped bool `json:"clamped"`
}

// AtQuantity estimates elasticity at quantity q. The containing segment is the
// first whose cumulative right boundary is >= q, clamped to the last segment
// when q exceeds the span.
//
//	p = a_k − b_k·(q − before_k)
//	ε = −(1/b_k)·(p/q)
func AtQuantity(segs []Segment, q float64) (Estimate, error) {
	if len(segs) == 0 {
		return Estimate{}, ErrNoCurve
	}
	i, before, clamped := locateQuantity(segs, q)
	s := segs[i]
	if s.Slope == 0 {
		return Estimate{}, fmt.Errorf("%w: zero slope in segment %d", ErrUndefinedElasticity, s.Index)
	}
	if q <= 0 {
		return Estimate{}, fmt.Errorf("%w: quantity %g", ErrUndefinedElasticity, q)
	}
	p := s.Intercept - s.Slope*(q-before)
	return Estimate{
		Segment:    s.Index,
		Quantity:   q,
		Price:      p,
		Elasticity: -(1 / s.Slope) * (p / q),
		Clamped:    clamped,
	}, nil
}

// AtPrice estimates elasticity at price p. The containing segment is the first
// whose [right boundary, intercept] price range brackets p; when none does the
// last segment is used and the estimate is marked Clamped. The quantity is
// recovered by inverting the segment's linear price function.
func AtPrice(segs []Segment, p float64) (Estimate, error) {
	if len(segs) == 0 {
		return Estimate{}, ErrNoCurve
	}
	i, before, clamped := locatePrice(segs, p)
	s := segs[i]
	if s.Slope == 0 {
		return Estimate{}, fmt.Errorf("%w: zero slope in segment %d", ErrUndefinedElasticity, s.Index)
	}
	d := (s.Intercept-p)/s.Slope + before
	if d <= 0 {
		return Estimate{}, fmt.Errorf("%w: quantity %g", ErrUndefinedElasticity, d)
	}
	return Estimate{
		Segment:    s.Index,
		Quantity:   d,
		Price:      p,
		Elasticity: -(1 / s.Slope) * (p / d),
		Clamped:    clamped,
	}, nil
}

// ElasticityAtQuantity estimates elasticity at the curve's reference quantity.
// Undefined for VOLL curves.
func (t *Table) ElasticityAtQuantity(key Key) (Estimate, error) {
	segs, err := t.Segments(key)
	if err != nil {
		return Estimate{}, err
	}
	ref, err := t.Reference(key)
	if err != nil {
		return Estimate{}, err
	}
	return AtQuantity(segs, ref.Quantity)
}

// ElasticityAtPrice estimates elasticity at the curve's reference price.
func (t *Table) ElasticityAtPrice(key Key) (Estimate, error) {
	segs, err := t.Segments(key)
	if err != nil {
		return Estimate{}, err
	}
	ref, err := t.Reference(key)
	if err != nil {
		return Estimate{}, err
	}
	return AtPrice(segs, ref.Price)
}

// CheckSpan verifies that the curve's total width is ratio times its
// reference quantity, within relative tolerance rtol.
func (t *Table) CheckSpan(key Key, ratio, rtol float64) error {
	segs, err := t.Segments(key)
	if err != nil {
		return err
	}
	ref, err := t.Reference(key)
	if err != nil {
		return err
	}
	if ref.Quantity == 0 {
		return fmt.Errorf("%w %s: zero reference quantity", ErrSpanMismatch, key)
	}
	got := Span(segs) / ref.Quantity
	if !scalar.EqualWithinRel(got, ratio, rtol) {
		return fmt.Errorf("%w %s: ΣD/d_ref = %.6f, expected %g", ErrSpanMismatch, key, got, ratio)
	}
	return nil
}

// ProfilePoint is one sample of local elasticity along a curve.
type ProfilePoint struct {
	// NormalizedQuantity is cumulative quantity divided by the reference quantity.
	NormalizedQuantity float64 `json:"normalized_quantity"`
	// ElasticityPct is the absolute local elasticity in percent, 100·p/(b·d).
	ElasticityPct float64 `json:"elasticity_pct"`
}

// Profile samples absolute local elasticity at samples evenly spaced points
// inside each segment. Zero-quantity samples are skipped. VOLL curves have no
// profile.
func (t *Table) Profile(key Key, samples int) ([]ProfilePoint, error) {
	if samples < 2 {
		return nil, fmt.Errorf("demand: profile needs at least 2 samples per segment, got %d", samples)
	}
	segs, err := t.Segments(key)
	if err != nil {
		return nil, err
	}
	if isVOLL(segs) {
		return nil, fmt.Errorf("%w: %s is a VOLL curve", ErrUndefinedElasticity, key)
	}
	ref, err := t.Reference(key)
	if err != nil {
		return nil, err
	}
	if ref.Quantity == 0 {
		return nil, fmt.Errorf("%w %s: zero reference quantity", ErrUndefinedElasticity, key)
	}

	local := make([]float64, samples)
	out := make([]ProfilePoint, 0, samples*len(segs))
	cum := 0.0
	for _, s := range segs {
		if s.Slope == 0 {
			cum += s.Width
			continue
		}
		floats.Span(local, 0, s.Width)
		for _, dl := range local {
			d := cum + dl
			if d <= 0 {
				continue
			}
			p := s.Intercept - s.Slope*dl
			out = append(out, ProfilePoint{
				NormalizedQuantity: d / ref.Quantity,
				ElasticityPct:      100 * p / (s.Slope * d),
			})
		}
		cum += s.Width
	}
	return out, nil
}
