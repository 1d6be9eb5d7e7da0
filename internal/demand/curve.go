package demand

import (
	"fmt"
	"sort"
)

// Curve is the breakpoint form of one inverse demand curve: parallel
// cumulative quantities (starting at 0) and prices. It is derived from the
// Table on demand and never stored.
type Curve struct {
	Key        Key       `json:"key"`
	Quantities []float64 `json:"quantities"`
	Prices     []float64 `json:"prices"`
	VOLL       bool      `json:"voll"`
}

// BuildCurve prefix-sums segment widths into breakpoints. Breakpoint k carries
// the boundary price of segment k; the final breakpoint carries the right
// boundary price of the last segment. A VOLL curve is flat at the first
// intercept out to the reference quantity.
func (t *Table) BuildCurve(key Key) (Curve, error) {
	segs, err := t.Segments(key)
	if err != nil {
		return Curve{}, err
	}

	if isVOLL(segs) {
		ref, err := t.Reference(key)
		if err != nil {
			return Curve{}, err
		}
		p := segs[0].Intercept
		return Curve{
			Key:        key,
			Quantities: []float64{0, ref.Quantity},
			Prices:     []float64{p, p},
			VOLL:       true,
		}, nil
	}

	c := Curve{
		Key:        key,
		Quantities: make([]float64, 0, len(segs)+1),
		Prices:     make([]float64, 0, len(segs)+1),
	}
	cum := 0.0
	c.Quantities = append(c.Quantities, cum)
	for _, s := range segs {
		sk := SegmentKey{Index: s.Index, Key: key}
		p, ok := t.boundary[sk]
		if !ok {
			return Curve{}, &MissingValueError{Table: "p_pw", Key: sk}
		}
		c.Prices = append(c.Prices, p)
		cum += s.Width
		c.Quantities = append(c.Quantities, cum)
	}
	c.Prices = append(c.Prices, segs[len(segs)-1].RightPrice())
	return c, nil
}

// PriceAt evaluates the inverse demand curve at quantity q. Quantities beyond
// the curve's span are clamped to its end. On a VOLL curve the price is the
// first intercept regardless of q.
func (t *Table) PriceAt(key Key, q float64) (float64, error) {
	if q < 0 {
		return 0, fmt.Errorf("%w: %g", ErrNegativeQuantity, q)
	}
	segs, err := t.Segments(key)
	if err != nil {
		return 0, err
	}
	if isVOLL(segs) {
		return segs[0].Intercept, nil
	}
	if span := Span(segs); q > span {
		q = span
	}
	i, before, _ := locateQuantity(segs, q)
	return segs[i].Intercept - segs[i].Slope*(q-before), nil
}

// QuantityAt returns the smallest quantity at which the curve's price falls to
// p. Prices above the first intercept map to 0 and prices below the final
// boundary map to the full span. A price falling inside a vertical drop
// between segments maps to the drop's quantity.
func (t *Table) QuantityAt(key Key, p float64) (float64, error) {
	segs, err := t.Segments(key)
	if err != nil {
		return 0, err
	}
	if isVOLL(segs) {
		return 0, fmt.Errorf("%w %s", ErrVOLLInverse, key)
	}
	before := 0.0
	for _, s := range segs {
		if p >= s.Intercept {
			return before, nil
		}
		if p >= s.RightPrice() {
			if s.Slope == 0 {
				return before, nil
			}
			return before + (s.Intercept-p)/s.Slope, nil
		}
		before += s.Width
	}
	return before, nil
}

// locateQuantity returns the segment whose cumulative range holds q: the first
// segment whose right boundary is >= q. Past the span it clamps to the last
// segment and reports clamped.
func locateQuantity(segs []Segment, q float64) (i int, before float64, clamped bool) {
	ends := make([]float64, len(segs))
	cum := 0.0
	for j, s := range segs {
		cum += s.Width
		ends[j] = cum
	}
	i = sort.SearchFloat64s(ends, q)
	if i >= len(segs) {
		i = len(segs) - 1
		clamped = true
	}
	if i > 0 {
		before = ends[i-1]
	}
	return i, before, clamped
}

// locatePrice returns the first segment, in index order, whose price range
// [right boundary, intercept] brackets p. Without a bracket it falls back to
// the last segment and reports clamped.
func locatePrice(segs []Segment, p float64) (i int, before float64, clamped bool) {
	cum := 0.0
	for j, s := range segs {
		if s.RightPrice() <= p && p <= s.Intercept {
			return j, cum, false
		}
		cum += s.Width
	}
	last := len(segs) - 1
	return last, cum - segs[last].Width, true
}
