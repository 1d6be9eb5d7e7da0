package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultUnitScale converts M€/GWh duals into €/MWh prices.
	DefaultUnitScale = 1e3
	// DefaultZeroTolerance is the absolute price below which an hour counts
	// as zero-priced. Duals from a numerical solve are never exactly zero.
	DefaultZeroTolerance = 1e-5
	// DefaultPeakThreshold is the €/MWh price above which an hour counts as
	// a peak-price hour.
	DefaultPeakThreshold = 400.0
)

var (
	// ErrZeroWeight indicates a dual record whose mult·t_op is not positive.
	ErrZeroWeight = errors.New("pricing: representative-period weight must be positive")
	// ErrMissingWeight indicates a dual record with no mult or t_op entry.
	ErrMissingWeight = errors.New("pricing: missing period weight")
)

// DualRecord is the raw dual of one energy-balance constraint together with
// the representative-period weighting of its hour.
type DualRecord struct {
	Commodity  string  `json:"p"`
	Node       string  `json:"n"`
	Hour       int     `json:"h"`
	TypicalDay int     `json:"td"`
	Dual       float64 `json:"dual_raw"`
	Mult       float64 `json:"mult"`
	TOp        float64 `json:"t_op"`
}

// Weight is the number of calendar hours the record stands in for.
func (d DualRecord) Weight() float64 {
	return d.Mult * d.TOp
}

// Price is a recovered market-clearing price.
type Price struct {
	DualRecord
	Value float64 `json:"price"`
}

// Recoverer turns raw duals into normalised market prices.
type Recoverer struct {
	// Scale is applied uniformly to every recovered price.
	Scale float64
}

// NewRecoverer returns a Recoverer with the given unit scale, or
// DefaultUnitScale when scale is zero.
func NewRecoverer(scale float64) Recoverer {
	if scale == 0 {
		scale = DefaultUnitScale
	}
	return Recoverer{Scale: scale}
}

// Price computes Scale·dual/(mult·t_op) for one record.
func (r Recoverer) Price(d DualRecord) (float64, error) {
	w := d.Weight()
	if w <= 0 || math.IsNaN(w) {
		return 0, fmt.Errorf("%w: %s %s h=%d td=%d mult=%g t_op=%g",
			ErrZeroWeight, d.Commodity, d.Node, d.Hour, d.TypicalDay, d.Mult, d.TOp)
	}
	return r.Scale * d.Dual / w, nil
}

// Recover prices every record. The input slice is not modified.
func (r Recoverer) Recover(recs []DualRecord) ([]Price, error) {
	out := make([]Price, 0, len(recs))
	for _, d := range recs {
		v, err := r.Price(d)
		if err != nil {
			return nil, err
		}
		out = append(out, Price{DualRecord: d, Value: v})
	}
	return out, nil
}

// ZeroPriceHours sums the weighted hours of commodity whose price magnitude is
// below tol.
func ZeroPriceHours(prices []Price, commodity string, tol float64) float64 {
	var hours float64
	for _, p := range prices {
		if p.Commodity == commodity && math.Abs(p.Value) < tol {
			hours += p.Weight()
		}
	}
	return hours
}

// PeakPriceHours sums the weighted hours of commodity whose price exceeds
// threshold.
func PeakPriceHours(prices []Price, commodity string, threshold float64) float64 {
	var hours float64
	for _, p := range prices {
		if p.Commodity == commodity && p.Value > threshold {
			hours += p.Weight()
		}
	}
	return hours
}

// AveragePrice is the hours-weighted mean price of commodity. ok is false when
// the commodity has no records.
func AveragePrice(prices []Price, commodity string) (avg float64, ok bool) {
	var values, weights []float64
	for _, p := range prices {
		if p.Commodity == commodity {
			values = append(values, p.Value)
			weights = append(weights, p.Weight())
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, weights), true
}

// Commodities lists the distinct commodities in prices, sorted.
func Commodities(prices []Price) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range prices {
		if !seen[p.Commodity] {
			seen[p.Commodity] = true
			out = append(out, p.Commodity)
		}
	}
	sort.Strings(out)
	return out
}

// Thresholds parameterise a Summary.
type Thresholds struct {
	ZeroTolerance float64 `json:"zero_tolerance"`
	PeakThreshold float64 `json:"peak_threshold"`
}

// DefaultThresholds returns the reference zero tolerance and peak threshold.
func DefaultThresholds() Thresholds {
	return Thresholds{ZeroTolerance: DefaultZeroTolerance, PeakThreshold: DefaultPeakThreshold}
}

// Summary describes the recovered prices of one commodity.
type Summary struct {
	Commodity      string  `json:"commodity"`
	Records        int     `json:"records"`
	WeightedHours  float64 `json:"weighted_hours"`
	AveragePrice   float64 `json:"average_price"`
	ZeroPriceHours float64 `json:"zero_price_hours"`
	PeakPriceHours float64 `json:"peak_price_hours"`
	Thresholds     `json:"thresholds"`
}

// Summarize computes the Summary of commodity.
func Summarize(prices []Price, commodity string, th Thresholds) (Summary, bool) {
	avg, ok := AveragePrice(prices, commodity)
	if !ok {
		return Summary{}, false
	}
	s := Summary{
		Commodity:      commodity,
		AveragePrice:   avg,
		ZeroPriceHours: ZeroPriceHours(prices, commodity, th.ZeroTolerance),
		PeakPriceHours: PeakPriceHours(prices, commodity, th.PeakThreshold),
		Thresholds:     th,
	}
	for _, p := range prices {
		if p.Commodity == commodity {
			s.Records++
			s.WeightedHours += p.Weight()
		}
	}
	return s, true
}
