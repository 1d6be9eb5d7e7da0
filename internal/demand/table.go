package demand

import (
	"fmt"
	"sort"
)

// Key identifies one inverse demand curve: consumer class, node, hour and
// typical day.
type Key struct {
	Consumer   string `json:"ct"`
	Node       string `json:"n"`
	Hour       int    `json:"h"`
	TypicalDay int    `json:"td"`
}

func (k Key) String() string {
	return fmt.Sprintf("(%s, %s, h=%d, td=%d)", k.Consumer, k.Node, k.Hour, k.TypicalDay)
}

// SegmentKey identifies segment Index of the curve at Key.
type SegmentKey struct {
	Index int
	Key
}

// Segment is one linear piece of a PWL inverse demand curve. Price falls from
// Intercept at the left boundary by Slope per unit of quantity over Width.
type Segment struct {
	Index     int     `json:"k"`
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	Width     float64 `json:"width"`
}

// RightPrice is the price at the segment's right boundary.
func (s Segment) RightPrice() float64 {
	return s.Intercept - s.Slope*s.Width
}

// ReferencePoint is the calibration anchor a curve was built to reproduce.
type ReferencePoint struct {
	Quantity float64 `json:"reference_quantity"`
	Price    float64 `json:"reference_price"`
}

// Table is the read-only segment export of one solved instance. Columns are
// stored separately, the way the solver exports them, so a hole in any one
// column surfaces as a MissingValueError instead of a zero.
type Table struct {
	intercept map[SegmentKey]float64
	slope     map[SegmentKey]float64
	width     map[SegmentKey]float64
	boundary  map[SegmentKey]float64

	refQuantity map[Key]float64
	refPrice    map[Key]float64

	// sorted segment indices per curve, derived from the intercept column
	index map[Key][]int
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{
		intercept:   make(map[SegmentKey]float64),
		slope:       make(map[SegmentKey]float64),
		width:       make(map[SegmentKey]float64),
		boundary:    make(map[SegmentKey]float64),
		refQuantity: make(map[Key]float64),
		refPrice:    make(map[Key]float64),
		index:       make(map[Key][]int),
	}
}

// SetIntercept records a_k and registers k in the curve's segment index.
func (t *Table) SetIntercept(sk SegmentKey, v float64) {
	if _, ok := t.intercept[sk]; !ok {
		idx := t.index[sk.Key]
		pos := sort.SearchInts(idx, sk.Index)
		idx = append(idx, 0)
		copy(idx[pos+1:], idx[pos:])
		idx[pos] = sk.Index
		t.index[sk.Key] = idx
	}
	t.intercept[sk] = v
}

func (t *Table) SetSlope(sk SegmentKey, v float64)         { t.slope[sk] = v }
func (t *Table) SetWidth(sk SegmentKey, v float64)         { t.width[sk] = v }
func (t *Table) SetBoundaryPrice(sk SegmentKey, v float64) { t.boundary[sk] = v }

// SetReference records the calibration point of the curve at key.
func (t *Table) SetReference(key Key, ref ReferencePoint) {
	t.refQuantity[key] = ref.Quantity
	t.refPrice[key] = ref.Price
}

// AddSegment is a convenience for building tables in code: it sets intercept,
// slope and width, and a boundary price equal to the intercept.
func (t *Table) AddSegment(key Key, s Segment) {
	sk := SegmentKey{Index: s.Index, Key: key}
	t.SetIntercept(sk, s.Intercept)
	t.SetSlope(sk, s.Slope)
	t.SetWidth(sk, s.Width)
	t.SetBoundaryPrice(sk, s.Intercept)
}

// Keys returns every curve key in a stable order.
func (t *Table) Keys() []Key {
	keys := make([]Key, 0, len(t.index))
	for k := range t.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Consumer != b.Consumer {
			return a.Consumer < b.Consumer
		}
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		if a.TypicalDay != b.TypicalDay {
			return a.TypicalDay < b.TypicalDay
		}
		return a.Hour < b.Hour
	})
	return keys
}

// Indices returns the sorted segment indices present for key. An empty result
// means there is no curve and callers should skip the key.
func (t *Table) Indices(key Key) []int {
	idx := t.index[key]
	out := make([]int, len(idx))
	copy(out, idx)
	return out
}

// Segments returns the segments of the curve at key in index order. Indices
// must run 0..n-1; a gap is reported as a missing intercept.
func (t *Table) Segments(key Key) ([]Segment, error) {
	idx := t.index[key]
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoCurve, key)
	}
	segs := make([]Segment, 0, len(idx))
	for i, k := range idx {
		// Indices are sorted, so a gap shows up as the first position whose
		// index is not its own ordinal.
		if k != i {
			return nil, &MissingValueError{Table: "a", Key: SegmentKey{Index: i, Key: key}}
		}
		sk := SegmentKey{Index: k, Key: key}
		b, ok := t.slope[sk]
		if !ok {
			return nil, &MissingValueError{Table: "b", Key: sk}
		}
		d, ok := t.width[sk]
		if !ok {
			return nil, &MissingValueError{Table: "D", Key: sk}
		}
		segs = append(segs, Segment{Index: k, Intercept: t.intercept[sk], Slope: b, Width: d})
	}
	return segs, nil
}

// Reference returns the calibration point of the curve at key.
func (t *Table) Reference(key Key) (ReferencePoint, error) {
	q, ok := t.refQuantity[key]
	if !ok {
		return ReferencePoint{}, &MissingValueError{Table: "d_ref", Key: SegmentKey{Key: key}}
	}
	p, ok := t.refPrice[key]
	if !ok {
		return ReferencePoint{}, &MissingValueError{Table: "p_ref", Key: SegmentKey{Key: key}}
	}
	return ReferencePoint{Quantity: q, Price: p}, nil
}

// IsVOLL reports whether every segment of the curve at key has zero slope.
func (t *Table) IsVOLL(key Key) (bool, error) {
	segs, err := t.Segments(key)
	if err != nil {
		return false, err
	}
	return isVOLL(segs), nil
}

func isVOLL(segs []Segment) bool {
	for _, s := range segs {
		if s.Slope != 0 {
			return false
		}
	}
	return len(segs) > 0
}

// Span returns the total quantity covered by segs.
func Span(segs []Segment) float64 {
	var total float64
	for _, s := range segs {
		total += s.Width
	}
	return total
}
