package demand

import (
	"path/filepath"
	"sort"

	"github.com/MikeSquared-Agency/Pareto/internal/export"
)

// Export file names written by the solver for one instance.
const (
	FileIntercept     = "a.csv"
	FileSlope         = "b.csv"
	FileWidth         = "D.csv"
	FileBoundaryPrice = "p_pw.csv"
	FileRefQuantity   = "d_ref.csv"
	FileRefPrice      = "p_ref.csv"
)

// LoadOptions controls how an export is read.
type LoadOptions struct {
	// PriceScale multiplies every price-dimensioned column (a, b, p_pw, p_ref).
	// Zero means 1.
	PriceScale float64
}

// LoadTable reads a segment export directory into a Table. Each segment file
// has a header row, five index columns (k, ct, n, h, td) and a trailing value
// column; reference files have four index columns (ct, n, h, td).
func LoadTable(dir string, opts LoadOptions) (*Table, error) {
	scale := opts.PriceScale
	if scale == 0 {
		scale = 1
	}
	t := NewTable()

	segmentFiles := []struct {
		name  string
		scale float64
		set   func(SegmentKey, float64)
	}{
		{FileIntercept, scale, t.SetIntercept},
		{FileSlope, scale, t.SetSlope},
		{FileWidth, 1, t.SetWidth},
		{FileBoundaryPrice, scale, t.SetBoundaryPrice},
	}
	// The segment index is derived from a.csv; every segment the other
	// columns name must be present there too.
	seen := make(map[SegmentKey]bool)
	for _, f := range segmentFiles {
		err := export.ReadRows(filepath.Join(dir, f.name), 6, func(rec []string) error {
			sk, err := parseSegmentKey(rec)
			if err != nil {
				return err
			}
			v, err := export.ParseFloat(rec[len(rec)-1])
			if err != nil {
				return err
			}
			f.set(sk, v*f.scale)
			seen[sk] = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := checkIntercepts(t, seen); err != nil {
		return nil, err
	}

	refQ := make(map[Key]float64)
	refP := make(map[Key]float64)
	refFiles := []struct {
		name  string
		scale float64
		dst   map[Key]float64
	}{
		{FileRefQuantity, 1, refQ},
		{FileRefPrice, scale, refP},
	}
	for _, f := range refFiles {
		err := export.ReadRows(filepath.Join(dir, f.name), 5, func(rec []string) error {
			key, err := parseKey(rec[0:4])
			if err != nil {
				return err
			}
			v, err := export.ParseFloat(rec[len(rec)-1])
			if err != nil {
				return err
			}
			f.dst[key] = v * f.scale
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	for key, q := range refQ {
		p, ok := refP[key]
		if !ok {
			return nil, &MissingValueError{Table: "p_ref", Key: SegmentKey{Key: key}}
		}
		t.SetReference(key, ReferencePoint{Quantity: q, Price: p})
	}
	return t, nil
}

func checkIntercepts(t *Table, seen map[SegmentKey]bool) error {
	var missing []SegmentKey
	for sk := range seen {
		if _, ok := t.intercept[sk]; !ok {
			missing = append(missing, sk)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Slice(missing, func(i, j int) bool {
		a, b := missing[i], missing[j]
		if a.Key != b.Key {
			return a.Key.String() < b.Key.String()
		}
		return a.Index < b.Index
	})
	return &MissingValueError{Table: "a", Key: missing[0]}
}

func parseSegmentKey(rec []string) (SegmentKey, error) {
	k, err := export.ParseIndex(rec[0])
	if err != nil {
		return SegmentKey{}, err
	}
	key, err := parseKey(rec[1:5])
	if err != nil {
		return SegmentKey{}, err
	}
	return SegmentKey{Index: k, Key: key}, nil
}

func parseKey(rec []string) (Key, error) {
	h, err := export.ParseIndex(rec[2])
	if err != nil {
		return Key{}, err
	}
	td, err := export.ParseIndex(rec[3])
	if err != nil {
		return Key{}, err
	}
	return Key{Consumer: rec[0], Node: rec[1], Hour: h, TypicalDay: td}, nil
}
