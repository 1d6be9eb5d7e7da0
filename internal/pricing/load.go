package pricing

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/MikeSquared-Agency/Pareto/internal/export"
)

// Export file names for the dual and period-weight tables.
const (
	FileDuals = "dual_vals.csv"
	FileMult  = "mult.csv"
	FileTOp   = "t_op.csv"
)

type period struct{ hour, td int }

// LoadDuals reads dual_vals.csv (p, n, h, td, dual_raw) and joins it with
// mult.csv and t_op.csv (h, td, value). A dual whose hour has no weight row is
// an inconsistent export and fails with ErrMissingWeight.
func LoadDuals(dir string) ([]DualRecord, error) {
	mult, err := loadWeights(filepath.Join(dir, FileMult))
	if err != nil {
		return nil, err
	}
	tOp, err := loadWeights(filepath.Join(dir, FileTOp))
	if err != nil {
		return nil, err
	}

	var out []DualRecord
	err = export.ReadRows(filepath.Join(dir, FileDuals), 5, func(rec []string) error {
		h, err := export.ParseIndex(rec[2])
		if err != nil {
			return err
		}
		td, err := export.ParseIndex(rec[3])
		if err != nil {
			return err
		}
		dual, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return fmt.Errorf("invalid dual %q", rec[4])
		}
		key := period{h, td}
		m, ok := mult[key]
		if !ok {
			return fmt.Errorf("%w: mult h=%d td=%d", ErrMissingWeight, h, td)
		}
		t, ok := tOp[key]
		if !ok {
			return fmt.Errorf("%w: t_op h=%d td=%d", ErrMissingWeight, h, td)
		}
		out = append(out, DualRecord{
			Commodity:  rec[0],
			Node:       rec[1],
			Hour:       h,
			TypicalDay: td,
			Dual:       dual,
			Mult:       m,
			TOp:        t,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadWeights(path string) (map[period]float64, error) {
	out := make(map[period]float64)
	err := export.ReadRows(path, 3, func(rec []string) error {
		h, err := export.ParseIndex(rec[0])
		if err != nil {
			return err
		}
		td, err := export.ParseIndex(rec[1])
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return fmt.Errorf("invalid weight %q", rec[2])
		}
		out[period{h, td}] = v
		return nil
	})
	return out, err
}
