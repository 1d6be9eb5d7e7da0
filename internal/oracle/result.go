package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// StatusInfeasible is the optional status an oracle may write instead of
// omitting the record.
const StatusInfeasible = "infeasible"

// Result is the decoded result record of one run.
type Result struct {
	TotalCost      float64  `json:"TotalCost"`
	TotalEmissions float64  `json:"TotalGWP"`
	SocialWelfare  float64  `json:"SocialWelfare"`
	UseEpsilon     float64  `json:"use_epsilon"`
	EpsilonValue   float64  `json:"epsilon_value"`
	SolveTime      float64  `json:"solve_time"`
	SolverTime     *float64 `json:"gurobi_solve_time,omitempty"`
	WallClock      *float64 `json:"python_wall_clock_time,omitempty"`
	Status         string   `json:"status,omitempty"`
}

// Duration is the best available measure of how long the solve took: the
// solver's own time, else the wall clock of the oracle process, else the
// generic solve_time.
func (r *Result) Duration() time.Duration {
	secs := r.SolveTime
	switch {
	case valid(r.SolverTime):
		secs = *r.SolverTime
	case valid(r.WallClock):
		secs = *r.WallClock
	}
	if math.IsNaN(secs) || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func valid(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

type rawResult struct {
	TotalCost     *float64 `json:"TotalCost"`
	TotalGWP      *float64 `json:"TotalGWP"`
	SocialWelfare *float64 `json:"SocialWelfare"`
	UseEpsilon    flag     `json:"use_epsilon"`
	EpsilonValue  float64  `json:"epsilon_value"`
	SolveTime     *float64 `json:"solve_time"`
	SolverTime    *float64 `json:"gurobi_solve_time"`
	WallClock     *float64 `json:"python_wall_clock_time"`
	Status        string   `json:"status"`
}

// flag decodes a 0/1 parameter echoed either as a number or as a JSON bool.
type flag float64

func (f *flag) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*f = 1
	case "false", "null":
		*f = 0
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flag(v)
	}
	return nil
}

// DecodeResult parses a result record. Records written by Python may carry
// bare NaN/Infinity tokens; those decode as absent. A record reporting
// status "infeasible" yields ErrInfeasible.
func DecodeResult(data []byte) (*Result, error) {
	var raw rawResult
	if err := json.Unmarshal(sanitizeNonFinite(data), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if raw.Status == StatusInfeasible {
		return nil, ErrInfeasible
	}
	if raw.TotalCost == nil || raw.TotalGWP == nil || raw.SocialWelfare == nil {
		return nil, fmt.Errorf("%w: TotalCost, TotalGWP and SocialWelfare are required", ErrMalformedResult)
	}
	res := &Result{
		TotalCost:      *raw.TotalCost,
		TotalEmissions: *raw.TotalGWP,
		SocialWelfare:  *raw.SocialWelfare,
		UseEpsilon:     float64(raw.UseEpsilon),
		EpsilonValue:   raw.EpsilonValue,
		SolverTime:     raw.SolverTime,
		WallClock:      raw.WallClock,
		Status:         raw.Status,
	}
	if raw.SolveTime != nil {
		res.SolveTime = *raw.SolveTime
	} else {
		res.SolveTime = math.NaN()
	}
	return res, nil
}

// ReadResult loads dir/last_run.json. A missing record is ErrInfeasible.
func ReadResult(dir string) (*Result, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResultFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrInfeasible
	}
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	res, err := DecodeResult(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return res, nil
}

// sanitizeNonFinite replaces NaN, Infinity and -Infinity tokens outside
// string literals with null.
func sanitizeNonFinite(data []byte) []byte {
	if !bytes.Contains(data, []byte("NaN")) && !bytes.Contains(data, []byte("Infinity")) {
		return data
	}
	out := make([]byte, 0, len(data))
	inString := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			switch c {
			case '\\':
				if i+1 < len(data) {
					i++
					out = append(out, data[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		matched := false
		for _, tok := range []string{"-Infinity", "Infinity", "NaN"} {
			if bytes.HasPrefix(data[i:], []byte(tok)) {
				out = append(out, "null"...)
				i += len(tok) - 1
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, c)
		}
	}
	return out
}
