package scenario

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingParam indicates a parameter file that lacks one of the lines the
// sweep rewrites.
var ErrMissingParam = errors.New("scenario: parameter missing from data file")

// Names of the data-file parameters the sweep controls.
const (
	ParamUseEpsilon   = "use_epsilon"
	ParamEpsilonValue = "epsilon_value"
	ParamElasticity   = "elasticity"
	ParamFixDemand    = "fix_demand"
)

var controlled = []string{ParamUseEpsilon, ParamEpsilonValue, ParamElasticity, ParamFixDemand}

// Render rewrites the controlled `param <name> := <value>;` lines of a data
// file template with the values in ps. Every other line is copied unchanged.
func Render(template []byte, ps ParameterSet) ([]byte, error) {
	values := map[string]string{
		ParamUseEpsilon:   boolParam(ps.EpsilonEnabled),
		ParamEpsilonValue: formatFloat(ps.EpsilonValue),
		ParamElasticity:   formatFloat(ps.Elasticity),
		ParamFixDemand:    boolParam(ps.FixedDemand),
	}
	seen := make(map[string]bool, len(controlled))

	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(template))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if name, ok := paramName(line); ok {
			if v, ok := values[name]; ok {
				seen[name] = true
				fmt.Fprintf(&out, "param %s := %s;\n", name, v)
				continue
			}
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan data file: %w", err)
	}

	var missing []string
	for _, name := range controlled {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, strings.Join(missing, ", "))
	}
	return out.Bytes(), nil
}

// Parse reads the controlled parameters back out of a rendered data file.
func Parse(data []byte) (ParameterSet, error) {
	var ps ParameterSet
	seen := make(map[string]bool, len(controlled))
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		name, ok := paramName(line)
		if !ok {
			continue
		}
		raw, ok := paramValue(line)
		if !ok {
			continue
		}
		var err error
		switch name {
		case ParamUseEpsilon:
			ps.EpsilonEnabled, err = parseBool(raw)
		case ParamEpsilonValue:
			ps.EpsilonValue, err = strconv.ParseFloat(raw, 64)
		case ParamElasticity:
			ps.Elasticity, err = strconv.ParseFloat(raw, 64)
		case ParamFixDemand:
			ps.FixedDemand, err = parseBool(raw)
		default:
			continue
		}
		if err != nil {
			return ParameterSet{}, fmt.Errorf("param %s: invalid value %q", name, raw)
		}
		seen[name] = true
	}
	if err := sc.Err(); err != nil {
		return ParameterSet{}, fmt.Errorf("scan data file: %w", err)
	}
	for _, name := range controlled {
		if !seen[name] {
			return ParameterSet{}, fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
	}
	return ps, nil
}

func paramName(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "param" {
		return "", false
	}
	name := fields[1]
	if i := strings.IndexAny(name, ":;"); i >= 0 {
		name = name[:i]
	}
	return name, name != ""
}

func paramValue(line string) (string, bool) {
	i := strings.Index(line, ":=")
	if i < 0 {
		return "", false
	}
	v := strings.TrimSpace(line[i+2:])
	v = strings.TrimSpace(strings.TrimSuffix(v, ";"))
	return v, v != ""
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseBool(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("not 0/1: %q", s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
