// mock_oracle.go — deterministic stand-in for the optimisation oracle, for
// local sweeps without a solver licence.
//
// Usage (as oracle.command):
//
//	go run scripts/mock_oracle.go <run dir>
//
// It reads the rendered data file named by PARETO_PARAM_FILE and writes
// last_run.json into the run directory. Uncapped emissions fall with demand
// elasticity; welfare drops quadratically as the cap tightens. Caps below
// MOCK_ORACLE_FLOOR (default 0) are reported infeasible.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/Pareto/internal/oracle"
	"github.com/MikeSquared-Agency/Pareto/internal/scenario"
)

const (
	baseEmissions = 1000.0
	baseWelfare   = 5000.0
	baseCost      = 2000.0
)

func main() {
	start := time.Now()
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mock_oracle <run dir>")
		os.Exit(2)
	}
	dir := os.Args[len(os.Args)-1]

	paramFile := os.Getenv(oracle.EnvParamFile)
	data, err := os.ReadFile(paramFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read parameter file: %v\n", err)
		os.Exit(1)
	}
	ps, err := scenario.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse parameter file: %v\n", err)
		os.Exit(1)
	}

	floor := 0.0
	if v := os.Getenv("MOCK_ORACLE_FLOOR"); v != "" {
		floor, _ = strconv.ParseFloat(v, 64)
	}

	uncapped := baseEmissions * (1 + 2*ps.Elasticity)
	emissions := uncapped
	if ps.EpsilonEnabled {
		if ps.EpsilonValue < floor {
			write(dir, map[string]interface{}{"status": "infeasible"})
			return
		}
		emissions = math.Min(ps.EpsilonValue, uncapped)
	}
	cut := (uncapped - emissions) / uncapped
	welfare := baseWelfare * (1 + ps.Elasticity) * (1 - cut*cut)
	cost := baseCost * (1 + cut)

	solve := 0.05 + cut
	useEpsilon := 0
	if ps.EpsilonEnabled {
		useEpsilon = 1
	}
	write(dir, map[string]interface{}{
		"TotalCost":              cost,
		"TotalGWP":               emissions,
		"SocialWelfare":          welfare,
		"use_epsilon":            useEpsilon,
		"epsilon_value":          ps.EpsilonValue,
		"solve_time":             solve,
		"gurobi_solve_time":      solve,
		"python_wall_clock_time": time.Since(start).Seconds(),
		"status":                 "optimal",
	})
}

func write(dir string, rec map[string]interface{}) {
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(filepath.Join(dir, oracle.ResultFile), body, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write result: %v\n", err)
		os.Exit(1)
	}
}
