package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/Pareto/internal/scenario"
)

// Environment passed to the oracle process in addition to the caller's own.
const (
	EnvParamFile = "PARETO_PARAM_FILE"
	EnvOutputDir = "PARETO_OUTPUT_DIR"
)

// LogFile receives the oracle process's combined output in each run directory.
const LogFile = "oracle.log"

const stderrTail = 4096

// ProcessConfig configures a ProcessExecutor.
type ProcessConfig struct {
	// Command and Args start the oracle; the run directory is appended as the
	// final argument.
	Command string
	Args    []string
	// Template is the data file the controlled parameters are rendered into.
	Template string
	// ParamFile is where the rendered data file is written before each run.
	// Defaults to Template, i.e. the file is rewritten in place.
	ParamFile string
	Env       []string
}

// ProcessExecutor runs the oracle as a child process, one invocation at a time.
type ProcessExecutor struct {
	cfg      ProcessConfig
	template []byte
	logger   *slog.Logger
}

// NewProcessExecutor reads the template once and returns an executor.
func NewProcessExecutor(cfg ProcessConfig, logger *slog.Logger) (*ProcessExecutor, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("oracle: command is required")
	}
	if cfg.Template == "" {
		return nil, fmt.Errorf("oracle: template is required")
	}
	tmpl, err := os.ReadFile(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	if _, err := scenario.Render(tmpl, scenario.NewParameterSet()); err != nil {
		return nil, fmt.Errorf("template %s: %w", cfg.Template, err)
	}
	if cfg.ParamFile == "" {
		cfg.ParamFile = cfg.Template
	}
	return &ProcessExecutor{cfg: cfg, template: tmpl, logger: logger}, nil
}

// Execute renders ps into the parameter file, runs the oracle with dir as its
// output directory and reads back the result record.
func (e *ProcessExecutor) Execute(ctx context.Context, ps scenario.ParameterSet, dir string) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	// A record from an earlier run must never be mistaken for this run's.
	if err := os.Remove(filepath.Join(dir, ResultFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("clear stale result: %w", err)
	}

	rendered, err := scenario.Render(e.template, ps)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(e.cfg.ParamFile, rendered); err != nil {
		return nil, fmt.Errorf("write parameter file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ParamSnapshotFile), rendered, 0o644); err != nil {
		return nil, fmt.Errorf("snapshot parameter file: %w", err)
	}

	logFile, err := os.Create(filepath.Join(dir, LogFile))
	if err != nil {
		return nil, fmt.Errorf("create oracle log: %w", err)
	}
	defer logFile.Close()

	args := append(append([]string(nil), e.cfg.Args...), dir)
	cmd := exec.CommandContext(ctx, e.cfg.Command, args...)
	cmd.Env = append(os.Environ(), e.cfg.Env...)
	cmd.Env = append(cmd.Env, EnvParamFile+"="+e.cfg.ParamFile, EnvOutputDir+"="+dir)
	var stderr tailBuffer
	cmd.Stdout = logFile
	cmd.Stderr = io.MultiWriter(logFile, &stderr)

	e.logger.Debug("starting oracle",
		"dir", dir,
		"use_epsilon", ps.EpsilonEnabled,
		"epsilon", ps.EpsilonValue,
		"elasticity", ps.Elasticity,
		"fix_demand", ps.FixedDemand,
	)
	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if runErr != nil {
		execErr := &ExecError{Dir: dir, ExitCode: -1, Stderr: stderr.String(), Err: runErr}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			execErr.ExitCode = exitErr.ExitCode()
		}
		return nil, execErr
	}
	return ReadResult(dir)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= stderrTail {
		t.buf.Reset()
		t.buf.Write(p[n-stderrTail:])
		return n, nil
	}
	t.buf.Write(p)
	if over := t.buf.Len() - stderrTail; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}
