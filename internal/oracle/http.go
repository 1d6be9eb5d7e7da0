package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MikeSquared-Agency/Pareto/internal/scenario"
)

// SolveRequest is the body of POST /solve.
type SolveRequest struct {
	RunDir string                `json:"run_dir"`
	Params scenario.ParameterSet `json:"params"`
}

// HTTPExecutor submits runs to a remote solver gateway.
type HTTPExecutor struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPExecutor returns an executor for the gateway at baseURL. Solves can
// take a long time, so the client timeout is set from timeout rather than a
// fixed request deadline; zero means no timeout beyond ctx.
func NewHTTPExecutor(baseURL, token string, timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPExecutor) doReq(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// Execute posts ps to the gateway. The returned record is also written into
// dir so every run directory holds its own result, as with local runs.
func (c *HTTPExecutor) Execute(ctx context.Context, ps scenario.ParameterSet, dir string) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	status, body, err := c.doReq(ctx, http.MethodPost, "/solve", SolveRequest{
		RunDir: filepath.Base(dir),
		Params: ps,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ExecError{Dir: dir, ExitCode: -1, Err: fmt.Errorf("solver gateway: %w", err)}
	}
	switch {
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return nil, ErrInfeasible
	case status >= 400:
		return nil, &ExecError{Dir: dir, ExitCode: status, Stderr: string(bytes.TrimSpace(body))}
	}

	res, err := DecodeResult(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ResultFile), body, 0o644); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}
	return res, nil
}
