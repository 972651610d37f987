package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lshigami/examgrader/config"
	"github.com/rs/zerolog/log"
)

var ErrUnexpectedStatus = errors.New("executor returned unexpected status")

// Submission is one program run: source plus the stdin fed to it.
type Submission struct {
	SourceCode string
	LanguageID int
	Stdin      string
}

// Result holds the decoded output of one run.
type Result struct {
	Stdout        string
	Stderr        string
	CompileOutput string
	Status        string
}

// Runner executes code in the external sandbox.
type Runner interface {
	Execute(ctx context.Context, sub Submission) (*Result, error)
}

// Client talks to a Judge0 compatible submissions endpoint in synchronous
// (wait=true) mode with base64 payloads.
type Client struct {
	baseURL    string
	apiKey     string
	apiHost    string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Executor.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.Executor.URL, "/"),
		apiKey:     cfg.Executor.APIKey,
		apiHost:    cfg.Executor.APIHost,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type submissionRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin,omitempty"`
}

type submissionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type submissionResponse struct {
	Stdout        *string          `json:"stdout"`
	Stderr        *string          `json:"stderr"`
	CompileOutput *string          `json:"compile_output"`
	Status        submissionStatus `json:"status"`
}

func (c *Client) Execute(ctx context.Context, sub Submission) (*Result, error) {
	reqBody := submissionRequest{
		SourceCode: base64.StdEncoding.EncodeToString([]byte(sub.SourceCode)),
		LanguageID: sub.LanguageID,
	}
	if sub.Stdin != "" {
		reqBody.Stdin = base64.StdEncoding.EncodeToString([]byte(sub.Stdin))
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}

	url := c.baseURL + "/submissions?base64_encoded=true&wait=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to build executor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
	if c.apiHost != "" {
		req.Header.Set("X-RapidAPI-Host", c.apiHost)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executor request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Executor: failed to close response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read executor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, truncate(string(respBody), 200))
	}

	var decoded submissionResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode executor response: %w", err)
	}

	result := &Result{Status: decoded.Status.Description}
	if result.Stdout, err = decodeField(decoded.Stdout); err != nil {
		return nil, fmt.Errorf("stdout: %w", err)
	}
	if result.Stderr, err = decodeField(decoded.Stderr); err != nil {
		return nil, fmt.Errorf("stderr: %w", err)
	}
	if result.CompileOutput, err = decodeField(decoded.CompileOutput); err != nil {
		return nil, fmt.Errorf("compile_output: %w", err)
	}
	return result, nil
}

// decodeField decodes a base64 field; the executor wraps long values across lines.
func decodeField(v *string) (string, error) {
	if v == nil || *v == "" {
		return "", nil
	}
	clean := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, *v)
	raw, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	return string(raw), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
