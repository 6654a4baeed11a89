package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aria-labs/ariactl/internal/auth"
)

var (
	ErrBaseURLRequired = errors.New("backend: base url required")
	ErrJobIDRequired   = errors.New("backend: job id required")
	ErrNoDataSources   = errors.New("backend: at least one data source required")
	ErrRequestFailed   = errors.New("backend: request failed")
)

// JobStatusResponse is the job status endpoint payload.
type JobStatusResponse struct {
	Status        string            `json:"status"`
	Progress      int               `json:"progress"`
	CurrentStep   string            `json:"current_step"`
	AgentStatuses map[string]string `json:"agent_statuses"`
	Result        json.RawMessage   `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// JobHandle references one fire-and-forget analysis job.
type JobHandle struct {
	JobID string `json:"job_id"`
}

// DataSource describes one analysis input.
type DataSource struct {
	SourceID   string `json:"source_id"`
	SourceType string `json:"source_type"`
	PathOrURL  string `json:"path_or_url"`
	DataFormat string `json:"data_format"`
}

// AnalyzeRequest is the analysis submission payload.
type AnalyzeRequest struct {
	Query         string       `json:"query,omitempty"`
	DataSources   []DataSource `json:"data_sources"`
	OutputFormats []string     `json:"output_formats,omitempty"`
	ThreadID      string       `json:"thread_id,omitempty"`
}

// Config defines backend client defaults.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// DefaultConfig returns backend client defaults.
func DefaultConfig() Config {
	return Config{RequestTimeout: 15 * time.Second}
}

// Client is a bearer-authenticated analysis API client.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  auth.TokenSource
	log     zerolog.Logger
}

// NewClient constructs a backend client. Tokens may be nil for
// unauthenticated test backends.
func NewClient(cfg Config, tokens auth.TokenSource, log zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrBaseURLRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().RequestTimeout
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log.With().Str("component", "backend").Logger(),
	}, nil
}

// FetchJobStatus fetches the current status of one analysis job.
func (c *Client) FetchJobStatus(ctx context.Context, jobID string) (JobStatusResponse, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return JobStatusResponse{}, ErrJobIDRequired
	}
	var out JobStatusResponse
	err := c.doJSON(ctx, http.MethodGet, "/agents/jobs/"+url.PathEscape(jobID), nil, "", &out)
	if err != nil {
		return JobStatusResponse{}, err
	}
	return out, nil
}

// SubmitAnalysis starts the analysis pipeline and returns a job handle.
func (c *Client) SubmitAnalysis(ctx context.Context, req AnalyzeRequest) (JobHandle, error) {
	if len(req.DataSources) == 0 {
		return JobHandle{}, ErrNoDataSources
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return JobHandle{}, err
	}
	var out JobHandle
	if err := c.doJSON(ctx, http.MethodPost, "/agents/analyze", bytes.NewReader(payload), "application/json", &out); err != nil {
		return JobHandle{}, err
	}
	return out, nil
}

// UploadAnalysis uploads one file and starts the pipeline on it. The
// returned job handle seeds a poll-based session.
func (c *Client) UploadAnalysis(ctx context.Context, filename string, r io.Reader, query string) (JobHandle, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return JobHandle{}, fmt.Errorf("%w: filename required", ErrRequestFailed)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return JobHandle{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return JobHandle{}, err
	}
	if query = strings.TrimSpace(query); query != "" {
		if err := form.WriteField("query", query); err != nil {
			return JobHandle{}, err
		}
	}
	if err := form.Close(); err != nil {
		return JobHandle{}, err
	}

	var out JobHandle
	if err := c.doJSON(ctx, http.MethodPost, "/agents/analyze/upload", &body, form.FormDataContentType(), &out); err != nil {
		return JobHandle{}, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("backend: credential: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("backend request rejected")
		return fmt.Errorf("%w: %s %s: status %d: %s",
			ErrRequestFailed, method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRequestFailed, err)
	}
	return nil
}
