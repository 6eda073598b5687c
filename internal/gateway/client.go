// Package gateway is the read-only HTTP client for the remote data gateway
// that fronts the orchestration platform.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smileynet/airscope/internal/lineage"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// IntervalDaily is the SLA window the dashboard asks for.
const IntervalDaily = "daily"

const (
	// maxBodyBytes is the default response size limit (log bodies included).
	// Larger responses fail with ErrBodyTooLarge rather than being cut short.
	maxBodyBytes = 16 << 20
	// maxErrorExcerpt bounds the body text carried by a StatusError.
	maxErrorExcerpt = 512
)

// DAG is a pipeline entry in the list response.
type DAG struct {
	DagID                string  `json:"dag_id"`
	TimetableDescription *string `json:"timetable_description"`
}

// DAGRun is a run entry in the runs response.
type DAGRun struct {
	DagRunID string `json:"dag_run_id"`
	State    string `json:"state"`
}

// Task is a task entry in the tasks response.
type Task struct {
	TaskID string `json:"task_id"`
}

// SLAReport is the SLA snapshot for one pipeline and interval.
// CompliancePct keeps the literal JSON number text.
type SLAReport struct {
	Expected      int
	Successes     int
	Misses        *int
	CompliancePct json.Number
}

type dagsResponse struct {
	DAGs []DAG `json:"dags"`
}

type runsResponse struct {
	Runs []DAGRun `json:"dag_runs"`
}

type tasksResponse struct {
	Tasks []Task `json:"tasks"`
}

type slaResponse struct {
	Expected      *int         `json:"expected"`
	Successes     *int         `json:"successes"`
	Misses        *int         `json:"misses"`
	CompliancePct *json.Number `json:"compliance_pct"`
}

// Client issues requests against the gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	maxBody    int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxBodyBytes sets the largest response body the client accepts.
// A non-positive n keeps the default.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
		maxBody:    maxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListDAGs sends GET /dags.
func (c *Client) ListDAGs(ctx context.Context) ([]DAG, error) {
	var resp dagsResponse
	if err := c.getJSON(ctx, "list dags", "/dags", nil, &resp); err != nil {
		return nil, err
	}
	return resp.DAGs, nil
}

// ListRuns sends GET /dags/{dag}/runs.
func (c *Client) ListRuns(ctx context.Context, dagID string) ([]DAGRun, error) {
	p, err := buildPath("dags", dagID, "runs")
	if err != nil {
		return nil, err
	}
	var resp runsResponse
	if err := c.getJSON(ctx, "list runs", p, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// ListTasks sends GET /dags/{dag}/tasks. The list is pipeline scoped.
func (c *Client) ListTasks(ctx context.Context, dagID string) ([]Task, error) {
	p, err := buildPath("dags", dagID, "tasks")
	if err != nil {
		return nil, err
	}
	var resp tasksResponse
	if err := c.getJSON(ctx, "list tasks", p, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// SLA sends GET /sla/{dag}?interval=... and requires expected, successes
// and compliance_pct to be present.
func (c *Client) SLA(ctx context.Context, dagID, interval string) (SLAReport, error) {
	const op = "sla"
	p, err := buildPath("sla", dagID)
	if err != nil {
		return SLAReport{}, err
	}
	var resp slaResponse
	if err := c.getJSON(ctx, op, p, url.Values{"interval": {interval}}, &resp); err != nil {
		return SLAReport{}, err
	}
	if resp.Expected == nil || resp.Successes == nil || resp.CompliancePct == nil {
		return SLAReport{}, &DecodeError{Op: op, Err: errors.New("missing expected, successes or compliance_pct")}
	}
	return SLAReport{
		Expected:      *resp.Expected,
		Successes:     *resp.Successes,
		Misses:        resp.Misses,
		CompliancePct: *resp.CompliancePct,
	}, nil
}

// Lineage sends GET /lineage/{dag}.
func (c *Client) Lineage(ctx context.Context, dagID string) (lineage.Payload, error) {
	p, err := buildPath("lineage", dagID)
	if err != nil {
		return lineage.Payload{}, err
	}
	var resp lineage.Payload
	if err := c.getJSON(ctx, "lineage", p, nil, &resp); err != nil {
		return lineage.Payload{}, err
	}
	return resp, nil
}

// TaskLog sends GET /dags/{dag}/runs/{run}/tasks/{task}/logs/{attempt}
// and returns the body verbatim.
func (c *Client) TaskLog(ctx context.Context, dagID, runID, taskID string, attempt int) (string, error) {
	if attempt < 1 {
		return "", fmt.Errorf("gateway: task log: attempt must be >= 1, got %d", attempt)
	}
	p, err := buildPath("dags", dagID, "runs", runID, "tasks", taskID, "logs", strconv.Itoa(attempt))
	if err != nil {
		return "", err
	}
	body, err := c.get(ctx, "task log", p, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// buildPath joins escaped segments. Every segment must be non-empty.
func buildPath(segments ...string) (string, error) {
	var b strings.Builder
	for _, s := range segments {
		if s == "" {
			return "", ErrEmptyID
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String(), nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, v any) error {
	body, err := c.get(ctx, op, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	log := c.logger.With(
		zap.String("op", op),
		zap.String("path", path),
		zap.String("request_id", reqID),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("gateway request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		log.Warn("gateway response too large", zap.Int64("limit", c.maxBody))
		return nil, &TransportError{Op: op, Err: fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, c.maxBody)}
	}

	log.Debug("gateway request",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > maxErrorExcerpt {
			excerpt = excerpt[:maxErrorExcerpt] + "..."
		}
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: excerpt}
	}
	return body, nil
}
