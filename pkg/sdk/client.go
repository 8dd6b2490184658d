package trustdesk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
)

// Client is the trustdesk SDK entry point. It is safe for concurrent use.
type Client struct {
	http         *resty.Client
	pollInterval time.Duration
	obs          *observer
}

// New creates a Client for the server at WithBaseURL.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if err := validateBaseURL(cfg.baseURL); err != nil {
		return nil, err
	}
	if cfg.pollInterval <= 0 {
		return nil, errors.New("trustdesk: poll interval must be positive")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:         buildHTTPClient(cfg),
		pollInterval: cfg.pollInterval,
		obs:          obs,
	}, nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("trustdesk: base URL required (use WithBaseURL)")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("trustdesk: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("trustdesk: base URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("trustdesk: base URL must have a host, got %q", raw)
	}
	return nil
}

func buildHTTPClient(cfg *clientConfig) *resty.Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.baseURL, "/")).
		SetTimeout(cfg.timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.apiKey != "" {
		client.SetAuthToken(cfg.apiKey)
	}
	if cfg.retries > 0 {
		client.
			SetRetryCount(cfg.retries).
			SetRetryWaitTime(200 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(retryCondition)
	}
	return client
}

// retryCondition retries idempotent reads on network errors, 429 and 5xx.
func retryCondition(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// do performs one request, decoding a 2xx body into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any, query url.Values) error {
	req := c.http.R().SetContext(ctx).SetError(&APIError{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("trustdesk: %s %s: %w", method, path, err)
	}
	return handleResponse(resp)
}

// handleResponse turns a non-2xx response into *APIError.
func handleResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	apiErr.StatusCode = resp.StatusCode()
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}
	return apiErr
}

// Answer answers one question synchronously. extra is optional supporting context.
func (c *Client) Answer(ctx context.Context, question, extra string) (ans *Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("answer", start, err) }()

	ans = &Answer{}
	body := map[string]string{"question": question}
	if extra != "" {
		body["context"] = extra
	}
	if err = c.do(ctx, http.MethodPost, "/v1/answers", body, ans, nil); err != nil {
		return nil, err
	}
	return ans, nil
}

// SubmitJob starts a batch job and returns it in pending status.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (job *Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("submit_job", start, err) }()

	job = &Job{}
	if err = c.do(ctx, http.MethodPost, "/v1/jobs", req, job, nil); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns the current state of a job.
func (c *Client) GetJob(ctx context.Context, id string) (job *Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_job", start, err) }()

	return c.getJob(ctx, id)
}

func (c *Client) getJob(ctx context.Context, id string) (*Job, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: job id is required", ErrInvalidRequest)
	}
	job := &Job{}
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(id), nil, job, nil); err != nil {
		return nil, err
	}
	return job, nil
}

var errJobRunning = errors.New("job still running")

// WaitJob polls a job until it completes or fails. A failed job is returned
// together with an error wrapping ErrJobFailed. Rate limits and 5xx responses
// while polling are retried; bound the wait with ctx.
func (c *Client) WaitJob(ctx context.Context, id string) (job *Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("wait_job", start, err) }()

	job, err = retry.DoValue(ctx, retry.NewConstant(c.pollInterval), func(ctx context.Context) (*Job, error) {
		j, err := c.getJob(ctx, id)
		if err != nil {
			if transient(err) {
				return nil, retry.RetryableError(err)
			}
			return nil, err
		}
		if !j.Status.Terminal() {
			return nil, retry.RetryableError(fmt.Errorf("%w: %s %d%%", errJobRunning, j.Status, j.Progress))
		}
		return j, nil
	})
	if err != nil {
		return nil, fmt.Errorf("trustdesk: wait job %s: %w", id, err)
	}
	if job.Status == JobFailed {
		return job, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
	}
	return job, nil
}

func transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// network errors, but not our own context
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// SearchCachedAnswers returns approved answers matching the query, best first.
func (c *Client) SearchCachedAnswers(ctx context.Context, query string) (matches []CachedAnswerMatch, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_cached_answers", start, err) }()

	var out struct {
		Items []CachedAnswerMatch `json:"items"`
	}
	q := url.Values{}
	q.Set("q", query)
	if err = c.do(ctx, http.MethodGet, "/v1/cached-answers", nil, &out, q); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// AddCachedAnswer stores an approved answer.
func (c *Client) AddCachedAnswer(
	ctx context.Context, question, answer string, keywords []string,
) (entry *CachedAnswer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("add_cached_answer", start, err) }()

	body := struct {
		Question string   `json:"question"`
		Answer   string   `json:"answer"`
		Keywords []string `json:"keywords"`
	}{question, answer, keywords}
	entry = &CachedAnswer{}
	if err = c.do(ctx, http.MethodPost, "/v1/cached-answers", body, entry, nil); err != nil {
		return nil, err
	}
	return entry, nil
}

// Usage returns token consumption for the period.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (rep *UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	q := url.Values{}
	if period != "" {
		q.Set("period", string(period))
	}
	rep = &UsageReport{}
	if err = c.do(ctx, http.MethodGet, "/v1/usage", nil, rep, q); err != nil {
		return nil, err
	}
	return rep, nil
}

// Health checks the server. A degraded server answers 503 with a report;
// that report is returned without error.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	resp, err := c.http.R().SetContext(ctx).
		SetResult(&hs).
		SetError(&hs).
		Get("/health")
	if err != nil {
		return HealthStatus{}, fmt.Errorf("trustdesk: health: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusServiceUnavailable:
		return hs, nil
	default:
		return HealthStatus{}, &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
}
