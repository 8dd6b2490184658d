package trustdesk

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

const (
	defaultTimeout      = 3 * time.Minute
	defaultPollInterval = 2 * time.Second
)

type clientConfig struct {
	baseURL      string
	apiKey       string
	timeout      time.Duration
	pollInterval time.Duration
	retries      int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithBaseURL sets the server address, e.g. "http://localhost:8080".
func WithBaseURL(u string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = u
	})
}

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = key
	})
}

// WithTimeout bounds each HTTP request. Default: 3m.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithPollInterval sets how often WaitJob polls a running job. Default: 2s.
func WithPollInterval(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.pollInterval = d
	})
}

// WithRetries sets how many times a request is retried on network errors,
// 429 and 5xx responses. Answers are never retried. Default: 0.
func WithRetries(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.retries = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
