package coderunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "exam",
		Subsystem: "coderunner",
		Name:      "run_duration_seconds",
		Help:      "Duration of remote code executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"language"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam",
		Subsystem: "coderunner",
		Name:      "run_failures_total",
		Help:      "Number of remote executions that resulted in an error",
	}, []string{"language"})
)

// Config groups remote runner client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Logger     zerolog.Logger
}

// Client talks to a remote sandboxed code-runner service over HTTP. One
// request executes one source/stdin pair.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	tracer     trace.Tracer
	logger     zerolog.Logger
}

type executeRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
	Stdin    string `json:"stdin"`
}

type executeResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out"`
	Message  string `json:"message"`
}

// NewClient constructs a remote runner client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("code runner base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		tracer:     otel.Tracer("github.com/noah-isme/exam-go-api/pkg/coderunner"),
		logger:     logger.With().Str("component", "coderunner_client").Logger(),
	}, nil
}

// Run submits the source and stdin to the remote runner and returns the
// captured output. Transient transport failures are retried with a short
// backoff before the error is returned.
func (c *Client) Run(parent context.Context, req RunRequest) (RunResult, error) {
	ctx, span := c.tracer.Start(parent, "coderunner.run", trace.WithAttributes(
		attribute.String("coderunner.language", req.Language),
	))
	defer span.End()

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(executeRequest{
		Language: req.Language,
		Source:   req.Source,
		Stdin:    req.Stdin,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("encode execute request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.NewTimer(time.Duration(attempt) * 200 * time.Millisecond)
			select {
			case <-ctx.Done():
				backoff.Stop()
				lastErr = ctx.Err()
			case <-backoff.C:
			}
			if ctx.Err() != nil {
				break
			}
		}

		result, err := c.execute(ctx, payload)
		if err == nil {
			duration := time.Since(start)
			result.Duration = duration
			runDuration.WithLabelValues(req.Language).Observe(duration.Seconds())
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	runFailures.WithLabelValues(req.Language).Inc()
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	c.logger.Warn().Err(lastErr).Str("language", req.Language).Msg("remote execution failed")
	return RunResult{Duration: time.Since(start)}, lastErr
}

func (c *Client) execute(ctx context.Context, payload []byte) (RunResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return RunResult{}, fmt.Errorf("build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return RunResult{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RunResult{}, fmt.Errorf("read execute response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return RunResult{}, fmt.Errorf("runner returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded executeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return RunResult{}, fmt.Errorf("decode execute response: %w", err)
	}

	return RunResult{
		Stdout:   decoded.Stdout,
		Stderr:   decoded.Stderr,
		ExitCode: decoded.ExitCode,
		TimedOut: decoded.TimedOut,
	}, nil
}
