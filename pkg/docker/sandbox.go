package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/exam-go-api/pkg/coderunner"
)

var (
	sandboxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "exam",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Duration of sandboxed container executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"language"})

	sandboxTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam",
		Subsystem: "sandbox",
		Name:      "run_timeouts_total",
		Help:      "Number of sandboxed executions that hit the timeout",
	}, []string{"language"})

	sandboxFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam",
		Subsystem: "sandbox",
		Name:      "run_failures_total",
		Help:      "Number of sandboxed executions that resulted in an error",
	}, []string{"language"})
)

// ErrLanguageNotSupported indicates the sandbox has no image for the language.
var ErrLanguageNotSupported = errors.New("language not supported by sandbox")

type languageProfile struct {
	Image    string
	FileName string
	Cmd      []string
}

// Config groups sandbox configuration values.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkspaceRoot string
	Logger        zerolog.Logger
}

// Sandbox runs submitted code inside short-lived Docker containers with the
// network disabled. It implements coderunner.Runner and serves as the local
// fallback when no remote runner service is configured.
type Sandbox struct {
	client    *client.Client
	cfg       Config
	languages map[string]languageProfile
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewSandbox constructs a Docker backed runner.
func NewSandbox(cfg Config) (*Sandbox, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Sandbox{
		client: cli,
		cfg:    cfg,
		languages: map[string]languageProfile{
			"python": {
				Image:    "python:3.11-alpine",
				FileName: "main.py",
				Cmd:      []string{"python", "main.py"},
			},
			"javascript": {
				Image:    "node:20-alpine",
				FileName: "main.js",
				Cmd:      []string{"node", "main.js"},
			},
			"go": {
				Image:    "golang:1.22-alpine",
				FileName: "main.go",
				Cmd:      []string{"sh", "-c", "go run main.go"},
			},
		},
		tracer: otel.Tracer("github.com/noah-isme/exam-go-api/pkg/docker"),
		logger: logger.With().Str("component", "docker_sandbox").Logger(),
	}, nil
}

// Run writes the source into a scratch workspace, executes it inside a
// container with the request stdin attached, and captures stdout/stderr.
func (s *Sandbox) Run(parent context.Context, req coderunner.RunRequest) (coderunner.RunResult, error) {
	language := strings.ToLower(strings.TrimSpace(req.Language))
	profile, ok := s.languages[language]
	if !ok {
		return coderunner.RunResult{}, ErrLanguageNotSupported
	}

	ctx, span := s.tracer.Start(parent, "sandbox.run", trace.WithAttributes(
		attribute.String("sandbox.language", language),
		attribute.String("sandbox.image", profile.Image),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workspace, err := os.MkdirTemp(s.cfg.WorkspaceRoot, "sandbox-")
	if err != nil {
		return coderunner.RunResult{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, profile.FileName), []byte(req.Source), 0600); err != nil {
		return coderunner.RunResult{}, fmt.Errorf("write source: %w", err)
	}

	containerCfg := &container.Config{
		Image:        profile.Image,
		Cmd:          profile.Cmd,
		WorkingDir:   "/workspace",
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		OpenStdin:    true,
		StdinOnce:    true,
	}

	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    s.cfg.MemoryLimitMB * 1024 * 1024,
			CPUShares: s.cfg.CPUShares,
		},
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workspace,
			Target: "/workspace",
		}},
	}

	start := time.Now()
	result := coderunner.RunResult{}

	resp, err := s.client.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		sandboxFailures.WithLabelValues(language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("container create: %w", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancelRemove := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelRemove()
		if err := s.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			s.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	attach, err := s.client.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		sandboxFailures.WithLabelValues(language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("container attach: %w", err)
	}
	defer attach.Close()

	if err := s.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		sandboxFailures.WithLabelValues(language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("container start: %w", err)
	}

	go func() {
		defer attach.CloseWrite()
		if req.Stdin != "" {
			_, _ = io.Copy(attach.Conn, strings.NewReader(req.Stdin))
		}
	}()

	outputDone := make(chan error, 1)
	var stdoutBuf, stderrBuf bytes.Buffer
	go func() {
		_, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, attach.Reader)
		outputDone <- err
	}()

	statusCh, errCh := s.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	result.Duration = time.Since(start)
	sandboxDuration.WithLabelValues(language).Observe(result.Duration.Seconds())

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			result.TimedOut = true
			sandboxTimeouts.WithLabelValues(language).Inc()
			killCtx, cancelKill := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelKill()
			if err := s.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
				s.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
			}
			span.RecordError(waitErr)
			span.SetStatus(codes.Error, "execution timed out")
		} else if !errors.Is(waitErr, context.Canceled) {
			sandboxFailures.WithLabelValues(language).Inc()
			span.RecordError(waitErr)
			span.SetStatus(codes.Error, waitErr.Error())
			return result, fmt.Errorf("container wait: %w", waitErr)
		}
	}

	select {
	case <-outputDone:
	case <-time.After(2 * time.Second):
	}
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()

	if result.TimedOut {
		return result, fmt.Errorf("execution timed out after %s", timeout)
	}

	return result, nil
}

// Close shuts down the sandbox's underlying docker client.
func (s *Sandbox) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
