package worklog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/tempo-worklog/internal/credentials"
	"github.com/JakeFAU/tempo-worklog/internal/metrics"
	"github.com/JakeFAU/tempo-worklog/internal/telemetry"
)

const maxErrorBody = 512

// StatusError reports a non-200 answer from the worklog endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("worklog endpoint returned status %d", e.Code)
}

// Loader reads the persisted credential settings.
type Loader interface {
	Load(d credentials.Defaults) (*credentials.Settings, error)
}

// Config controls where and how worklogs are posted.
type Config struct {
	URL       string
	Origin    string
	UserAgent string
	Timeout   time.Duration
	Defaults  credentials.Defaults
}

// Submitter posts worklogs authenticated by the stored session cookies.
type Submitter struct {
	cfg    Config
	store  Loader
	client *http.Client
	logger *zap.Logger
}

// NewSubmitter constructs a Submitter. A nil client gets a traced and metered
// client bounded by cfg.Timeout.
func NewSubmitter(cfg Config, store Loader, client *http.Client, logger *zap.Logger) (*Submitter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("worklog url is required")
	}
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if client == nil {
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: telemetry.Transport(metrics.InstrumentTransport(nil)),
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{cfg: cfg, store: store, client: client, logger: logger}, nil
}

// Submit posts the worklog and reports whether the server accepted it. Failures
// are logged, never returned.
func (s *Submitter) Submit(ctx context.Context, wl Worklog) bool {
	if err := s.Post(ctx, wl); err != nil {
		metrics.ObserveSubmission(metrics.OutcomeFailure)
		fields := []zap.Field{zap.Error(err)}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			fields = append(fields, zap.Int("status", statusErr.Code), zap.String("body", statusErr.Body))
		}
		s.logger.Error("failed to post tempo worklog", fields...)
		return false
	}
	metrics.ObserveSubmission(metrics.OutcomeSuccess)
	s.logger.Info("tempo worklog posted", zap.String("task", wl.OriginTaskID), zap.String("started", wl.Started))
	return true
}

// Post is Submit with the failure returned: a load error,
// credentials.ErrMissingCredentials, a transport error or a *StatusError.
func (s *Submitter) Post(ctx context.Context, wl Worklog) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "worklog.Post")
	span.SetAttributes(attribute.String("tempo.origin_task_id", wl.OriginTaskID))
	defer func() { telemetry.EndSpan(span, err) }()

	settings, err := s.store.Load(s.cfg.Defaults)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if err := settings.RequireCookies(); err != nil {
		return err
	}

	body, err := json.Marshal(wl)
	if err != nil {
		return fmt.Errorf("encode worklog: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	if s.cfg.Origin != "" {
		req.Header.Set("Origin", s.cfg.Origin)
	}
	for _, c := range settings.Cookies() {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: string(excerpt)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
