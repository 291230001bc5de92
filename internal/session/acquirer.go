// Package session logs into Jira through a browser and stores the resulting cookies.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"

	"github.com/JakeFAU/tempo-worklog/internal/browser"
	"github.com/JakeFAU/tempo-worklog/internal/credentials"
	"github.com/JakeFAU/tempo-worklog/internal/metrics"
	"github.com/JakeFAU/tempo-worklog/internal/telemetry"
)

// ErrNoCookies indicates the browser returned no cookies after login.
var ErrNoCookies = errors.New("no cookies obtained")

// Config controls the login flow.
type Config struct {
	LoginURL          string
	SubmitElementID   string
	UsernameElementID string
	PasswordElementID string
	SettleDelay       time.Duration
	ClickAttempts     int
	ClickDelay        time.Duration
}

// Saver persists captured settings.
type Saver interface {
	Save(settings *credentials.Settings) error
}

// Fingerprinter digests secrets for logging.
type Fingerprinter interface {
	Fingerprint(value string) string
}

// Acquirer runs the browser login and writes the credential store.
type Acquirer struct {
	cfg      Config
	launcher browser.Launcher
	settings *credentials.Settings
	store    Saver
	hasher   Fingerprinter
	clock    clock.Clock
	logger   *zap.Logger
}

// New constructs an Acquirer. settings supplies the login and receives the captured cookies.
func New(
	cfg Config,
	launcher browser.Launcher,
	settings *credentials.Settings,
	store Saver,
	hasher Fingerprinter,
	clk clock.Clock,
	logger *zap.Logger,
) (*Acquirer, error) {
	if launcher == nil {
		return nil, fmt.Errorf("browser launcher is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("credential settings are required")
	}
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if cfg.LoginURL == "" {
		return nil, fmt.Errorf("login url is required")
	}
	if cfg.ClickAttempts <= 0 {
		return nil, fmt.Errorf("click attempts must be > 0")
	}
	if cfg.ClickDelay <= 0 {
		return nil, fmt.Errorf("click delay must be > 0")
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{
		cfg:      cfg,
		launcher: launcher,
		settings: settings,
		store:    store,
		hasher:   hasher,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Acquire logs in, captures the session cookies and saves them. It is all or
// nothing: any failure is logged and returned, and the browser is always closed.
func (a *Acquirer) Acquire(ctx context.Context) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "session.Acquire")
	start := a.clock.Now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
			a.logger.Error("cookie retrieval failed", zap.Error(err))
		}
		metrics.ObserveAcquisition(outcome, a.clock.Now().Sub(start))
		telemetry.EndSpan(span, err)
	}()

	sess, err := a.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.logger.Warn("failed to close browser", zap.Error(cerr))
		}
	}()

	cookies, err := a.login(ctx, sess)
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return ErrNoCookies
	}

	a.capture(cookies)
	if err := a.store.Save(a.settings); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	a.logger.Info("obtained and saved cookies", zap.Int("cookies_seen", len(cookies)))
	return nil
}

func (a *Acquirer) login(ctx context.Context, sess browser.Session) ([]browser.Cookie, error) {
	a.logger.Debug("opening login page", zap.String("url", a.cfg.LoginURL))
	if err := sess.Navigate(ctx, a.cfg.LoginURL); err != nil {
		return nil, err
	}
	if err := a.waitSettled(ctx, sess); err != nil {
		return nil, err
	}

	if err := a.clickWithRetry(ctx, sess, a.cfg.SubmitElementID); err != nil {
		return nil, err
	}
	if err := a.fillForm(ctx, sess); err != nil {
		return nil, err
	}
	if err := a.clickWithRetry(ctx, sess, a.cfg.SubmitElementID); err != nil {
		return nil, err
	}

	if err := a.waitSettled(ctx, sess); err != nil {
		return nil, err
	}
	cookies, err := sess.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

func (a *Acquirer) waitSettled(ctx context.Context, sess browser.Session) error {
	if err := sess.WaitReady(ctx); err != nil {
		return err
	}
	return a.sleep(ctx, a.cfg.SettleDelay)
}

func (a *Acquirer) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-a.clock.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("settle wait: %w", ctx.Err())
	}
}

// clickWithRetry clicks the element once it is visible, making up to
// ClickAttempts attempts spaced ClickDelay apart.
func (a *Acquirer) clickWithRetry(ctx context.Context, sess browser.Session, id string) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			err := a.clickOnce(ctx, sess, id)
			outcome := metrics.OutcomeSuccess
			if err != nil {
				outcome = metrics.OutcomeFailure
			}
			metrics.ObserveClick(id, outcome)
			return err
		},
		IsFatalError: func(error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			a.logger.Debug("click attempt failed",
				zap.String("element", id), zap.Int("attempt", attempt), zap.Error(err))
		},
		Attempts: a.cfg.ClickAttempts,
		Delay:    a.cfg.ClickDelay,
		Clock:    a.clock,
		Stop:     ctx.Done(),
	})
	if err != nil {
		return fmt.Errorf("click element %q: %w", id, retry.LastError(err))
	}
	return nil
}

func (a *Acquirer) clickOnce(ctx context.Context, sess browser.Session, id string) error {
	visible, err := sess.Visible(ctx, id)
	if err != nil {
		return err
	}
	if !visible {
		return browser.ErrNotVisible
	}
	return sess.Click(ctx, id)
}

func (a *Acquirer) fillForm(ctx context.Context, sess browser.Session) error {
	if err := sess.Fill(ctx, a.cfg.UsernameElementID, a.settings.User); err != nil {
		return fmt.Errorf("fill login form: %w", err)
	}
	if err := sess.Fill(ctx, a.cfg.PasswordElementID, a.settings.Password); err != nil {
		return fmt.Errorf("fill login form: %w", err)
	}
	return nil
}

func (a *Acquirer) capture(cookies []browser.Cookie) {
	named := make([]credentials.NamedCookie, 0, len(cookies))
	for _, c := range cookies {
		named = append(named, credentials.NamedCookie{Name: c.Name, Value: c.Value})
	}
	a.settings.Capture(named)

	if a.settings.Session != nil {
		metrics.ObserveCookie("session")
		a.logger.Info("captured session cookie",
			zap.String("name", a.settings.Session.Name),
			zap.String("fingerprint", a.fingerprint(a.settings.Session.Value)))
	} else {
		a.logger.Warn("session cookie missing after login")
	}
	if a.settings.XSRF != nil {
		metrics.ObserveCookie("xsrf")
		a.logger.Info("captured xsrf cookie",
			zap.String("name", a.settings.XSRF.Name),
			zap.String("fingerprint", a.fingerprint(a.settings.XSRF.Value)))
	} else {
		a.logger.Warn("xsrf cookie missing after login")
	}
}

func (a *Acquirer) fingerprint(value string) string {
	if a.hasher == nil {
		return ""
	}
	return a.hasher.Fingerprint(value)
}
