package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/juju/clock"
)

const (
	defaultPageLoadTimeout = 30 * time.Second
	defaultPollInterval    = 100 * time.Millisecond
)

// Config controls the behavior of the chromedp launcher.
type Config struct {
	Headless        bool
	ExecPath        string
	UserAgent       string
	PageLoadTimeout time.Duration
	PollInterval    time.Duration
	// Clock paces the ready-state poll. Nil means the wall clock.
	Clock clock.Clock
}

// Chromedp implements Launcher using chromedp and a local Chrome.
type Chromedp struct {
	cfg Config
}

// NewChromedp creates a launcher backed by chromedp.
func NewChromedp(cfg Config) (*Chromedp, error) {
	if cfg.PageLoadTimeout < 0 {
		return nil, fmt.Errorf("page load timeout must be >= 0")
	}
	if cfg.PollInterval < 0 {
		return nil, fmt.Errorf("poll interval must be >= 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Chromedp{cfg: cfg}, nil
}

// Launch starts Chrome and opens a tab. The returned session owns both. A
// missing Chrome binary is reported as ErrBrowserUnavailable.
func (c *Chromedp) Launch(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx, c.setupAction()); err != nil {
		tabCancel()
		allocCancel()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
		}
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &chromedpSession{
		tabCtx:       tabCtx,
		tabCancel:    tabCancel,
		allocCancel:  allocCancel,
		timeout:      c.pageLoadTimeout(),
		pollInterval: c.pollInterval(),
		clock:        c.cfg.Clock,
	}, nil
}

func (c *Chromedp) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-crash-reporter", true),
		chromedp.Flag("disable-logging", true),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("enable-automation", false),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	return opts
}

func (c *Chromedp) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if c.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (c *Chromedp) pageLoadTimeout() time.Duration {
	if c.cfg.PageLoadTimeout > 0 {
		return c.cfg.PageLoadTimeout
	}
	return defaultPageLoadTimeout
}

func (c *Chromedp) pollInterval() time.Duration {
	if c.cfg.PollInterval > 0 {
		return c.cfg.PollInterval
	}
	return defaultPollInterval
}

type chromedpSession struct {
	tabCtx       context.Context
	tabCancel    context.CancelFunc
	allocCancel  context.CancelFunc
	timeout      time.Duration
	pollInterval time.Duration
	clock        clock.Clock

	closeOnce sync.Once
	closeErr  error
}

// run executes actions in the tab, bounded by the page-load timeout and by ctx.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	actionCtx, cancel := context.WithTimeout(s.tabCtx, s.timeout)
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	return chromedp.Run(actionCtx, actions...)
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromedpSession) WaitReady(ctx context.Context) error {
	return pollReady(ctx, s.clock, s.timeout, s.pollInterval, func(ctx context.Context) (string, error) {
		var state string
		err := s.run(ctx, chromedp.Evaluate(`document.readyState`, &state))
		return state, err
	})
}

// pollReady calls readState until it reports "complete" or timeout passes.
// Evaluation errors count as not ready: while a navigation commits, the old
// document's execution context is gone and Chrome rejects the call.
func pollReady(
	ctx context.Context,
	clk clock.Clock,
	timeout, interval time.Duration,
	readState func(context.Context) (string, error),
) error {
	deadline := clk.Now().Add(timeout)
	var (
		state   string
		lastErr error
	)
	for {
		current, err := readState(ctx)
		if err == nil && current == "complete" {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("wait for document ready: %w", ctxErr)
		}
		lastErr = err
		if err == nil {
			state = current
		}
		if !clk.Now().Before(deadline) {
			if lastErr != nil {
				return fmt.Errorf("read document state: %w", lastErr)
			}
			return fmt.Errorf("document not ready after %v (state %q)", timeout, state)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for document ready: %w", ctx.Err())
		case <-clk.After(interval):
		}
	}
}

func (s *chromedpSession) Visible(ctx context.Context, id string) (bool, error) {
	var visible bool
	if err := s.run(ctx, chromedp.Evaluate(visibilityScript(id), &visible)); err != nil {
		return false, fmt.Errorf("check visibility of %q: %w", id, err)
	}
	return visible, nil
}

func (s *chromedpSession) Click(ctx context.Context, id string) error {
	if err := s.run(ctx, chromedp.Click(idSelector(id), chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", id, err)
	}
	return nil
}

func (s *chromedpSession) Fill(ctx context.Context, id, value string) error {
	sel := idSelector(id)
	if err := s.run(ctx,
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("fill %q: %w", id, err)
	}
	return nil
}

func (s *chromedpSession) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}
	return toCookies(raw), nil
}

// Close shuts the browser down gracefully and releases the allocator. It is safe
// to call more than once.
func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.tabCtx); err != nil {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		s.tabCancel()
		s.allocCancel()
	})
	return s.closeErr
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// idSelector builds an attribute selector so ids need no CSS escaping.
func idSelector(id string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `[id="` + r.Replace(id) + `"]`
}

func visibilityScript(id string) string {
	quoted, _ := json.Marshal(id)
	return `(function(id) {
	const el = document.getElementById(id);
	if (!el) { return false; }
	const style = window.getComputedStyle(el);
	if (style.visibility === "hidden" || style.display === "none") { return false; }
	return !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
})(` + string(quoted) + `)`
}

func toCookies(raw []*network.Cookie) []Cookie {
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		if c == nil {
			continue
		}
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		// Session cookies report an expiry of -1.
		if c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			cookie.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
		out = append(out, cookie)
	}
	return out
}
