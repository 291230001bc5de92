// Package browser drives a real browser through the Jira login form.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBrowserUnavailable is returned by launchers that cannot start a browser.
	ErrBrowserUnavailable = errors.New("browser not available")
	// ErrNotVisible indicates the element exists but is not rendered.
	ErrNotVisible = errors.New("element not visible")
)

// Cookie is a cookie as reported by the browser.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	Expires  time.Time
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is a live browser tab. Callers must Close it on every exit path.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until document.readyState is "complete".
	WaitReady(ctx context.Context) error
	// Visible reports whether the element with the given id is rendered.
	Visible(ctx context.Context, id string) (bool, error)
	Click(ctx context.Context, id string) error
	// Fill clears the input with the given id and types value into it.
	Fill(ctx context.Context, id, value string) error
	Cookies(ctx context.Context) ([]Cookie, error)
	Close() error
}
