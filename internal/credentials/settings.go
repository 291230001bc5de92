// Package credentials persists the Jira login and the session cookies captured from it.
package credentials

import (
	"errors"
	"strings"
)

// ErrMissingCredentials indicates the stored settings lack a session or XSRF cookie.
var ErrMissingCredentials = errors.New("missing credentials")

// NamedCookie keeps the cookie name exactly as the browser reported it, since the
// server expects the same spelling back.
type NamedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Settings is the persisted credential record.
type Settings struct {
	User     string       `json:"user"`
	Password string       `json:"pwd"`
	Session  *NamedCookie `json:"JSESSIONID,omitempty"`
	XSRF     *NamedCookie `json:"AtlassianXsrfToken,omitempty"`
}

// Defaults supplies the login used when a field is absent from the persisted file.
type Defaults struct {
	User     string
	Password string
}

// New returns settings holding only the default login.
func New(d Defaults) *Settings {
	return &Settings{User: d.User, Password: d.Password}
}

// Capture scans raw cookies and records the session and XSRF tokens. Matching is
// case-insensitive; every other cookie is ignored. It reports how many of the two
// tokens were found in this batch.
func (s *Settings) Capture(cookies []NamedCookie) int {
	found := 0
	for _, c := range cookies {
		switch {
		case IsSessionCookie(c.Name):
			s.Session = &NamedCookie{Name: c.Name, Value: c.Value}
			found++
		case IsXSRFCookie(c.Name):
			s.XSRF = &NamedCookie{Name: c.Name, Value: c.Value}
			found++
		}
	}
	return found
}

// RequireCookies returns ErrMissingCredentials unless both tokens are present.
func (s *Settings) RequireCookies() error {
	var missing []string
	if s.Session == nil || s.Session.Name == "" || s.Session.Value == "" {
		missing = append(missing, "JSESSIONID")
	}
	if s.XSRF == nil || s.XSRF.Name == "" || s.XSRF.Value == "" {
		missing = append(missing, "AtlassianXsrfToken")
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingError{Fields: missing}
}

// Cookies returns the stored tokens in a stable order: session first, then XSRF.
func (s *Settings) Cookies() []NamedCookie {
	out := make([]NamedCookie, 0, 2)
	if s.Session != nil {
		out = append(out, *s.Session)
	}
	if s.XSRF != nil {
		out = append(out, *s.XSRF)
	}
	return out
}

// MissingError lists which tokens are absent. It matches ErrMissingCredentials.
type MissingError struct {
	Fields []string
}

func (e *MissingError) Error() string {
	return ErrMissingCredentials.Error() + ": " + strings.Join(e.Fields, ", ")
}

// Is lets errors.Is match the sentinel.
func (e *MissingError) Is(target error) bool {
	return target == ErrMissingCredentials
}

// IsSessionCookie reports whether name is the servlet session cookie.
func IsSessionCookie(name string) bool {
	return strings.EqualFold(name, "jsessionid")
}

// IsXSRFCookie reports whether name is one of the Atlassian anti-forgery cookies.
func IsXSRFCookie(name string) bool {
	return strings.EqualFold(name, "atl.xsrf.token") || strings.EqualFold(name, "atlassian.xsrf.token")
}
