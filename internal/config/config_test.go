package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithEnvFile("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LoginURL() != "https://jira.xxx.yyy/login.jsp" {
		t.Fatalf("unexpected login url %q", cfg.LoginURL())
	}
	if cfg.WorklogURL() != "https://jira.xxx.yyy/rest/tempo-timesheets/4/worklogs/" {
		t.Fatalf("unexpected worklog url %q", cfg.WorklogURL())
	}
	if cfg.Browser.ClickAttempts != 4 || cfg.ClickDelay() != 3*time.Second {
		t.Fatalf("unexpected click policy: %+v", cfg.Browser)
	}
	if cfg.PageLoadTimeout() != 30*time.Second {
		t.Fatalf("expected 30s page load timeout, got %v", cfg.PageLoadTimeout())
	}
	if cfg.Credentials.File != "./CredentialSettings.json" {
		t.Fatalf("unexpected credential file %q", cfg.Credentials.File)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
jira:
  base_url: https://jira.example.com/
  login_path: /sso/login.jsp
  worklog_path: rest/tempo/worklogs
credentials:
  user: alice
  password: secret
  file: /tmp/creds.json
browser:
  headless: false
  page_load_timeout_seconds: 10
  settle_ms: 250
  click_attempts: 2
  click_delay_ms: 100
http:
  timeout_seconds: 45
  user_agent: tempo-test
logging:
  development: false
worklog:
  worker: JIRAUSER99
  started: "2025-01-21"
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadWithEnvFile(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Credentials.User != "alice" || cfg.Credentials.Password != "secret" {
		t.Fatalf("expected credential overrides, got %+v", cfg.Credentials)
	}
	if cfg.Browser.Headless {
		t.Fatal("expected headless override to apply")
	}
	if cfg.LoginURL() != "https://jira.example.com/sso/login.jsp" {
		t.Fatalf("unexpected login url %q", cfg.LoginURL())
	}
	if cfg.WorklogURL() != "https://jira.example.com/rest/tempo/worklogs" {
		t.Fatalf("unexpected worklog url %q", cfg.WorklogURL())
	}
	if cfg.Origin() != "https://jira.example.com" {
		t.Fatalf("unexpected origin %q", cfg.Origin())
	}
	if cfg.SettleDelay() != 250*time.Millisecond || cfg.ClickDelay() != 100*time.Millisecond {
		t.Fatalf("unexpected delays: settle=%v click=%v", cfg.SettleDelay(), cfg.ClickDelay())
	}
	if cfg.HTTPTimeout() != 45*time.Second || cfg.HTTP.UserAgent != "tempo-test" {
		t.Fatalf("unexpected http config: %+v", cfg.HTTP)
	}
	if cfg.Worklog.Worker != "JIRAUSER99" || cfg.Worklog.Started != "2025-01-21" {
		t.Fatalf("unexpected worklog config: %+v", cfg.Worklog)
	}
	if cfg.Browser.SubmitElementID != "login-form-submit" {
		t.Fatalf("expected default submit id to survive, got %q", cfg.Browser.SubmitElementID)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TEMPO_CREDENTIALS_USER", "bob")
	t.Setenv("TEMPO_BROWSER_CLICK_ATTEMPTS", "7")

	cfg, err := LoadWithEnvFile("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Credentials.User != "bob" {
		t.Fatalf("expected env user, got %q", cfg.Credentials.User)
	}
	if cfg.Browser.ClickAttempts != 7 {
		t.Fatalf("expected env click attempts, got %d", cfg.Browser.ClickAttempts)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("TEMPO_CREDENTIALS_PASSWORD=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	// godotenv never overrides variables that are already set, so register
	// cleanup for the one it is about to export.
	t.Setenv("TEMPO_CREDENTIALS_PASSWORD", "")
	if err := os.Unsetenv("TEMPO_CREDENTIALS_PASSWORD"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	cfg, err := LoadWithEnvFile("", envFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Credentials.Password != "from-dotenv" {
		t.Fatalf("expected dotenv password, got %q", cfg.Credentials.Password)
	}
}

func TestLoadMissingDotEnvIgnored(t *testing.T) {
	if _, err := LoadWithEnvFile("", filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := LoadWithEnvFile(filepath.Join(t.TempDir(), "absent.yaml"), ""); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Jira: JiraConfig{
			BaseURL:     "https://jira.example.com",
			LoginPath:   "/login.jsp",
			WorklogPath: "/rest/worklogs",
		},
		Credentials: CredentialsConfig{File: "creds.json"},
		Browser: BrowserConfig{
			PageLoadTimeoutSec: 30,
			ClickAttempts:      4,
			ClickDelayMs:       10,
			SubmitElementID:    "submit",
			UsernameElementID:  "user",
			PasswordElementID:  "pass",
		},
		HTTP: HTTPConfig{TimeoutSeconds: 10},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "relative base url", mutate: func(c *Config) { c.Jira.BaseURL = "jira.example.com" }, want: "jira.base_url"},
		{name: "missing login path", mutate: func(c *Config) { c.Jira.LoginPath = "" }, want: "jira.login_path"},
		{name: "missing worklog path", mutate: func(c *Config) { c.Jira.WorklogPath = "" }, want: "jira.worklog_path"},
		{name: "missing credential file", mutate: func(c *Config) { c.Credentials.File = " " }, want: "credentials.file"},
		{name: "zero page timeout", mutate: func(c *Config) { c.Browser.PageLoadTimeoutSec = 0 }, want: "page_load_timeout"},
		{name: "negative settle", mutate: func(c *Config) { c.Browser.SettleMs = -1 }, want: "settle_ms"},
		{name: "zero attempts", mutate: func(c *Config) { c.Browser.ClickAttempts = 0 }, want: "click_attempts"},
		{name: "zero click delay", mutate: func(c *Config) { c.Browser.ClickDelayMs = 0 }, want: "click_delay_ms"},
		{name: "missing element id", mutate: func(c *Config) { c.Browser.PasswordElementID = "" }, want: "browser.password_id"},
		{name: "zero http timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "bad started date", mutate: func(c *Config) { c.Worklog.Started = "21/01/2025" }, want: "worklog.started"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
