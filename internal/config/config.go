// Package config loads and validates worklog tool configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Jira        JiraConfig        `mapstructure:"jira"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Worklog     WorklogConfig     `mapstructure:"worklog"`
}

// JiraConfig locates the Jira instance and its endpoints.
type JiraConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	LoginPath   string `mapstructure:"login_path"`
	WorklogPath string `mapstructure:"worklog_path"`
}

// CredentialsConfig holds the login defaults and where the credential file lives.
type CredentialsConfig struct {
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	File           string `mapstructure:"file"`
	KeyringService string `mapstructure:"keyring_service"`
}

// BrowserConfig drives the headless login flow.
type BrowserConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Headless           bool   `mapstructure:"headless"`
	ExecPath           string `mapstructure:"exec_path"`
	PageLoadTimeoutSec int    `mapstructure:"page_load_timeout_seconds"`
	SettleMs           int    `mapstructure:"settle_ms"`
	ClickAttempts      int    `mapstructure:"click_attempts"`
	ClickDelayMs       int    `mapstructure:"click_delay_ms"`
	SubmitElementID    string `mapstructure:"submit_id"`
	UsernameElementID  string `mapstructure:"username_id"`
	PasswordElementID  string `mapstructure:"password_id"`
}

// HTTPConfig configures the REST client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// MetricsConfig controls where run metrics are exported.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// WorklogConfig describes the example worklog submitted after login.
type WorklogConfig struct {
	Worker           string `mapstructure:"worker"`
	OriginTaskID     string `mapstructure:"origin_task_id"`
	TimeSpentSeconds int    `mapstructure:"time_spent_seconds"`
	Started          string `mapstructure:"started"`
	Comment          string `mapstructure:"comment"`
}

// Load builds a Config from an optional dotenv file, an optional config file and the environment.
func Load(path string) (Config, error) {
	return LoadWithEnvFile(path, ".env")
}

// LoadWithEnvFile is Load with an explicit dotenv path; a missing dotenv file is ignored.
func LoadWithEnvFile(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("TEMPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("jira.base_url", "https://jira.xxx.yyy")
	v.SetDefault("jira.login_path", "/login.jsp")
	v.SetDefault("jira.worklog_path", "/rest/tempo-timesheets/4/worklogs/")
	v.SetDefault("credentials.user", "jira_user_name")
	v.SetDefault("credentials.password", "jira_pwd")
	v.SetDefault("credentials.file", "./CredentialSettings.json")
	v.SetDefault("credentials.keyring_service", "")
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.page_load_timeout_seconds", 30)
	v.SetDefault("browser.settle_ms", 3000)
	v.SetDefault("browser.click_attempts", 4)
	v.SetDefault("browser.click_delay_ms", 3000)
	v.SetDefault("browser.submit_id", "login-form-submit")
	v.SetDefault("browser.username_id", "login-form-username")
	v.SetDefault("browser.password_id", "login-form-password")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/118.0.0.0")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("worklog.worker", "JIRAUSER15")
	v.SetDefault("worklog.origin_task_id", "42")
	v.SetDefault("worklog.time_spent_seconds", 3600)
	v.SetDefault("worklog.started", "")
	v.SetDefault("worklog.comment", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Jira.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("jira.base_url must be an absolute URL")
	}
	if c.Jira.LoginPath == "" {
		return fmt.Errorf("jira.login_path is required")
	}
	if c.Jira.WorklogPath == "" {
		return fmt.Errorf("jira.worklog_path is required")
	}
	if strings.TrimSpace(c.Credentials.File) == "" {
		return fmt.Errorf("credentials.file is required")
	}
	if c.Browser.PageLoadTimeoutSec <= 0 {
		return fmt.Errorf("browser.page_load_timeout_seconds must be > 0")
	}
	if c.Browser.SettleMs < 0 {
		return fmt.Errorf("browser.settle_ms must be >= 0")
	}
	if c.Browser.ClickAttempts <= 0 {
		return fmt.Errorf("browser.click_attempts must be > 0")
	}
	if c.Browser.ClickDelayMs <= 0 {
		return fmt.Errorf("browser.click_delay_ms must be > 0")
	}
	if c.Browser.SubmitElementID == "" || c.Browser.UsernameElementID == "" || c.Browser.PasswordElementID == "" {
		return fmt.Errorf("browser.submit_id, browser.username_id and browser.password_id are required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Worklog.Started != "" {
		if _, err := time.Parse(time.DateOnly, c.Worklog.Started); err != nil {
			return fmt.Errorf("worklog.started must be YYYY-MM-DD: %w", err)
		}
	}
	return nil
}

// LoginURL is the absolute URL of the login form.
func (c Config) LoginURL() string {
	return joinURL(c.Jira.BaseURL, c.Jira.LoginPath)
}

// WorklogURL is the absolute URL of the worklog REST endpoint.
func (c Config) WorklogURL() string {
	return joinURL(c.Jira.BaseURL, c.Jira.WorklogPath)
}

// Origin is the scheme and host of the Jira instance.
func (c Config) Origin() string {
	return strings.TrimRight(c.Jira.BaseURL, "/")
}

// PageLoadTimeout converts the browser timeout into a duration.
func (c Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.Browser.PageLoadTimeoutSec) * time.Second
}

// SettleDelay is the fixed wait after the document reports ready.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Browser.SettleMs) * time.Millisecond
}

// ClickDelay is the pause between click attempts.
func (c Config) ClickDelay() time.Duration {
	return time.Duration(c.Browser.ClickDelayMs) * time.Millisecond
}

// HTTPTimeout converts the REST client timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
