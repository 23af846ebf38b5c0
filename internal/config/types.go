package config

import "time"

// Config represents the complete relaycmd configuration.
type Config struct {
	Service   ServiceConfig    `yaml:"service"`
	API       APIConfig        `yaml:"api,omitempty"`
	TUI       TUIConfig        `yaml:"tui,omitempty"`
	State     StateConfig      `yaml:"state,omitempty"`
	Webhooks  *WebhooksConfig  `yaml:"webhooks,omitempty"`
	Schedules []ScheduleConfig `yaml:"schedules,omitempty"`
	Commands  []CommandConfig  `yaml:"commands"`

	// Fingerprint is the BLAKE3 hash of the file Load read. Not serialized.
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name          string `yaml:"name"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	EventCapacity int    `yaml:"event_capacity"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is a single bearer token with full access.
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// TUIConfig defines terminal UI settings.
type TUIConfig struct {
	Title string `yaml:"title"`
}

// StateConfig locates the execution history database. An empty Path
// disables persistence.
type StateConfig struct {
	Path             string        `yaml:"path"`
	HistoryRetention time.Duration `yaml:"history_retention,omitempty"`
}

// WebhooksConfig defines the signed trigger listener.
type WebhooksConfig struct {
	Listen    string            `yaml:"listen"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint maps a POST path to the command it executes.
type WebhookEndpoint struct {
	Path    string `yaml:"path"`
	Command string `yaml:"command"`
	Secret  string `yaml:"secret"`

	// SignatureHeader carries the HMAC-SHA256 of the body, either plain hex
	// or "sha256=<hex>". Defaults to X-Hub-Signature-256.
	SignatureHeader string `yaml:"signature_header,omitempty"`

	// MaxBodySize accepts a byte count or a KB/MB/GB suffix. Default 1MB.
	MaxBodySize string `yaml:"max_body_size,omitempty"`
}

// ScheduleConfig executes Command every interval plus up to Jitter.
type ScheduleConfig struct {
	Command string        `yaml:"command"`
	Every   string        `yaml:"every"`
	Jitter  time.Duration `yaml:"jitter,omitempty"`
}

// DefaultSignatureHeader is used when an endpoint names none.
const DefaultSignatureHeader = "X-Hub-Signature-256"

// CommandConfig declares one named command. The action simulates work by
// waiting for Duration.
type CommandConfig struct {
	Name                  string        `yaml:"name"`
	Description           string        `yaml:"description,omitempty"`
	Duration              time.Duration `yaml:"duration,omitempty"`
	Async                 bool          `yaml:"async,omitempty"`
	DisableWhileExecuting bool          `yaml:"disable_while_executing,omitempty"`
	ShowProgress          bool          `yaml:"show_progress,omitempty"`
	StartDisabled         bool          `yaml:"start_disabled,omitempty"`
	Dependents            []string      `yaml:"dependents,omitempty"`
}

// Defaults returns a Config with sensible defaults and no commands.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:          "relaycmd",
			LogLevel:      "info",
			LogFormat:     "json",
			EventCapacity: 256,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8087",
		},
		TUI: TUIConfig{
			Title: "relaycmd",
		},
	}
}
