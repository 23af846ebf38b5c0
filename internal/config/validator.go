package config

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/relaycmd/internal/auth"
)

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	switch strings.ToLower(cfg.Service.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.API.Enabled {
		if err := validateAuth(&cfg.API.Auth); err != nil {
			return err
		}
	}

	if err := validateCommands(cfg.Commands); err != nil {
		return err
	}

	names := commandNames(cfg.Commands)
	if cfg.State.HistoryRetention < 0 {
		return fmt.Errorf("state.history_retention must not be negative")
	}
	if err := validateSchedules(cfg.Schedules, names); err != nil {
		return err
	}
	if cfg.Webhooks != nil {
		if err := validateWebhooks(cfg.Webhooks, names); err != nil {
			return err
		}
	}
	return nil
}

func commandNames(cmds []CommandConfig) map[string]bool {
	names := make(map[string]bool, len(cmds))
	for _, c := range cmds {
		names[c.Name] = true
	}
	return names
}

func validateSchedules(schedules []ScheduleConfig, names map[string]bool) error {
	for i, s := range schedules {
		if s.Command == "" {
			return fmt.Errorf("schedules[%d].command is required", i)
		}
		if !names[s.Command] {
			return fmt.Errorf("schedules[%d]: unknown command %q", i, s.Command)
		}
		if _, err := ParseInterval(s.Every); err != nil {
			return fmt.Errorf("schedules[%d].every: %w", i, err)
		}
		if s.Jitter < 0 {
			return fmt.Errorf("schedules[%d].jitter must not be negative", i)
		}
	}
	return nil
}

func validateWebhooks(wc *WebhooksConfig, names map[string]bool) error {
	seen := make(map[string]int, len(wc.Endpoints))
	for i, ep := range wc.Endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("webhooks.endpoints[%d].path must start with /", i)
		}
		normalized := strings.TrimSuffix(ep.Path, "/")
		if prev, dup := seen[normalized]; dup {
			return fmt.Errorf("webhooks.endpoints[%d].path %q conflicts with webhooks.endpoints[%d]", i, ep.Path, prev)
		}
		seen[normalized] = i
		if !names[ep.Command] {
			return fmt.Errorf("webhooks.endpoints[%d]: unknown command %q", i, ep.Command)
		}
		if ep.Secret == "" {
			return fmt.Errorf("webhooks.endpoints[%d].secret is required", i)
		}
		if name := unresolvedVar(ep.Secret); name != "" {
			return fmt.Errorf("webhooks.endpoints[%d].secret: environment variable ${%s} is not set", i, name)
		}
	}
	return nil
}

func validateAuth(a *APIAuthConfig) error {
	if name := unresolvedVar(a.APIKey); name != "" {
		return fmt.Errorf("api.auth.api_key: environment variable ${%s} is not set", name)
	}
	if a.APIKey == "" && len(a.Tokens) == 0 {
		return fmt.Errorf("api.auth: api_key or tokens required when api is enabled")
	}
	for i, tok := range a.Tokens {
		if tok.Token == "" {
			return fmt.Errorf("api.auth.tokens[%d].token is required", i)
		}
		if name := unresolvedVar(tok.Token); name != "" {
			return fmt.Errorf("api.auth.tokens[%d].token: environment variable ${%s} is not set", i, name)
		}
		if len(tok.Scopes) == 0 {
			return fmt.Errorf("api.auth.tokens[%d].scopes must be non-empty", i)
		}
		for _, s := range tok.Scopes {
			if !auth.KnownScope(s) {
				return fmt.Errorf("api.auth.tokens[%d]: unknown scope %q", i, s)
			}
		}
	}
	return nil
}

func validateCommands(cmds []CommandConfig) error {
	names := make(map[string]bool, len(cmds))
	for i, c := range cmds {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("commands[%d].name is required", i)
		}
		if strings.ContainsAny(c.Name, "/ ") {
			return fmt.Errorf("command %q: name must not contain spaces or slashes", c.Name)
		}
		if names[c.Name] {
			return fmt.Errorf("command %q: duplicate name", c.Name)
		}
		names[c.Name] = true
		if c.Duration < 0 {
			return fmt.Errorf("command %q: duration must not be negative", c.Name)
		}
	}

	for _, c := range cmds {
		for _, dep := range c.Dependents {
			if !names[dep] {
				return fmt.Errorf("command %q: unknown dependent %q", c.Name, dep)
			}
			if dep == c.Name {
				return fmt.Errorf("command %q: cannot depend on itself", c.Name)
			}
		}
	}
	return nil
}

// unresolvedVar returns the name of the first ${VAR} left in s.
func unresolvedVar(s string) string {
	if m := envVarPattern.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return ""
}
