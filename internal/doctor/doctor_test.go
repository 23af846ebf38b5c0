package doctor

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/relaycmd/internal/config"
)

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Commands = []config.CommandConfig{
		{Name: "sync", Async: true, Duration: 2 * time.Second, ShowProgress: true, Dependents: []string{"save"}},
		{Name: "save"},
	}
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := New(validConfig()).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", r.Warnings)
	}
	if got := FormatHuman(r); got != "Configuration valid.\n" {
		t.Fatalf("FormatHuman = %q", got)
	}
}

func TestValidate_InertDependents(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Commands[0].ShowProgress = false

	r := New(cfg).Validate()
	if !r.Valid {
		t.Fatalf("warnings must not invalidate: %v", r.Errors)
	}
	assertHasWarning(t, r, "commands", "never disabled")
}

func TestValidate_DependentCycle(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Commands[1] = config.CommandConfig{Name: "save", Duration: time.Second, ShowProgress: true, Dependents: []string{"sync"}}

	assertHasWarning(t, New(cfg).Validate(), "commands", "cycle")
}

func TestValidate_InstantProgress(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Commands[0].Duration = 0

	assertHasWarning(t, New(cfg).Validate(), "commands", "never visible")
}

func TestValidate_WebhookBodySize(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Webhooks = &config.WebhooksConfig{
		Endpoints: []config.WebhookEndpoint{{Path: "/hooks/sync", Command: "sync", Secret: "s", MaxBodySize: "big"}},
	}

	r := New(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "webhooks", "max_body_size")
}

func TestValidate_WebhookTargetsDisabledCommand(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Commands[1].StartDisabled = true
	cfg.Webhooks = &config.WebhooksConfig{
		Endpoints: []config.WebhookEndpoint{{Path: "/hooks/save", Command: "save", Secret: "s"}},
	}

	assertHasWarning(t, New(cfg).Validate(), "webhooks", "starts disabled")
}

func TestValidate_Schedules(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Commands[0].DisableWhileExecuting = true
	cfg.Commands[1].StartDisabled = true
	cfg.Schedules = []config.ScheduleConfig{
		{Command: "sync", Every: "1s"},
		{Command: "save", Every: "500ms"},
	}

	r := New(cfg).Validate()
	assertHasWarning(t, r, "schedule", "overlapping firings")
	assertHasWarning(t, r, "schedule", "very short")
	assertHasWarning(t, r, "schedule", "firings are skipped until it is enabled")
}

func TestValidate_BadScheduleInterval(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Schedules = []config.ScheduleConfig{{Command: "sync", Every: "sometimes"}}

	r := New(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "schedule", "invalid schedule interval")
}

func TestValidate_RetentionWithoutState(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.State.HistoryRetention = time.Hour

	assertHasWarning(t, New(cfg).Validate(), "state", "no effect")
}

func TestValidate_DeprecatedAPIKey(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.API.Enabled = true
	cfg.API.Auth.APIKey = "k"
	assertHasWarning(t, New(cfg).Validate(), "deprecated", "full access")

	cfg.API.Auth.Tokens = []config.APIToken{{Token: "t", Scopes: []string{"*"}}}
	assertHasWarning(t, New(cfg).Validate(), "deprecated", "prefer tokens")
}

func TestFormatHuman_ErrorsAndWarnings(t *testing.T) {
	t.Parallel()
	r := &Result{
		Errors:   []Issue{{Category: "webhooks", Field: "webhooks", Message: "bad"}},
		Warnings: []Issue{{Category: "state", Message: "meh"}},
	}

	out := FormatHuman(r)
	for _, want := range []string{
		"Configuration invalid (1 error(s), 1 warning(s))",
		"ERROR [webhooks] webhooks: bad",
		"WARN  [state] meh",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	out, err := FormatJSON(New(validConfig()).Validate())
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	var decoded Result
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Valid {
		t.Fatalf("expected valid, got %s", out)
	}
}

func assertHasError(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.Category == category && strings.Contains(e.Message, substring) {
			return
		}
	}
	t.Fatalf("expected error with category=%q containing %q, got: %v", category, substring, r.Errors)
}

func assertHasWarning(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Category == category && strings.Contains(w.Message, substring) {
			return
		}
	}
	t.Fatalf("expected warning with category=%q containing %q, got: %v", category, substring, r.Warnings)
}
