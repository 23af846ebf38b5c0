// Package doctor reports configuration that loads but will not behave the
// way its author probably expects.
package doctor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattjoyce/relaycmd/internal/config"
	"github.com/mattjoyce/relaycmd/internal/webhook"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor inspects a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.warnInertDependents(r)
	d.warnDependentCycles(r)
	d.warnInstantProgress(r)
	d.validateWebhooks(r)
	d.warnSuspiciousSchedules(r)
	d.warnRetentionWithoutState(r)
	d.warnDeprecatedSyntax(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) commandIndex(name string) int {
	for i, c := range d.cfg.Commands {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// warnInertDependents flags dependents on commands that never open a
// progress scope, since only the scope disables them.
func (d *Doctor) warnInertDependents(r *Result) {
	for i, c := range d.cfg.Commands {
		if len(c.Dependents) > 0 && !c.ShowProgress {
			d.addWarning(r, "commands", fmt.Sprintf("commands[%d].dependents", i),
				fmt.Sprintf("command %q lists dependents but show_progress is off, so they are never disabled", c.Name))
		}
	}
}

// warnDependentCycles flags commands that disable each other.
func (d *Doctor) warnDependentCycles(r *Result) {
	graph := make(map[string][]string)
	for _, c := range d.cfg.Commands {
		if c.ShowProgress {
			graph[c.Name] = c.Dependents
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	visited := make(map[string]int) // 0=unvisited, 1=in-stack, 2=done
	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = 1
		for _, next := range graph[node] {
			if visited[next] == 1 {
				return true
			}
			if visited[next] == 0 && hasCycle(next) {
				return true
			}
		}
		visited[node] = 2
		return false
	}

	for _, node := range nodes {
		if visited[node] == 0 && hasCycle(node) {
			d.addWarning(r, "commands", "commands",
				fmt.Sprintf("dependents form a cycle involving %q; whichever runs first blocks the others until it finishes", node))
			return
		}
	}
}

// warnInstantProgress flags progress scopes that close as soon as they open.
func (d *Doctor) warnInstantProgress(r *Result) {
	for i, c := range d.cfg.Commands {
		if c.ShowProgress && c.Duration == 0 {
			d.addWarning(r, "commands", fmt.Sprintf("commands[%d].show_progress", i),
				fmt.Sprintf("command %q shows progress but has no duration, so progress is never visible", c.Name))
		}
	}
}

func (d *Doctor) validateWebhooks(r *Result) {
	if d.cfg.Webhooks == nil {
		return
	}
	if _, err := webhook.FromGlobalConfig(d.cfg.Webhooks); err != nil {
		d.addError(r, "webhooks", "webhooks", err.Error())
	}
	for i, ep := range d.cfg.Webhooks.Endpoints {
		if idx := d.commandIndex(ep.Command); idx >= 0 && d.cfg.Commands[idx].StartDisabled {
			d.addWarning(r, "webhooks", fmt.Sprintf("webhooks.endpoints[%d].command", i),
				fmt.Sprintf("webhook %q targets %q which starts disabled; triggers answer 409 until it is enabled", ep.Path, ep.Command))
		}
	}
}

// warnSuspiciousSchedules flags intervals that are very short or that the
// target command cannot keep up with.
func (d *Doctor) warnSuspiciousSchedules(r *Result) {
	for i, s := range d.cfg.Schedules {
		field := fmt.Sprintf("schedules[%d]", i)
		every, err := config.ParseInterval(s.Every)
		if err != nil {
			d.addError(r, "schedule", field+".every", err.Error())
			continue
		}
		if every < time.Second {
			d.addWarning(r, "schedule", field+".every",
				fmt.Sprintf("schedule interval %q is very short (< 1s)", s.Every))
		}

		idx := d.commandIndex(s.Command)
		if idx < 0 {
			continue
		}
		c := d.cfg.Commands[idx]
		if c.StartDisabled {
			d.addWarning(r, "schedule", field+".command",
				fmt.Sprintf("schedule targets %q which starts disabled; firings are skipped until it is enabled", c.Name))
		}
		if c.Async && c.DisableWhileExecuting && c.Duration > every {
			d.addWarning(r, "schedule", field+".every",
				fmt.Sprintf("command %q runs for %s but is scheduled every %s; overlapping firings are skipped", c.Name, c.Duration, every))
		}
	}
}

func (d *Doctor) warnRetentionWithoutState(r *Result) {
	if d.cfg.State.HistoryRetention > 0 && d.cfg.State.Path == "" {
		d.addWarning(r, "state", "state.history_retention",
			"history_retention has no effect without state.path")
	}
}

// warnDeprecatedSyntax warns about legacy auth patterns.
func (d *Doctor) warnDeprecatedSyntax(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Auth.APIKey != "" && len(d.cfg.API.Auth.Tokens) > 0 {
		d.addWarning(r, "deprecated", "api.auth",
			"both api_key and tokens configured; prefer tokens array only")
	}
	if d.cfg.API.Auth.APIKey != "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "deprecated", "api.auth.api_key",
			"api_key grants full access; migrate to tokens with scopes (relaycmd config token)")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}

	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
