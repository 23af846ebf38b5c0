package watch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/relaycmd/internal/events"
)

func TestReadSSE_ParsesEnvelope(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"id: 3",
		"event: command.changed",
		`data: {"subject":"save","at":"2026-01-02T03:04:05Z","data":{"name":"save","can_execute":false,"state":"user_disabled"}}`,
		"",
		"id: 4",
		"event: progress.started",
		`data: {"subject":"8c1f","at":"2026-01-02T03:04:06Z","data":{}}`,
		"",
	}, "\n")

	ch := make(chan events.Event, 4)
	readSSE(strings.NewReader(stream), ch)
	close(ch)

	var got []events.Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, events.CommandChanged, got[0].Type)
	assert.Equal(t, "save", got[0].Subject)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got[0].At)
	assert.JSONEq(t, `{"name":"save","can_execute":false,"state":"user_disabled"}`, string(got[0].Data))
	assert.Equal(t, events.ProgressStarted, got[1].Type)
}

func TestDecodeEvent_RawData(t *testing.T) {
	ev := decodeEvent(1, "custom", "not json")
	assert.Equal(t, "not json", string(ev.Data))
	assert.Empty(t, ev.Subject)
}

func changed(t *testing.T, name string, canExecute bool, state string) events.Event {
	t.Helper()
	data, err := json.Marshal(CommandState{Name: name, CanExecute: canExecute, State: state})
	require.NoError(t, err)
	return events.Event{Type: events.CommandChanged, Subject: name, Data: data, At: time.Now()}
}

func TestCommandSet_Apply(t *testing.T) {
	set := newCommandSet()
	set.seed([]CommandState{{Name: "save", CanExecute: true, State: "enabled"}})

	set.apply(changed(t, "refresh", false, "force_disabled"))
	set.apply(changed(t, "save", false, "user_disabled"))
	set.apply(events.Event{Type: events.CommandFailed, Subject: "refresh", Data: []byte(`{"error":"boom"}`)})
	set.apply(events.Event{Type: events.CommandExecuted, Subject: "save", Data: []byte(`{}`)})
	set.apply(events.Event{Type: events.CommandChanged, Data: []byte(`{}`)})

	assert.Equal(t, []string{"save", "refresh"}, set.order)
	assert.False(t, set.byKey["save"].CanExecute)
	assert.Equal(t, "user_disabled", set.byKey["save"].State)
	assert.Equal(t, "ok", set.byKey["save"].LastResult)
	assert.Equal(t, "failed", set.byKey["refresh"].LastResult)
}

func TestModel_EventUpdatesState(t *testing.T) {
	m := *New("http://example.invalid", "token", "")

	next, cmd := m.Update(eventMsg(changed(t, "save", true, "enabled")))
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.True(t, m.health.Connected)
	require.Len(t, m.eventLog, 1)

	next, _ = m.Update(eventMsg(events.Event{Type: events.ProgressStarted, Subject: "k", Data: []byte(`{}`)}))
	m = next.(Model)
	assert.Equal(t, 1, m.health.ActiveProgress)

	next, _ = m.Update(eventMsg(events.Event{Type: events.ProgressStopped, Subject: "k", Data: []byte(`{}`)}))
	m = next.(Model)
	assert.Equal(t, 0, m.health.ActiveProgress)

	next, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	view := m.View()
	assert.Contains(t, view, "COMMANDS")
	assert.Contains(t, view, "save")
	assert.Contains(t, view, "RELAYCMD WATCH")
}

func TestModel_EventLogBounded(t *testing.T) {
	m := *New("http://example.invalid", "token", "panel")
	for i := 0; i < maxEventLog+10; i++ {
		next, _ := m.Update(eventMsg(events.Event{ID: int64(i), Type: "x", Data: []byte(`{}`)}))
		m = next.(Model)
	}
	require.Len(t, m.eventLog, maxEventLog)
	assert.Equal(t, int64(maxEventLog+9), m.eventLog[0].ID)
}

func TestModel_Disconnect(t *testing.T) {
	m := *New("http://example.invalid", "token", "panel")
	m.health.Connected = true

	next, cmd := m.Update(sseDisconnectedMsg{})
	m = next.(Model)
	assert.NotNil(t, cmd)
	assert.False(t, m.health.Connected)
	assert.Contains(t, m.lastError, "reconnecting")
}

func TestModel_Navigation(t *testing.T) {
	m := *New("http://example.invalid", "token", "panel")
	next, _ := m.Update(commandsMsg{{Name: "a"}, {Name: "b"}})
	m = next.(Model)
	assert.Equal(t, 2, m.health.Commands)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, _ = next.(Model).Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, next.(Model).selected)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 1m", formatDuration(61*time.Minute))
}
