package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mattjoyce/relaycmd/internal/config"
	"github.com/mattjoyce/relaycmd/internal/events"
	"github.com/mattjoyce/relaycmd/internal/log"
	"github.com/mattjoyce/relaycmd/internal/progress"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	goleak.VerifyTestMain(m)
}

func newRegistry(t *testing.T, hub *events.Hub, decls ...config.CommandConfig) *Registry {
	t.Helper()
	tracker := progress.NewTracker(progress.WithHub(hub))
	r, err := New(decls, tracker, hub)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func eventsOf(hub *events.Hub, eventType string) []events.Event {
	var out []events.Event
	for _, ev := range hub.SnapshotSince(0) {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestNew_OrderAndLookup(t *testing.T) {
	r := newRegistry(t, nil,
		config.CommandConfig{Name: "save"},
		config.CommandConfig{Name: "export", Description: "write a file"},
	)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"save", "export"}, r.Names())

	e, err := r.Get("export")
	require.NoError(t, err)
	assert.Equal(t, "write a file", e.Description)

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	views := r.List()
	require.Len(t, views, 2)
	assert.Equal(t, "save", views[0].Name)
	assert.True(t, views[0].CanExecute)
	assert.Equal(t, "enabled", views[0].State)
}

func TestNew_RejectsBadDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		decls []config.CommandConfig
	}{
		{"empty name", []config.CommandConfig{{Name: ""}}},
		{"duplicate", []config.CommandConfig{{Name: "a"}, {Name: "a"}}},
		{"unknown dependent", []config.CommandConfig{{Name: "a", Dependents: []string{"b"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.decls, nil, nil)
			assert.Error(t, err)
		})
	}
}

func TestStartDisabled(t *testing.T) {
	r := newRegistry(t, nil, config.CommandConfig{Name: "export", StartDisabled: true})

	v, err := r.View("export")
	require.NoError(t, err)
	assert.False(t, v.CanExecute)
	assert.Equal(t, "user_disabled", v.State)

	_, err = r.Execute("export")
	assert.True(t, errors.Is(err, ErrNotExecutable))

	require.NoError(t, r.Enable("export"))
	v, _ = r.View("export")
	assert.True(t, v.CanExecute)
}

func TestEnableDisable_Unknown(t *testing.T) {
	r := newRegistry(t, nil)
	assert.True(t, errors.Is(r.Enable("nope"), ErrNotFound))
	assert.True(t, errors.Is(r.Disable("nope"), ErrNotFound))
	_, err := r.Execute("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = r.View("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestExecute_Sync(t *testing.T) {
	hub := events.NewHub(32)
	r := newRegistry(t, hub, config.CommandConfig{Name: "save"})

	exec, err := r.Execute("save")
	require.NoError(t, err)
	assert.NotEmpty(t, exec.ID)
	assert.Equal(t, "save", exec.Command)
	assert.True(t, exec.Task.Settled())

	e, _ := r.Get("save")
	assert.Equal(t, int64(1), e.Runs())

	assert.Eventually(t, func() bool {
		return len(eventsOf(hub, events.CommandExecuted)) == 1
	}, time.Second, 5*time.Millisecond)

	var data map[string]string
	require.NoError(t, json.Unmarshal(eventsOf(hub, events.CommandExecuted)[0].Data, &data))
	assert.Equal(t, exec.ID, data["execution_id"])
}

func TestExecute_AsyncDisablesWhileExecuting(t *testing.T) {
	r := newRegistry(t, nil, config.CommandConfig{
		Name:                  "refresh",
		Duration:              200 * time.Millisecond,
		Async:                 true,
		DisableWhileExecuting: true,
	})

	exec, err := r.Execute("refresh")
	require.NoError(t, err)

	v, _ := r.View("refresh")
	assert.False(t, v.CanExecute)
	assert.Equal(t, "force_disabled", v.State)

	_, err = r.Execute("refresh")
	assert.True(t, errors.Is(err, ErrNotExecutable))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = exec.Task.Wait(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		v, _ := r.View("refresh")
		return v.CanExecute
	}, time.Second, 5*time.Millisecond)
}

func TestExecute_ShowProgressDisablesDependents(t *testing.T) {
	r := newRegistry(t, nil,
		config.CommandConfig{
			Name:         "sync",
			Duration:     200 * time.Millisecond,
			Async:        true,
			ShowProgress: true,
			Dependents:   []string{"save"},
		},
		config.CommandConfig{Name: "save"},
	)

	exec, err := r.Execute("sync")
	require.NoError(t, err)

	// The scope disables the primary last, so once it is disabled the
	// progress key and the dependents are already in place.
	assert.Eventually(t, func() bool {
		v, _ := r.View("sync")
		return !v.CanExecute
	}, time.Second, 2*time.Millisecond)
	assert.True(t, r.Tracker().AnyProgressActive())

	save, _ := r.View("save")
	assert.False(t, save.CanExecute)
	syncView, _ := r.View("sync")
	assert.True(t, syncView.InProgress)

	active := r.Progress()
	require.Len(t, active, 1)
	assert.Equal(t, "sync", active[0].Command)

	<-exec.Task.Done()
	assert.Eventually(t, func() bool {
		save, _ := r.View("save")
		return save.CanExecute && !r.Tracker().AnyProgressActive()
	}, time.Second, 5*time.Millisecond)
}

func TestExecute_SyncShowProgressReleasesScope(t *testing.T) {
	r := newRegistry(t, nil,
		config.CommandConfig{Name: "save", ShowProgress: true, Dependents: []string{"export"}},
		config.CommandConfig{Name: "export"},
	)

	_, err := r.Execute("save")
	require.NoError(t, err)

	assert.False(t, r.Tracker().AnyProgressActive())
	assert.Empty(t, r.Progress())
	for _, v := range r.List() {
		assert.True(t, v.CanExecute, v.Name)
	}
}

func TestClose_CancelsRunningActions(t *testing.T) {
	hub := events.NewHub(32)
	tracker := progress.NewTracker(progress.WithHub(hub))
	r, err := New([]config.CommandConfig{{Name: "upload", Duration: time.Hour, Async: true}}, tracker, hub)
	require.NoError(t, err)

	exec, err := r.Execute("upload")
	require.NoError(t, err)

	r.Close()
	r.Close()

	_, taskErr, ok := exec.Task.Result()
	require.True(t, ok)
	assert.ErrorIs(t, taskErr, context.Canceled)

	failed := eventsOf(hub, events.CommandFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "upload", failed[0].Subject)
}

func TestChangeEventsPublished(t *testing.T) {
	hub := events.NewHub(32)
	r := newRegistry(t, hub, config.CommandConfig{Name: "save"})

	require.NoError(t, r.Disable("save"))

	changed := eventsOf(hub, events.CommandChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, "save", changed[0].Subject)

	var v View
	require.NoError(t, json.Unmarshal(changed[0].Data, &v))
	assert.False(t, v.CanExecute)
	assert.Equal(t, "user_disabled", v.State)
}

func TestClose_StopsChangeEvents(t *testing.T) {
	hub := events.NewHub(32)
	tracker := progress.NewTracker()
	r, err := New([]config.CommandConfig{{Name: "save"}}, tracker, hub)
	require.NoError(t, err)
	r.Close()

	e, _ := r.Get("save")
	e.Command.Disable()
	assert.Empty(t, eventsOf(hub, events.CommandChanged))
}

func TestSubscribe_AllCommands(t *testing.T) {
	r := newRegistry(t, nil, config.CommandConfig{Name: "save"}, config.CommandConfig{Name: "export"})

	var calls int
	cancel := r.Subscribe(func() { calls++ })

	require.NoError(t, r.Disable("save"))
	require.NoError(t, r.Enable("export"))
	assert.Equal(t, 2, calls)

	cancel()
	require.NoError(t, r.Enable("save"))
	assert.Equal(t, 2, calls)
}

func TestExecute_ProgressKeepsOperatorDisables(t *testing.T) {
	r := newRegistry(t, nil,
		config.CommandConfig{Name: "sync", Async: true, Duration: 100 * time.Millisecond, ShowProgress: true, Dependents: []string{"export"}},
		config.CommandConfig{Name: "export"},
		config.CommandConfig{Name: "save"},
	)
	require.NoError(t, r.Disable("export"))

	exec, err := r.Execute("sync")
	require.NoError(t, err)
	require.NoError(t, r.Disable("sync"))

	_, err = exec.Task.Wait(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"sync", "export"} {
		v, err := r.View(name)
		require.NoError(t, err)
		assert.False(t, v.CanExecute, name)
		assert.True(t, v.UserDisabled, name)
		assert.Equal(t, "user_disabled", v.State, name)
	}

	require.NoError(t, r.Enable("export"))
	v, err := r.View("export")
	require.NoError(t, err)
	assert.True(t, v.CanExecute)
	assert.False(t, v.UserDisabled)
}

func TestExecute_ProgressRestoresEnabledDependents(t *testing.T) {
	r := newRegistry(t, nil,
		config.CommandConfig{Name: "sync", Duration: 10 * time.Millisecond, ShowProgress: true, Dependents: []string{"export"}},
		config.CommandConfig{Name: "export"},
	)

	_, err := r.Execute("sync")
	require.NoError(t, err)

	for _, v := range r.List() {
		assert.True(t, v.CanExecute, v.Name)
		assert.False(t, v.UserDisabled, v.Name)
	}
}
