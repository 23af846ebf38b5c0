package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc123", want: "abc123"},
		{name: "trims", header: "Bearer   abc123  ", want: "abc123"},
		{name: "missing", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic abc123", wantErr: true},
		{name: "empty token", header: "Bearer ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/commands", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearerToken(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticate_LegacyKeyIsAdmin(t *testing.T) {
	p, ok := Authenticate("admin-key", "admin-key", nil)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopeCommandsWrite))
	assert.True(t, HasAnyScope(p, ScopeEventsRead))
}

func TestAuthenticate_ScopedToken(t *testing.T) {
	tokens := []TokenConfig{
		{Token: "reader", Scopes: []string{ScopeCommandsRead}},
		{Token: "writer", Scopes: []string{" commands:rw ", ""}},
	}

	p, ok := Authenticate("reader", "", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopeCommandsRead))
	assert.False(t, HasAnyScope(p, ScopeCommandsWrite))

	p, ok = Authenticate("writer", "", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopeCommandsWrite))
	assert.True(t, HasAnyScope(p, ScopeCommandsRead), "write implies read")
	assert.False(t, HasAnyScope(p, ScopeEventsRead))

	_, ok = Authenticate("nope", "", tokens)
	assert.False(t, ok)
}

func TestAuthenticate_EmptyNeverMatches(t *testing.T) {
	_, ok := Authenticate("", "", []TokenConfig{{Token: "", Scopes: []string{ScopeAll}}})
	assert.False(t, ok)
}

func TestHasAnyScope_NoneRequired(t *testing.T) {
	assert.True(t, HasAnyScope(Principal{}))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Token: "t"})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "t", p.Token)
}

func TestKnownScope(t *testing.T) {
	assert.True(t, KnownScope("commands:ro"))
	assert.True(t, KnownScope("*"))
	assert.False(t, KnownScope("plugin:rw"))
}
