package scope

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMiddleware(t *testing.T, headers map[string]string) (RequestScope, bool, *httptest.ResponseRecorder) {
	t.Helper()
	var got RequestScope
	var ok bool
	handler := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return got, ok, rec
}

func TestMiddleware_ResolvesScope(t *testing.T) {
	got, ok, rec := runMiddleware(t, map[string]string{
		OrgHeader:       "acme",
		WorkspaceHeader: "ws-1",
		UserHeader:      "alice",
		GroupHeader:     "staff, project-managers ,",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.Equal(t, "acme", got.OrgID)
	assert.Equal(t, "ws-1", got.WorkspaceID)
	assert.Equal(t, "alice", got.ActorID)
	assert.Equal(t, []string{"staff", "project-managers"}, got.Groups)
	assert.True(t, got.HasGroup(PMGroup))
	assert.False(t, got.HasGroup("admins"))
}

func TestMiddleware_MissingOrgIsRejected(t *testing.T) {
	_, ok, rec := runMiddleware(t, map[string]string{UserHeader: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, ok)
}

func TestMiddleware_AnonymousDefault(t *testing.T) {
	got, ok, rec := runMiddleware(t, map[string]string{OrgHeader: "acme"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.Equal(t, "anonymous", got.ActorID)
	assert.Empty(t, got.WorkspaceID)
	assert.Empty(t, got.Groups)
}

func TestMiddleware_InvalidIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"org with spaces", map[string]string{OrgHeader: "bad org"}},
		{"org with slash", map[string]string{OrgHeader: "a/b"}},
		{"org trailing hyphen", map[string]string{OrgHeader: "acme-"}},
		{"workspace with dot", map[string]string{OrgHeader: "acme", WorkspaceHeader: "ws.1"}},
		{"org too long", map[string]string{OrgHeader: strings.Repeat("a", 70)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, rec := runMiddleware(t, tt.headers)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
