package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planhub/template-center/pkg/scope"
)

// newTestServer mounts the audit router behind the scope middleware, the way
// the server binary does.
func newTestServer(t *testing.T) (*Store, *httptest.Server) {
	t.Helper()
	store := newTestStore(t)
	srv := httptest.NewServer(scope.Middleware()(NewRouter(store)))
	t.Cleanup(srv.Close)
	return store, srv
}

func listAs(t *testing.T, srv *httptest.Server, org, path string) EventList {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("X-Org-ID", org)
	req.Header.Set("X-Remote-User", "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list EventList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	return list
}

func TestHTTP_ProjectEventsScopedToCallerOrg(t *testing.T) {
	store, srv := newTestServer(t)
	appendEvent(t, store, "DOC_TRANSITION", "p1", time.Now())

	// The owning org sees its trail.
	list := listAs(t, srv, "acme", "/projects/p1/events")
	require.Len(t, list.Events, 1)
	assert.Equal(t, 1, list.TotalSize)

	// A caller from another org gets an empty page for the same project id,
	// never the acme events or their state payloads.
	list = listAs(t, srv, "globex", "/projects/p1/events")
	assert.Empty(t, list.Events)
	assert.Zero(t, list.TotalSize)
}

func TestHTTP_EventListingScopedToCallerOrg(t *testing.T) {
	store, srv := newTestServer(t)
	appendEvent(t, store, "TEMPLATE_APPLIED", "p1", time.Now())
	require.NoError(t, store.Append(&EventRecord{
		EventType: "TEMPLATE_APPLIED",
		Actor:     "eve",
		OrgID:     "globex",
		ProjectID: "p9",
		Outcome:   OutcomeSuccess,
	}))

	list := listAs(t, srv, "globex", "/events")
	require.Len(t, list.Events, 1)
	assert.Equal(t, "globex", list.Events[0].OrgID)
	assert.Equal(t, 1, list.TotalSize)
}
