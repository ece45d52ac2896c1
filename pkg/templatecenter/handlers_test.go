package templatecenter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planhub/template-center/pkg/scope"
)

// newTestServer mounts the API router behind the scope middleware, the way
// the server binary does.
func newTestServer(t *testing.T, enabled bool) (*Service, *httptest.Server) {
	t.Helper()
	svc, _ := newTestService(t)

	mux := http.NewServeMux()
	handler := scope.Middleware()(NewRouter(svc, enabled, nil))
	mux.Handle("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return svc, srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path string, body any, groups string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("X-Org-ID", "acme")
	req.Header.Set("X-Workspace-ID", "ws-1")
	req.Header.Set("X-Remote-User", "alice")
	if groups != "" {
		req.Header.Set("X-Remote-Group", groups)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHTTP_ApplyAndEvidenceFlow(t *testing.T) {
	svc, srv := newTestServer(t, true)
	createTestProject(t, svc.Store, "p1")
	seedTemplate(t, svc.Catalog, "delivery", 1, basicSchema())

	// Apply over HTTP.
	resp := doRequest(t, srv, http.MethodPost, "/projects/p1/template/apply",
		map[string]any{"templateKey": "delivery"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result ApplyResult
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.DocsCreated)

	// Documents list carries both instances.
	resp = doRequest(t, srv, http.MethodGet, "/projects/p1/documents", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listBody struct {
		Documents []DocumentInstanceRecord `json:"documents"`
	}
	decodeBody(t, resp, &listBody)
	require.Len(t, listBody.Documents, 2)
	charter := listBody.Documents[0]
	assert.Equal(t, "charter", charter.DocKey)

	// Assign, then run a transition as the owner.
	resp = doRequest(t, srv, http.MethodPost, "/projects/p1/documents/"+charter.ID+"/assignments",
		map[string]any{"ownerId": "alice", "reviewerIds": []string{"bob"}}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodPost, "/projects/p1/documents/"+charter.ID+"/transitions",
		map[string]any{"action": "start_draft", "content": "draft text"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc DocumentInstanceRecord
	decodeBody(t, resp, &doc)
	assert.Equal(t, StatusDraft, doc.Status)

	// Gate preview reports the unmet documents.
	resp = doRequest(t, srv, http.MethodGet, "/projects/p1/gates/phase-1/blockers", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview struct {
		GateKey  string    `json:"gateKey"`
		Blockers []Blocker `json:"blockers"`
	}
	decodeBody(t, resp, &preview)
	assert.Equal(t, "phase-1", preview.GateKey)
	assert.Len(t, preview.Blockers, 2)

	// An approving decision is refused with the structured conflict body.
	resp = doRequest(t, srv, http.MethodPost, "/projects/p1/gates/phase-1/decisions",
		map[string]any{"decision": "approved"}, "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var errBody struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	decodeBody(t, resp, &errBody)
	assert.Equal(t, CodeGateBlocked, errBody.Error.Code)
	assert.Equal(t, "phase-1", errBody.Error.Details["gateKey"])

	// Evidence pack reflects the state so far.
	resp = doRequest(t, srv, http.MethodGet, "/projects/p1/evidence-pack", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pack EvidencePack
	decodeBody(t, resp, &pack)
	require.NotNil(t, pack.TemplateLineage)
	assert.Len(t, pack.Documents, 2)
	assert.Empty(t, pack.Gates)
}

func TestHTTP_ErrorMapping(t *testing.T) {
	svc, srv := newTestServer(t, true)
	createTestProject(t, svc.Store, "p1")

	t.Run("missing org header is 400", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/projects/p1/documents", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown project is 404", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, "/projects/ghost/documents", nil, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("gate without template is 404", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, "/projects/p1/gates/phase-1/blockers", nil, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown template is 404", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, "/templates/ghost", nil, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHTTP_PMCapabilityFromGroups(t *testing.T) {
	svc, srv := newTestServer(t, true)
	ctx := context.Background()
	createTestProject(t, svc.Store, "p1")
	seedTemplate(t, svc.Catalog, "delivery", 1, basicSchema())
	_, err := svc.Apply.Apply(ctx, applyReq("p1", "delivery"))
	require.NoError(t, err)

	doc, err := svc.Store.GetDocumentByKey("p1", "charter")
	require.NoError(t, err)
	doc.OwnerID = "owner-x"
	doc.ReviewerIDs = JSONStringSlice{"rev-y"}
	doc.Status = StatusApproved
	require.NoError(t, svc.Store.SaveDocument(doc))

	// alice is neither owner nor reviewer; without the pm group the
	// completion is forbidden, with it the transition goes through.
	resp := doRequest(t, srv, http.MethodPost, "/projects/p1/documents/"+doc.ID+"/transitions",
		map[string]any{"action": "mark_complete"}, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodPost, "/projects/p1/documents/"+doc.ID+"/transitions",
		map[string]any{"action": "mark_complete"}, "staff,"+scope.PMGroup)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated DocumentInstanceRecord
	decodeBody(t, resp, &updated)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.Equal(t, "alice", updated.CompletedBy)
}

func TestHTTP_DisabledSubsystem(t *testing.T) {
	_, srv := newTestServer(t, false)

	for _, path := range []string{"/projects/p1/documents", "/templates"} {
		resp := doRequest(t, srv, http.MethodGet, path, nil, "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}
