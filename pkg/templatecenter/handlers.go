package templatecenter

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/planhub/template-center/pkg/scope"
)

// applyHandler returns a handler that applies a template to a project.
func applyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())

		var req ApplyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeServiceError(w, BadRequestError(CodeInvalidAction, "malformed request body"))
			return
		}
		req.ProjectID = chi.URLParam(r, "projectID")
		req.ActorID = rs.ActorID
		req.OrgID = rs.OrgID
		req.WorkspaceID = rs.WorkspaceID

		result, err := svc.Apply.Apply(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// listDocumentsHandler returns a handler that lists a project's document
// instances.
func listDocumentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())
		projectID := chi.URLParam(r, "projectID")

		docs, err := svc.Documents.ListProjectDocuments(r.Context(), projectID, rs.OrgID, rs.WorkspaceID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	}
}

// getDocumentHandler returns a handler that fetches one document with its
// current version row.
func getDocumentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())
		projectID := chi.URLParam(r, "projectID")
		documentID := chi.URLParam(r, "documentID")

		doc, err := svc.Documents.GetLatest(r.Context(), projectID, documentID, rs.OrgID, rs.WorkspaceID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// documentHistoryHandler returns a handler that lists a document's version
// rows, newest first.
func documentHistoryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())
		projectID := chi.URLParam(r, "projectID")
		documentID := chi.URLParam(r, "documentID")

		versions, err := svc.Documents.GetHistory(r.Context(), projectID, documentID, rs.OrgID, rs.WorkspaceID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
	}
}

// transitionHandler returns a handler that applies a lifecycle action to a
// document.
func transitionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeServiceError(w, BadRequestError(CodeInvalidAction, "malformed request body"))
			return
		}
		req.ProjectID = chi.URLParam(r, "projectID")
		req.DocumentID = chi.URLParam(r, "documentID")
		req.ActorID = rs.ActorID
		req.IsPM = rs.HasGroup(scope.PMGroup)
		req.OrgID = rs.OrgID
		req.WorkspaceID = rs.WorkspaceID

		doc, err := svc.Documents.Transition(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// assignHandler returns a handler that updates a document's owner and
// reviewer set.
func assignHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())

		var req AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeServiceError(w, BadRequestError(CodeInvalidAction, "malformed request body"))
			return
		}
		req.ProjectID = chi.URLParam(r, "projectID")
		req.DocumentID = chi.URLParam(r, "documentID")
		req.ActorID = rs.ActorID
		req.OrgID = rs.OrgID
		req.WorkspaceID = rs.WorkspaceID

		doc, err := svc.Documents.Assign(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// gateBlockersHandler returns a handler that previews a gate's unmet
// prerequisites without recording a decision.
func gateBlockersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())
		projectID := chi.URLParam(r, "projectID")
		gateKey := chi.URLParam(r, "gateKey")

		if _, err := svc.Store.AssertInScope(projectID, rs.OrgID, rs.WorkspaceID); err != nil {
			writeServiceError(w, err)
			return
		}
		requirements, err := svc.Policy.Resolve(projectID, gateKey)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		blockers, err := svc.Gates.Blockers(projectID, gateKey, requirements)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if blockers == nil {
			blockers = []Blocker{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"gateKey": gateKey, "blockers": blockers})
	}
}

// gateDecideHandler returns a handler that records a gate decision.
func gateDecideHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())

		var req DecideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeServiceError(w, BadRequestError(CodeInvalidDecision, "malformed request body"))
			return
		}
		req.ProjectID = chi.URLParam(r, "projectID")
		req.GateKey = chi.URLParam(r, "gateKey")
		req.ActorID = rs.ActorID
		req.OrgID = rs.OrgID
		req.WorkspaceID = rs.WorkspaceID

		approval, err := svc.Gates.Decide(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, approval)
	}
}

// evidencePackHandler returns a handler that compiles a project's evidence
// pack.
func evidencePackHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())
		projectID := chi.URLParam(r, "projectID")

		pack, err := svc.Evidence.EvidencePack(r.Context(), projectID, rs.OrgID, rs.WorkspaceID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pack)
	}
}

// listTemplatesHandler returns a handler that lists template definitions
// visible to the caller's org.
func listTemplatesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		records, nextToken, err := svc.Catalog.ListDefinitions(rs.OrgID, pageSize, r.URL.Query().Get("pageToken"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"templates":     records,
			"nextPageToken": nextToken,
		})
	}
}

// getTemplateHandler returns a handler that fetches one template definition
// with its versions.
func getTemplateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())
		templateKey := chi.URLParam(r, "templateKey")

		def, versions, err := svc.Catalog.GetByKey(rs.OrgID, templateKey)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if def == nil {
			writeServiceError(w, NotFoundError(CodeTemplateNotFound, "template not found"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"template": def,
			"versions": versions,
		})
	}
}

// disabledHandler serves 503 for every route when the subsystem is turned
// off in configuration.
func disabledHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeServiceError(w, &Error{
			Kind:    KindConflict,
			Code:    CodeSubsystemDisabled,
			Message: "template center is disabled",
		})
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError writes err as a structured JSON error body with the
// status its kind maps to. Errors outside the taxonomy become opaque 500s.
func writeServiceError(w http.ResponseWriter, err error) {
	e := AsError(err)
	if e == nil {
		e = &Error{Kind: KindDataIntegrity, Code: CodeInternal, Message: "internal error"}
	}
	status := HTTPStatus(e)
	if e.Code == CodeSubsystemDisabled {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"error": e})
}
