package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/planhub/template-center/pkg/scope"
)

// listEventsHandler returns a handler that lists paginated audit events for
// the caller's org, optionally filtered by event type.
func listEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())
		pageSize, pageToken := pageParams(r)
		eventType := r.URL.Query().Get("eventType")

		records, nextToken, total, err := store.ListAll(rs.OrgID, pageSize, pageToken, eventType)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, toEventList(records, nextToken, total))
	}
}

// listProjectEventsHandler returns a handler that lists paginated audit
// events for a single project. The query is bound to the caller's org, so a
// project in another org yields an empty page rather than its events.
func listProjectEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, _ := scope.FromContext(r.Context())
		projectID := chi.URLParam(r, "projectID")
		pageSize, pageToken := pageParams(r)

		records, nextToken, total, err := store.ListByProject(rs.OrgID, projectID, pageSize, pageToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, toEventList(records, nextToken, total))
	}
}

func pageParams(r *http.Request) (int, string) {
	pageSize := 20
	if ps := r.URL.Query().Get("pageSize"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 {
			pageSize = v
		}
	}
	return pageSize, r.URL.Query().Get("pageToken")
}

func toEventList(records []EventRecord, nextToken string, total int) EventList {
	events := make([]Event, len(records))
	for i, rec := range records {
		events[i] = recordToEvent(rec)
	}
	return EventList{
		Events:        events,
		NextPageToken: nextToken,
		TotalSize:     total,
	}
}

// recordToEvent converts an audit event record to the API type.
func recordToEvent(rec EventRecord) Event {
	return Event{
		ID:          rec.ID,
		EventType:   rec.EventType,
		EntityType:  rec.EntityType,
		EntityID:    rec.EntityID,
		Actor:       rec.Actor,
		OrgID:       rec.OrgID,
		WorkspaceID: rec.WorkspaceID,
		ProjectID:   rec.ProjectID,
		Outcome:     rec.Outcome,
		Reason:      rec.Reason,
		OldValue:    map[string]any(rec.OldValue),
		NewValue:    map[string]any(rec.NewValue),
		Metadata:    map[string]any(rec.Metadata),
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339Nano),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
