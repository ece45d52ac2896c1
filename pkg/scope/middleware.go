package scope

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

// Header names used to resolve the request scope.
const (
	OrgHeader       = "X-Org-ID"
	WorkspaceHeader = "X-Workspace-ID"
	UserHeader      = "X-Remote-User"
	GroupHeader     = "X-Remote-Group"
)

// PMGroup is the group name that grants project-manager capability.
const PMGroup = "project-managers"

// maxIDLen bounds org and workspace identifiers.
const maxIDLen = 63

// idRe validates identifier format: alphanumeric, hyphens, and underscores.
var idRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9_-]*[A-Za-z0-9])?$`)

// Middleware returns HTTP middleware that extracts the org, workspace, and
// actor identity from request headers and stores them in the request context.
// X-Org-ID is required; requests without it are rejected with 400.
// X-Remote-Group is comma-separated; membership in the project-managers group
// grants the pm capability downstream.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org := strings.TrimSpace(r.Header.Get(OrgHeader))
			if org == "" {
				writeScopeError(w, "org is required (use the X-Org-ID header)")
				return
			}
			if err := validateID(org); err != "" {
				writeScopeError(w, err)
				return
			}

			ws := strings.TrimSpace(r.Header.Get(WorkspaceHeader))
			if ws != "" {
				if err := validateID(ws); err != "" {
					writeScopeError(w, err)
					return
				}
			}

			actor := strings.TrimSpace(r.Header.Get(UserHeader))
			if actor == "" {
				actor = "anonymous"
			}

			var groups []string
			if gh := strings.TrimSpace(r.Header.Get(GroupHeader)); gh != "" {
				for _, g := range strings.Split(gh, ",") {
					g = strings.TrimSpace(g)
					if g != "" {
						groups = append(groups, g)
					}
				}
			}

			rs := RequestScope{
				OrgID:       org,
				WorkspaceID: ws,
				ActorID:     actor,
				Groups:      groups,
			}
			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), rs)))
		})
	}
}

// validateID checks an org or workspace identifier; returns an error message
// or "" if valid.
func validateID(id string) string {
	if len(id) > maxIDLen {
		return "identifier exceeds maximum length"
	}
	if !idRe.MatchString(id) {
		return "identifier must consist of alphanumeric characters, hyphens, or underscores, and must start and end with an alphanumeric character"
	}
	return ""
}

func writeScopeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
