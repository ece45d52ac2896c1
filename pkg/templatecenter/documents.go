package templatecenter

import (
	"context"
	"fmt"

	"github.com/planhub/template-center/pkg/audit"
)

// TransitionRequest asks for a document lifecycle action.
type TransitionRequest struct {
	ProjectID  string `json:"-"`
	DocumentID string `json:"-"`
	Action     Action `json:"action"`

	ActorID     string `json:"-"`
	IsPM        bool   `json:"-"`
	OrgID       string `json:"-"`
	WorkspaceID string `json:"-"`

	// Optional content payload; when present, an immutable version row is
	// appended at the document's (possibly incremented) version number.
	Content       string `json:"content,omitempty"`
	Link          string `json:"link,omitempty"`
	FileID        string `json:"fileId,omitempty"`
	ChangeSummary string `json:"changeSummary,omitempty"`
}

func (r TransitionRequest) hasPayload() bool {
	return r.Content != "" || r.Link != "" || r.FileID != "" || r.ChangeSummary != ""
}

// AssignRequest mutates document ownership outside the transition table.
type AssignRequest struct {
	ProjectID  string `json:"-"`
	DocumentID string `json:"-"`

	ActorID     string `json:"-"`
	OrgID       string `json:"-"`
	WorkspaceID string `json:"-"`

	// Nil leaves the field unchanged; empty values clear it.
	OwnerID     *string   `json:"ownerId,omitempty"`
	ReviewerIDs *[]string `json:"reviewerIds,omitempty"`
}

// DocumentWithVersion pairs a document instance with one of its version rows.
type DocumentWithVersion struct {
	Document *DocumentInstanceRecord `json:"document"`
	Version  *DocumentVersionRecord  `json:"version,omitempty"`
}

// DocumentService governs each document instance's approval workflow and
// versioning.
type DocumentService struct {
	store  *Store
	events *audit.Store
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(store *Store, events *audit.Store) *DocumentService {
	return &DocumentService{store: store, events: events}
}

// resolveDocument validates project scope and loads the document, verifying
// it belongs to the project.
func (s *DocumentService) resolveDocument(projectID, documentID, orgID, workspaceID string) (*DocumentInstanceRecord, error) {
	if _, err := s.store.AssertInScope(projectID, orgID, workspaceID); err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.ProjectID != projectID {
		return nil, NotFoundError(CodeDocumentNotFound,
			fmt.Sprintf("document %s not found in project %s", documentID, projectID))
	}
	return doc, nil
}

// Transition applies a lifecycle action to a document. Validation order:
// project scope, document existence, action known, action valid from the
// current status, actor role. Every rejection after the document resolves
// emits DOCUMENT_TRANSITION_FAILED with the specific code before the error
// propagates; the mutation itself commits or rolls back as one transaction.
func (s *DocumentService) Transition(ctx context.Context, req TransitionRequest) (*DocumentInstanceRecord, error) {
	doc, err := s.resolveDocument(req.ProjectID, req.DocumentID, req.OrgID, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	oldStatus := doc.Status
	actor := Actor{ID: req.ActorID, IsPM: req.IsPM}
	rule, err := ValidateTransition(doc, req.Action, actor)
	if err != nil {
		s.emitTransitionFailure(req, doc, oldStatus, err)
		return nil, err
	}
	txErr := s.store.Transaction(func(tx *Store) error {
		doc.Status = rule.To
		switch req.Action {
		case ActionMarkComplete:
			doc.CompletedAt = touchTime()
			doc.CompletedBy = req.ActorID
		case ActionCreateNewVersion:
			doc.CurrentVersion++
		}
		if err := tx.SaveDocument(doc); err != nil {
			return err
		}

		// create_new_version always appends the version row that pairs with
		// the counter advance; other actions append only when the call
		// carried content.
		if req.Action == ActionCreateNewVersion || req.hasPayload() {
			return tx.CreateDocumentVersion(&DocumentVersionRecord{
				DocumentID:    doc.ID,
				Version:       doc.CurrentVersion,
				Content:       req.Content,
				Link:          req.Link,
				FileID:        req.FileID,
				ChangeSummary: req.ChangeSummary,
				CreatedBy:     req.ActorID,
			})
		}
		return nil
	})
	if txErr != nil {
		s.emitTransitionFailure(req, doc, oldStatus, txErr)
		return nil, txErr
	}

	emit(s.events, &audit.EventRecord{
		EventType:   EventDocTransition,
		EntityType:  EntityDocument,
		EntityID:    doc.ID,
		Actor:       req.ActorID,
		OrgID:       req.OrgID,
		WorkspaceID: req.WorkspaceID,
		ProjectID:   req.ProjectID,
		Outcome:     audit.OutcomeSuccess,
		OldValue:    audit.JSONAny{"status": string(oldStatus)},
		NewValue: audit.JSONAny{
			"status":         string(doc.Status),
			"currentVersion": doc.CurrentVersion,
		},
		Metadata: audit.JSONAny{"action": string(req.Action), "docKey": doc.DocKey},
	})
	return doc, nil
}

func (s *DocumentService) emitTransitionFailure(req TransitionRequest, doc *DocumentInstanceRecord, status DocumentStatus, cause error) {
	emit(s.events, &audit.EventRecord{
		EventType:   EventDocTransitionFailed,
		EntityType:  EntityDocument,
		EntityID:    doc.ID,
		Actor:       req.ActorID,
		OrgID:       req.OrgID,
		WorkspaceID: req.WorkspaceID,
		ProjectID:   req.ProjectID,
		Outcome:     audit.OutcomeFailure,
		Reason:      ErrorCode(cause),
		Metadata: audit.JSONAny{
			"action": string(req.Action),
			"status": string(status),
			"docKey": doc.DocKey,
			"error":  cause.Error(),
		},
	})
}

// Assign mutates a document's owner and reviewer set without going through
// the transition table.
func (s *DocumentService) Assign(ctx context.Context, req AssignRequest) (*DocumentInstanceRecord, error) {
	doc, err := s.resolveDocument(req.ProjectID, req.DocumentID, req.OrgID, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	oldOwner := doc.OwnerID
	oldReviewers := append([]string(nil), doc.ReviewerIDs...)

	if req.OwnerID != nil {
		doc.OwnerID = *req.OwnerID
	}
	if req.ReviewerIDs != nil {
		doc.ReviewerIDs = JSONStringSlice(*req.ReviewerIDs)
	}
	if err := s.store.SaveDocument(doc); err != nil {
		return nil, err
	}

	emit(s.events, &audit.EventRecord{
		EventType:   EventDocAssigned,
		EntityType:  EntityDocument,
		EntityID:    doc.ID,
		Actor:       req.ActorID,
		OrgID:       req.OrgID,
		WorkspaceID: req.WorkspaceID,
		ProjectID:   req.ProjectID,
		Outcome:     audit.OutcomeSuccess,
		OldValue:    audit.JSONAny{"ownerId": oldOwner, "reviewerIds": oldReviewers},
		NewValue:    audit.JSONAny{"ownerId": doc.OwnerID, "reviewerIds": []string(doc.ReviewerIDs)},
		Metadata:    audit.JSONAny{"docKey": doc.DocKey},
	})
	return doc, nil
}

// ListProjectDocuments returns all document instances for a project.
func (s *DocumentService) ListProjectDocuments(ctx context.Context, projectID, orgID, workspaceID string) ([]DocumentInstanceRecord, error) {
	if _, err := s.store.AssertInScope(projectID, orgID, workspaceID); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(projectID)
}

// GetLatest returns a document with its current version row, if one has
// been written.
func (s *DocumentService) GetLatest(ctx context.Context, projectID, documentID, orgID, workspaceID string) (*DocumentWithVersion, error) {
	doc, err := s.resolveDocument(projectID, documentID, orgID, workspaceID)
	if err != nil {
		return nil, err
	}
	ver, err := s.store.GetDocumentVersion(doc.ID, doc.CurrentVersion)
	if err != nil {
		return nil, err
	}
	return &DocumentWithVersion{Document: doc, Version: ver}, nil
}

// GetHistory returns a document's version rows, newest first.
func (s *DocumentService) GetHistory(ctx context.Context, projectID, documentID, orgID, workspaceID string) ([]DocumentVersionRecord, error) {
	doc, err := s.resolveDocument(projectID, documentID, orgID, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.store.ListDocumentVersions(doc.ID)
}
