package templatecenter

import (
	"context"
	"fmt"
	"time"

	"github.com/planhub/template-center/pkg/audit"
)

// Apply modes. ModeInitial is the default; ModeUpgrade marks a deliberate
// move to a newer version and is reflected in the lineage upgrade state.
const (
	ModeInitial = "initial"
	ModeUpgrade = "upgrade"
)

// ApplyRequest asks for a template to be applied to a project.
type ApplyRequest struct {
	ProjectID   string `json:"projectId"`
	TemplateKey string `json:"templateKey"`
	// Version selects a specific published version; 0 resolves the latest.
	Version     int    `json:"version,omitempty"`
	ActorID     string `json:"-"`
	OrgID       string `json:"-"`
	WorkspaceID string `json:"-"`
	Mode        string `json:"mode,omitempty"`
}

// ApplyResult reports what an apply call created or found already present.
type ApplyResult struct {
	ProjectID            string `json:"projectId"`
	TemplateDefinitionID string `json:"templateDefinitionId"`
	TemplateVersionID    string `json:"templateVersionId"`
	TemplateVersion      int    `json:"templateVersion"`
	AlreadyApplied       bool   `json:"alreadyApplied"`
	KpisCreated          int    `json:"kpisCreated"`
	KpisExisting         int    `json:"kpisExisting"`
	DocsCreated          int    `json:"docsCreated"`
	DocsExisting         int    `json:"docsExisting"`
}

// ApplyEngine idempotently instantiates KPI attachments and document
// instances for a project from a resolved template version, and owns the
// project's lineage row.
type ApplyEngine struct {
	store   *Store
	catalog Catalog
	events  *audit.Store
}

// NewApplyEngine creates an ApplyEngine.
func NewApplyEngine(store *Store, catalog Catalog, events *audit.Store) *ApplyEngine {
	return &ApplyEngine{store: store, catalog: catalog, events: events}
}

// Apply resolves the requested template version and reconciles the project
// against it inside a single transaction. Applying the same version twice is
// an idempotent no-op; concurrent appliers for one project serialize on the
// lineage row. Required KPIs/documents missing from the project are created;
// rows the project already carries are never deleted.
func (e *ApplyEngine) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if _, err := e.store.AssertInScope(req.ProjectID, req.OrgID, req.WorkspaceID); err != nil {
		// Pre-resolution validation failure: no audit record.
		return nil, err
	}

	def, _, err := e.catalog.GetByKey(req.OrgID, req.TemplateKey)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, NotFoundError(CodeTemplateNotFound,
			fmt.Sprintf("template %q not found", req.TemplateKey))
	}
	ver, err := e.catalog.GetPublishedVersion(def.ID, req.Version)
	if err != nil {
		return nil, err
	}
	if ver == nil {
		return nil, NotFoundError(CodeTemplateVersionNotFound,
			fmt.Sprintf("template %q has no published version matching the request", req.TemplateKey))
	}

	result := &ApplyResult{
		ProjectID:            req.ProjectID,
		TemplateDefinitionID: def.ID,
		TemplateVersionID:    ver.ID,
		TemplateVersion:      ver.Version,
	}

	var oldVersionID string
	txErr := e.store.Transaction(func(tx *Store) error {
		schema, err := DecodeTemplateSchema(ver)
		if err != nil {
			return err
		}

		lin, err := tx.LockLineage(req.ProjectID)
		if err != nil {
			return err
		}
		oldVersionID = lin.TemplateVersionID

		if lin.TemplateVersionID == ver.ID {
			// Same version already applied: report what exists, create nothing.
			result.AlreadyApplied = true
			return e.countExisting(tx, req.ProjectID, schema, result)
		}

		freshApply := lin.TemplateVersionID == ""
		lin.TemplateDefinitionID = def.ID
		lin.TemplateVersionID = ver.ID
		lin.AppliedAt = time.Now()
		lin.AppliedBy = req.ActorID
		if freshApply && req.Mode != ModeUpgrade {
			lin.UpgradeState = string(UpgradeStateNone)
		} else {
			lin.UpgradeState = string(UpgradeStateApplied)
		}
		if err := tx.SaveLineage(lin); err != nil {
			return err
		}

		return e.reconcile(tx, req.ProjectID, schema, result)
	})

	if txErr != nil {
		emit(e.events, &audit.EventRecord{
			EventType:   EventTemplateApplyFailed,
			EntityType:  EntityLineage,
			Actor:       req.ActorID,
			OrgID:       req.OrgID,
			WorkspaceID: req.WorkspaceID,
			ProjectID:   req.ProjectID,
			Outcome:     audit.OutcomeFailure,
			Reason:      ErrorCode(txErr),
			Metadata: audit.JSONAny{
				"templateKey": req.TemplateKey,
				"error":       txErr.Error(),
			},
		})
		return nil, txErr
	}

	emit(e.events, &audit.EventRecord{
		EventType:   EventTemplateApplied,
		EntityType:  EntityLineage,
		EntityID:    ver.ID,
		Actor:       req.ActorID,
		OrgID:       req.OrgID,
		WorkspaceID: req.WorkspaceID,
		ProjectID:   req.ProjectID,
		Outcome:     audit.OutcomeSuccess,
		OldValue:    audit.JSONAny{"templateVersionId": oldVersionID},
		NewValue: audit.JSONAny{
			"templateDefinitionId": def.ID,
			"templateVersionId":    ver.ID,
			"templateVersion":      ver.Version,
		},
		Metadata: audit.JSONAny{
			"alreadyApplied": result.AlreadyApplied,
			"kpisCreated":    result.KpisCreated,
			"kpisExisting":   result.KpisExisting,
			"docsCreated":    result.DocsCreated,
			"docsExisting":   result.DocsExisting,
		},
	})
	return result, nil
}

// reconcile creates the required attachments and instances the project is
// missing and refreshes template-owned flags on existing documents. Extra
// rows the template no longer names are deliberately left in place.
func (e *ApplyEngine) reconcile(tx *Store, projectID string, schema *TemplateSchema, result *ApplyResult) error {
	for _, kpi := range schema.Kpis {
		if !kpi.Required {
			continue
		}
		source := kpi.Source
		if source == "" {
			source = KpiSourceManual
		}
		created, err := tx.CreateAttachmentIfAbsent(&KpiAttachmentRecord{
			ProjectID:   projectID,
			KpiKey:      kpi.Key,
			DisplayName: kpi.DisplayName,
			IsRequired:  true,
			Source:      source,
		})
		if err != nil {
			return err
		}
		if created {
			result.KpisCreated++
		} else {
			result.KpisExisting++
		}
	}

	for _, doc := range schema.Documents {
		if !doc.Required {
			continue
		}
		created, err := tx.CreateDocumentIfAbsent(&DocumentInstanceRecord{
			ProjectID:      projectID,
			DocKey:         doc.Key,
			DisplayName:    doc.DisplayName,
			Status:         StatusNotStarted,
			CurrentVersion: 1,
			IsRequired:     true,
			BlocksGateKey:  doc.BlocksGateKey,
		})
		if err != nil {
			return err
		}
		if created {
			result.DocsCreated++
		} else {
			result.DocsExisting++
			if err := tx.RefreshDocumentFlags(projectID, doc.Key, true, doc.BlocksGateKey); err != nil {
				return err
			}
		}
	}
	return nil
}

// countExisting fills the existing counts for the idempotent no-op path.
func (e *ApplyEngine) countExisting(tx *Store, projectID string, schema *TemplateSchema, result *ApplyResult) error {
	for _, kpi := range schema.Kpis {
		if !kpi.Required {
			continue
		}
		att, err := tx.GetAttachmentByKey(projectID, kpi.Key)
		if err != nil {
			return err
		}
		if att != nil {
			result.KpisExisting++
		}
	}
	for _, doc := range schema.Documents {
		if !doc.Required {
			continue
		}
		inst, err := tx.GetDocumentByKey(projectID, doc.Key)
		if err != nil {
			return err
		}
		if inst != nil {
			result.DocsExisting++
		}
	}
	return nil
}
