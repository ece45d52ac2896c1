package templatecenter

import (
	"context"
	"time"
)

// LineageEvidence summarizes the project's template binding.
type LineageEvidence struct {
	TemplateDefinitionID string `json:"templateDefinitionId"`
	TemplateVersionID    string `json:"templateVersionId"`
	AppliedAt            string `json:"appliedAt"`
	AppliedBy            string `json:"appliedBy"`
	UpgradeState         string `json:"upgradeState"`
}

// DocumentEvidence is one document instance in the snapshot.
type DocumentEvidence struct {
	DocumentID     string   `json:"documentId"`
	DocKey         string   `json:"docKey"`
	DisplayName    string   `json:"displayName,omitempty"`
	Status         string   `json:"status"`
	OwnerID        string   `json:"ownerId,omitempty"`
	ReviewerIDs    []string `json:"reviewerIds,omitempty"`
	CurrentVersion int      `json:"currentVersion"`
	IsRequired     bool     `json:"isRequired"`
	BlocksGateKey  string   `json:"blocksGateKey,omitempty"`
	CompletedAt    string   `json:"completedAt,omitempty"`
	CompletedBy    string   `json:"completedBy,omitempty"`
}

// KpiEvidence is one KPI attachment plus its latest recorded value.
type KpiEvidence struct {
	AttachmentID string   `json:"attachmentId"`
	KpiKey       string   `json:"kpiKey"`
	DisplayName  string   `json:"displayName,omitempty"`
	IsRequired   bool     `json:"isRequired"`
	Source       string   `json:"source"`
	LatestValue  *float64 `json:"latestValue,omitempty"`
	RecordedAt   string   `json:"recordedAt,omitempty"`
	RecordedBy   string   `json:"recordedBy,omitempty"`
}

// GateEvidence is the current (most recent) decision for one gate, with the
// total number of decisions logged against it.
type GateEvidence struct {
	GateKey       string         `json:"gateKey"`
	Decision      string         `json:"decision"`
	Comment       string         `json:"comment,omitempty"`
	Evidence      map[string]any `json:"evidence,omitempty"`
	DecidedBy     string         `json:"decidedBy"`
	DecidedAt     string         `json:"decidedAt"`
	DecisionCount int            `json:"decisionCount"`
}

// EvidencePack is a compiled, read-only snapshot of a project's governance
// state. The three list fields are never null: absence of data is an empty
// array, distinguished from a missing-project error.
type EvidencePack struct {
	TemplateLineage *LineageEvidence   `json:"templateLineage"`
	Documents       []DocumentEvidence `json:"documents"`
	Kpis            []KpiEvidence      `json:"kpis"`
	Gates           []GateEvidence     `json:"gates"`
}

// EvidenceService compiles evidence packs.
type EvidenceService struct {
	store *Store
}

// NewEvidenceService creates an EvidenceService.
func NewEvidenceService(store *Store) *EvidenceService {
	return &EvidenceService{store: store}
}

// EvidencePack validates scope and compiles the snapshot: lineage (or null),
// all document instances, each KPI attachment with its latest value, and the
// latest decision per gate.
func (s *EvidenceService) EvidencePack(ctx context.Context, projectID, orgID, workspaceID string) (*EvidencePack, error) {
	if _, err := s.store.AssertInScope(projectID, orgID, workspaceID); err != nil {
		return nil, err
	}

	pack := &EvidencePack{
		Documents: []DocumentEvidence{},
		Kpis:      []KpiEvidence{},
		Gates:     []GateEvidence{},
	}

	lin, err := s.store.GetLineage(projectID)
	if err != nil {
		return nil, err
	}
	if lin != nil && lin.TemplateVersionID != "" {
		pack.TemplateLineage = &LineageEvidence{
			TemplateDefinitionID: lin.TemplateDefinitionID,
			TemplateVersionID:    lin.TemplateVersionID,
			AppliedAt:            lin.AppliedAt.Format(time.RFC3339),
			AppliedBy:            lin.AppliedBy,
			UpgradeState:         lin.UpgradeState,
		}
	}

	docs, err := s.store.ListDocuments(projectID)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		ev := DocumentEvidence{
			DocumentID:     doc.ID,
			DocKey:         doc.DocKey,
			DisplayName:    doc.DisplayName,
			Status:         string(doc.Status),
			OwnerID:        doc.OwnerID,
			ReviewerIDs:    []string(doc.ReviewerIDs),
			CurrentVersion: doc.CurrentVersion,
			IsRequired:     doc.IsRequired,
			BlocksGateKey:  doc.BlocksGateKey,
			CompletedBy:    doc.CompletedBy,
		}
		if doc.CompletedAt != nil {
			ev.CompletedAt = doc.CompletedAt.Format(time.RFC3339)
		}
		pack.Documents = append(pack.Documents, ev)
	}

	attachments, err := s.store.ListAttachments(projectID)
	if err != nil {
		return nil, err
	}
	for _, att := range attachments {
		ev := KpiEvidence{
			AttachmentID: att.ID,
			KpiKey:       att.KpiKey,
			DisplayName:  att.DisplayName,
			IsRequired:   att.IsRequired,
			Source:       att.Source,
		}
		latest, err := s.store.LatestKpiValue(att.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			v := latest.Value
			ev.LatestValue = &v
			ev.RecordedAt = latest.CreatedAt.Format(time.RFC3339)
			ev.RecordedBy = latest.RecordedBy
		}
		pack.Kpis = append(pack.Kpis, ev)
	}

	approvals, err := s.store.LatestGateApprovals(projectID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountGateApprovals(projectID)
	if err != nil {
		return nil, err
	}
	for _, rec := range approvals {
		pack.Gates = append(pack.Gates, GateEvidence{
			GateKey:       rec.GateKey,
			Decision:      string(rec.Decision),
			Comment:       rec.Comment,
			Evidence:      map[string]any(rec.Evidence),
			DecidedBy:     rec.DecidedBy,
			DecidedAt:     rec.CreatedAt.Format(time.RFC3339),
			DecisionCount: counts[rec.GateKey],
		})
	}

	return pack, nil
}
