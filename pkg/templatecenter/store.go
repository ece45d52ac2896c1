package templatecenter

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store provides persistence for projects, lineage, KPI attachments,
// document instances/versions, and gate approvals.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health probes.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// AutoMigrate creates or updates all template-center tables.
func (s *Store) AutoMigrate() error {
	models := []struct {
		name  string
		model any
	}{
		{"projects", &ProjectRecord{}},
		{"template_lineage", &LineageRecord{}},
		{"kpi_attachments", &KpiAttachmentRecord{}},
		{"kpi_values", &KpiValueRecord{}},
		{"document_instances", &DocumentInstanceRecord{}},
		{"document_versions", &DocumentVersionRecord{}},
		{"gate_approvals", &GateApprovalRecord{}},
	}
	for _, m := range models {
		if err := s.db.AutoMigrate(m.model); err != nil {
			return fmt.Errorf("auto-migrate %s: %w", m.name, err)
		}
	}
	return nil
}

// Transaction runs fn against a transactional Store. Everything fn writes
// commits or rolls back as a unit.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateProject inserts a project row. Used by seeding and tests; project
// CRUD proper lives outside this subsystem.
func (s *Store) CreateProject(p *ProjectRecord) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID. Returns nil, nil if absent.
func (s *Store) GetProject(id string) (*ProjectRecord, error) {
	var p ProjectRecord
	if err := s.db.Where("id = ?", id).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// AssertInScope resolves a project and verifies it belongs to the caller's
// org (and workspace, when one is supplied). A project in a different org or
// workspace is Forbidden, never NotFound: the caller must not learn whether
// the ID exists elsewhere, but an explicit denial beats a silent miss for a
// row the caller can name.
func (s *Store) AssertInScope(projectID, orgID, workspaceID string) (*ProjectRecord, error) {
	p, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NotFoundError(CodeProjectNotFound, fmt.Sprintf("project %s not found", projectID))
	}
	if p.OrgID != orgID {
		return nil, ForbiddenError(CodeForbidden, "project belongs to a different organization")
	}
	if workspaceID != "" && p.WorkspaceID != "" && p.WorkspaceID != workspaceID {
		return nil, ForbiddenError(CodeForbidden, "project belongs to a different workspace")
	}
	return p, nil
}

// GetLineage retrieves the lineage row for a project. Returns nil, nil if
// no template has been applied.
func (s *Store) GetLineage(projectID string) (*LineageRecord, error) {
	var lin LineageRecord
	if err := s.db.Where("project_id = ?", projectID).First(&lin).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get lineage: %w", err)
	}
	return &lin, nil
}

// LockLineage serializes concurrent appliers for a project. It inserts a
// lineage stub with ON CONFLICT DO NOTHING on the project_id unique index,
// then re-reads the row. Two concurrent transactions both target the same
// unique key, so the second blocks on the first's insert and, after the
// first commits, observes its row: insert-then-detect-conflict rather than
// a dialect-specific row lock. Must be called inside Transaction.
func (s *Store) LockLineage(projectID string) (*LineageRecord, error) {
	stub := &LineageRecord{
		ID:           uuid.New().String(),
		ProjectID:    projectID,
		UpgradeState: string(UpgradeStateNone),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoNothing: true,
	}).Create(stub).Error
	if err != nil {
		return nil, fmt.Errorf("lock lineage: %w", err)
	}

	var lin LineageRecord
	if err := s.db.Where("project_id = ?", projectID).First(&lin).Error; err != nil {
		return nil, fmt.Errorf("read locked lineage: %w", err)
	}
	return &lin, nil
}

// SaveLineage persists lineage mutations made by the apply engine.
func (s *Store) SaveLineage(lin *LineageRecord) error {
	if err := s.db.Save(lin).Error; err != nil {
		return fmt.Errorf("save lineage: %w", err)
	}
	return nil
}

// ListAttachments returns all KPI attachments for a project ordered by key.
func (s *Store) ListAttachments(projectID string) ([]KpiAttachmentRecord, error) {
	var records []KpiAttachmentRecord
	if err := s.db.Where("project_id = ?", projectID).Order("kpi_key ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list kpi attachments: %w", err)
	}
	return records, nil
}

// GetAttachmentByKey retrieves a project's attachment for a KPI key.
// Returns nil, nil if absent.
func (s *Store) GetAttachmentByKey(projectID, kpiKey string) (*KpiAttachmentRecord, error) {
	var rec KpiAttachmentRecord
	err := s.db.Where("project_id = ? AND kpi_key = ?", projectID, kpiKey).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get kpi attachment: %w", err)
	}
	return &rec, nil
}

// CreateAttachmentIfAbsent inserts a KPI attachment unless one already
// exists for (project, kpi key). Returns true when a row was created.
// Existing rows are left untouched: the apply engine never deletes or
// overwrites attachments a project already carries.
func (s *Store) CreateAttachmentIfAbsent(rec *KpiAttachmentRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "kpi_key"}},
		DoNothing: true,
	}).Create(rec)
	if result.Error != nil {
		return false, fmt.Errorf("create kpi attachment: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// AppendKpiValue appends one point to a KPI's time series.
func (s *Store) AppendKpiValue(rec *KpiValueRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("append kpi value: %w", err)
	}
	return nil
}

// LatestKpiValue returns the newest value for an attachment, or nil, nil if
// the series is empty.
func (s *Store) LatestKpiValue(attachmentID string) (*KpiValueRecord, error) {
	var rec KpiValueRecord
	err := s.db.Where("attachment_id = ?", attachmentID).
		Order("created_at DESC, id DESC").First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("latest kpi value: %w", err)
	}
	return &rec, nil
}

// ListDocuments returns all document instances for a project ordered by key.
func (s *Store) ListDocuments(projectID string) ([]DocumentInstanceRecord, error) {
	var records []DocumentInstanceRecord
	if err := s.db.Where("project_id = ?", projectID).Order("doc_key ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return records, nil
}

// GetDocument retrieves a document instance by ID. Returns nil, nil if absent.
func (s *Store) GetDocument(id string) (*DocumentInstanceRecord, error) {
	var rec DocumentInstanceRecord
	if err := s.db.Where("id = ?", id).First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &rec, nil
}

// GetDocumentByKey retrieves a project's document instance for a doc key.
// Returns nil, nil if absent.
func (s *Store) GetDocumentByKey(projectID, docKey string) (*DocumentInstanceRecord, error) {
	var rec DocumentInstanceRecord
	err := s.db.Where("project_id = ? AND doc_key = ?", projectID, docKey).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by key: %w", err)
	}
	return &rec, nil
}

// CreateDocumentIfAbsent inserts a document instance unless one already
// exists for (project, doc key). Returns true when a row was created.
func (s *Store) CreateDocumentIfAbsent(rec *DocumentInstanceRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "doc_key"}},
		DoNothing: true,
	}).Create(rec)
	if result.Error != nil {
		return false, fmt.Errorf("create document instance: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// RefreshDocumentFlags non-destructively updates the template-owned flags on
// an existing document instance. Status, ownership, and version are left
// alone.
func (s *Store) RefreshDocumentFlags(projectID, docKey string, isRequired bool, blocksGateKey string) error {
	err := s.db.Model(&DocumentInstanceRecord{}).
		Where("project_id = ? AND doc_key = ?", projectID, docKey).
		Updates(map[string]any{
			"is_required":     isRequired,
			"blocks_gate_key": blocksGateKey,
		}).Error
	if err != nil {
		return fmt.Errorf("refresh document flags: %w", err)
	}
	return nil
}

// SaveDocument persists document instance mutations.
func (s *Store) SaveDocument(rec *DocumentInstanceRecord) error {
	if err := s.db.Save(rec).Error; err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// CreateDocumentVersion appends an immutable version row. A row that
// already exists for (document, version) is a Conflict: version content is
// written once and never replaced.
func (s *Store) CreateDocumentVersion(rec *DocumentVersionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "version"}},
		DoNothing: true,
	}).Create(rec)
	if result.Error != nil {
		return fmt.Errorf("create document version: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ConflictError(CodeVersionExists,
			fmt.Sprintf("document %s already has a version %d row", rec.DocumentID, rec.Version))
	}
	return nil
}

// GetDocumentVersion retrieves one version row. Returns nil, nil if absent.
func (s *Store) GetDocumentVersion(documentID string, version int) (*DocumentVersionRecord, error) {
	var rec DocumentVersionRecord
	err := s.db.Where("document_id = ? AND version = ?", documentID, version).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get document version: %w", err)
	}
	return &rec, nil
}

// ListDocumentVersions returns all version rows for a document, newest
// version first.
func (s *Store) ListDocumentVersions(documentID string) ([]DocumentVersionRecord, error) {
	var records []DocumentVersionRecord
	err := s.db.Where("document_id = ?", documentID).Order("version DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return records, nil
}

// AppendGateApproval appends one row to the gate decision log. Rows are
// never updated in place.
func (s *Store) AppendGateApproval(rec *GateApprovalRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("append gate approval: %w", err)
	}
	return nil
}

// ListGateApprovals returns the decision log for one gate, newest first.
// created_at DESC with id DESC as a deterministic tie-break for rows
// written within the same timestamp.
func (s *Store) ListGateApprovals(projectID, gateKey string) ([]GateApprovalRecord, error) {
	var records []GateApprovalRecord
	err := s.db.Where("project_id = ? AND gate_key = ?", projectID, gateKey).
		Order("created_at DESC, id DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list gate approvals: %w", err)
	}
	return records, nil
}

// LatestGateApprovals returns the most recent decision per gate for a
// project, ordered by gate key.
func (s *Store) LatestGateApprovals(projectID string) ([]GateApprovalRecord, error) {
	var records []GateApprovalRecord
	err := s.db.Where("project_id = ?", projectID).
		Order("gate_key ASC, created_at DESC, id DESC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list gate approvals: %w", err)
	}

	latest := records[:0]
	seen := make(map[string]bool)
	for _, rec := range records {
		if seen[rec.GateKey] {
			continue
		}
		seen[rec.GateKey] = true
		latest = append(latest, rec)
	}
	return latest, nil
}

// CountGateApprovals returns the number of logged decisions per gate key.
func (s *Store) CountGateApprovals(projectID string) (map[string]int, error) {
	type row struct {
		GateKey string
		N       int
	}
	var rows []row
	err := s.db.Model(&GateApprovalRecord{}).
		Select("gate_key, COUNT(*) AS n").
		Where("project_id = ?", projectID).
		Group("gate_key").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count gate approvals: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.GateKey] = r.N
	}
	return counts, nil
}

// touchTime is a small helper for completion stamps.
func touchTime() *time.Time {
	now := time.Now()
	return &now
}
