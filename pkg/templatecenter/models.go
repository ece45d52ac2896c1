package templatecenter

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONStringSlice is a custom GORM type for []string stored as JSON.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONStringSlice: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Contains reports whether the slice contains the given value.
func (s JSONStringSlice) Contains(v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// JSONAny is a custom GORM type for map[string]any stored as JSON.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ProjectRecord anchors scope validation: every operation resolves its
// project and checks org/workspace ownership before touching anything else.
type ProjectRecord struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	OrgID       string    `gorm:"column:org_id;index;not null" json:"orgId"`
	WorkspaceID string    `gorm:"column:workspace_id;index" json:"workspaceId,omitempty"`
	Name        string    `gorm:"column:name" json:"name"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (ProjectRecord) TableName() string { return "projects" }

// TemplateDefinitionRecord identifies a template by key within an org.
// An empty org_id marks a global (platform-provided) template.
type TemplateDefinitionRecord struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	OrgID       string    `gorm:"column:org_id;uniqueIndex:idx_tpl_org_key,priority:1" json:"orgId,omitempty"`
	Key         string    `gorm:"column:template_key;uniqueIndex:idx_tpl_org_key,priority:2;not null" json:"key"`
	DisplayName string    `gorm:"column:display_name" json:"displayName"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (TemplateDefinitionRecord) TableName() string { return "template_definitions" }

// Template version statuses.
const (
	VersionStatusDraft     = "draft"
	VersionStatusPublished = "published"
)

// TemplateVersionRecord is one published (or draft) revision of a template
// definition. Schema holds the governance schema as JSON text.
type TemplateVersionRecord struct {
	ID           string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	DefinitionID string     `gorm:"column:definition_id;uniqueIndex:idx_tplver_def_version,priority:1;not null" json:"definitionId"`
	Version      int        `gorm:"column:version;uniqueIndex:idx_tplver_def_version,priority:2;not null" json:"version"`
	Status       string     `gorm:"column:status;default:draft;not null" json:"status"`
	Schema       string     `gorm:"column:schema;type:text" json:"schema,omitempty"`
	PublishedAt  *time.Time `gorm:"column:published_at" json:"publishedAt,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (TemplateVersionRecord) TableName() string { return "template_versions" }

// UpgradeState tracks where a project's lineage sits relative to newer
// template versions.
type UpgradeState string

const (
	UpgradeStateNone     UpgradeState = "none"
	UpgradeStateEligible UpgradeState = "eligible"
	UpgradeStatePending  UpgradeState = "pending"
	UpgradeStateApplied  UpgradeState = "applied"
	UpgradeStateBlocked  UpgradeState = "blocked"
)

// LineageRecord binds a project to the template definition and version it
// was instantiated from. Exactly one row per project; owned by the Apply
// Engine, which serializes writers on the project_id unique index.
type LineageRecord struct {
	ID                   string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ProjectID            string    `gorm:"column:project_id;uniqueIndex;not null" json:"projectId"`
	TemplateDefinitionID string    `gorm:"column:template_definition_id" json:"templateDefinitionId"`
	TemplateVersionID    string    `gorm:"column:template_version_id" json:"templateVersionId"`
	AppliedAt            time.Time `gorm:"column:applied_at" json:"appliedAt"`
	AppliedBy            string    `gorm:"column:applied_by" json:"appliedBy"`
	UpgradeState         string    `gorm:"column:upgrade_state;default:none;not null" json:"upgradeState"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (LineageRecord) TableName() string { return "template_lineage" }

// KPI attachment sources.
const (
	KpiSourceManual   = "manual"
	KpiSourceComputed = "computed"
)

// KpiAttachmentRecord tracks a KPI the project must report on. Numeric
// values live in the separate append-only kpi_values series.
type KpiAttachmentRecord struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ProjectID   string    `gorm:"column:project_id;uniqueIndex:idx_kpi_project_key,priority:1;not null" json:"projectId"`
	KpiKey      string    `gorm:"column:kpi_key;uniqueIndex:idx_kpi_project_key,priority:2;not null" json:"kpiKey"`
	DisplayName string    `gorm:"column:display_name" json:"displayName,omitempty"`
	IsRequired  bool      `gorm:"column:is_required;not null" json:"isRequired"`
	Source      string    `gorm:"column:source;default:manual;not null" json:"source"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (KpiAttachmentRecord) TableName() string { return "kpi_attachments" }

// KpiValueRecord is one point in a KPI's append-only time series. The
// rollup math over these rows is owned outside this subsystem; the Evidence
// Compiler only reads the latest point per attachment.
type KpiValueRecord struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	AttachmentID string    `gorm:"column:attachment_id;index:idx_kpival_att_time,priority:1;not null" json:"attachmentId"`
	Value        float64   `gorm:"column:value;not null" json:"value"`
	RecordedBy   string    `gorm:"column:recorded_by" json:"recordedBy,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_kpival_att_time,priority:2;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (KpiValueRecord) TableName() string { return "kpi_values" }

// DocumentStatus is the document approval workflow state.
type DocumentStatus string

const (
	StatusNotStarted DocumentStatus = "not_started"
	StatusDraft      DocumentStatus = "draft"
	StatusInReview   DocumentStatus = "in_review"
	StatusApproved   DocumentStatus = "approved"
	StatusCompleted  DocumentStatus = "completed"
	StatusSuperseded DocumentStatus = "superseded"
)

// DocumentInstanceRecord is a tracked document within a project. The
// current_version counter only advances paired with a new
// DocumentVersionRecord in the same transaction.
type DocumentInstanceRecord struct {
	ID             string          `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ProjectID      string          `gorm:"column:project_id;uniqueIndex:idx_doc_project_key,priority:1;not null" json:"projectId"`
	DocKey         string          `gorm:"column:doc_key;uniqueIndex:idx_doc_project_key,priority:2;not null" json:"docKey"`
	DisplayName    string          `gorm:"column:display_name" json:"displayName,omitempty"`
	Status         DocumentStatus  `gorm:"column:status;default:not_started;not null" json:"status"`
	OwnerID        string          `gorm:"column:owner_id;index" json:"ownerId,omitempty"`
	ReviewerIDs    JSONStringSlice `gorm:"column:reviewer_ids;type:text" json:"reviewerIds,omitempty"`
	CurrentVersion int             `gorm:"column:current_version;default:1;not null" json:"currentVersion"`
	IsRequired     bool            `gorm:"column:is_required;not null" json:"isRequired"`
	BlocksGateKey  string          `gorm:"column:blocks_gate_key" json:"blocksGateKey,omitempty"`
	CompletedAt    *time.Time      `gorm:"column:completed_at" json:"completedAt,omitempty"`
	CompletedBy    string          `gorm:"column:completed_by" json:"completedBy,omitempty"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (DocumentInstanceRecord) TableName() string { return "document_instances" }

// DocumentVersionRecord is an immutable content snapshot for one document
// version number. Append-only; unique per (document, version).
type DocumentVersionRecord struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	DocumentID    string    `gorm:"column:document_id;uniqueIndex:idx_docver_doc_version,priority:1;not null" json:"documentId"`
	Version       int       `gorm:"column:version;uniqueIndex:idx_docver_doc_version,priority:2;not null" json:"version"`
	Content       string    `gorm:"column:content;type:text" json:"content,omitempty"`
	Link          string    `gorm:"column:link" json:"link,omitempty"`
	FileID        string    `gorm:"column:file_id" json:"fileId,omitempty"`
	ChangeSummary string    `gorm:"column:change_summary" json:"changeSummary,omitempty"`
	CreatedBy     string    `gorm:"column:created_by" json:"createdBy"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (DocumentVersionRecord) TableName() string { return "document_versions" }

// GateDecision is a recorded verdict on a gate.
type GateDecision string

const (
	DecisionApproved             GateDecision = "approved"
	DecisionApprovedWithComments GateDecision = "approved_with_comments"
	DecisionRejected             GateDecision = "rejected"
)

// GateApprovalRecord is one row in the append-only gate decision log.
// Rows are never updated in place; the current state of a gate is the most
// recent row by created_at, with id as the deterministic tie-break.
type GateApprovalRecord struct {
	ID        string       `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ProjectID string       `gorm:"column:project_id;index:idx_gate_project_key,priority:1;not null" json:"projectId"`
	GateKey   string       `gorm:"column:gate_key;index:idx_gate_project_key,priority:2;not null" json:"gateKey"`
	Decision  GateDecision `gorm:"column:decision;not null" json:"decision"`
	Comment   string       `gorm:"column:comment" json:"comment,omitempty"`
	Evidence  JSONAny      `gorm:"column:evidence;type:text" json:"evidence,omitempty"`
	DecidedBy string       `gorm:"column:decided_by;not null" json:"decidedBy"`
	CreatedAt time.Time    `gorm:"column:created_at;index;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (GateApprovalRecord) TableName() string { return "gate_approvals" }

// TemplateSchema is the governance schema stored on a published template
// version: the KPIs and documents a project must track, and the gate
// prerequisite requirements keyed by gate.
type TemplateSchema struct {
	Kpis      []TemplateKpi               `json:"kpis"`
	Documents []TemplateDocument          `json:"documents"`
	Gates     map[string]GateRequirements `json:"gates"`
}

// TemplateKpi declares a KPI the template expects projects to carry.
type TemplateKpi struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName,omitempty"`
	Required    bool   `json:"required"`
	Source      string `json:"source,omitempty"`
}

// TemplateDocument declares a document the template expects projects to carry.
type TemplateDocument struct {
	Key           string `json:"key"`
	DisplayName   string `json:"displayName,omitempty"`
	Required      bool   `json:"required"`
	BlocksGateKey string `json:"blocksGateKey,omitempty"`
}

// GateRequirements are the prerequisites a gate checks before a decision of
// approved/approved_with_comments may be recorded.
type GateRequirements struct {
	RequiredDocKeys   []string         `json:"requiredDocKeys,omitempty"`
	RequiredKpiKeys   []string         `json:"requiredKpiKeys,omitempty"`
	RequiredDocStates []DocumentStatus `json:"requiredDocStates,omitempty"`
	RequireAllKpis    bool             `json:"requireAllKpis,omitempty"`
}
