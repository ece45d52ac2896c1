package templatecenter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Catalog resolves template keys to published versions. The apply and gate
// engines depend on this interface only; the GORM-backed CatalogStore below
// is the default implementation.
type Catalog interface {
	// GetByKey resolves a template definition by key within an org,
	// preferring an org-scoped definition over a global one.
	// Returns nil, nil, nil if no definition exists.
	GetByKey(orgID, key string) (*TemplateDefinitionRecord, []TemplateVersionRecord, error)

	// GetPublishedVersion resolves a published version of a definition.
	// version <= 0 resolves the latest published version.
	// Returns nil, nil if no matching published version exists.
	GetPublishedVersion(definitionID string, version int) (*TemplateVersionRecord, error)

	// GetVersion resolves a version record by its ID regardless of status.
	// Returns nil, nil if absent.
	GetVersion(versionID string) (*TemplateVersionRecord, error)
}

// DecodeTemplateSchema parses the schema stored on a version record. A
// schema that is not a well-formed JSON object is a data-integrity fault,
// not a not-found: the row exists but its contents cannot be trusted.
func DecodeTemplateSchema(rec *TemplateVersionRecord) (*TemplateSchema, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rec.Schema), &probe); err != nil {
		return nil, DataIntegrityError(CodeSchemaCorrupt,
			fmt.Sprintf("template version %s holds a schema that is not a JSON object", rec.ID))
	}
	var schema TemplateSchema
	if err := json.Unmarshal([]byte(rec.Schema), &schema); err != nil {
		return nil, DataIntegrityError(CodeSchemaCorrupt,
			fmt.Sprintf("template version %s holds a malformed schema: %v", rec.ID, err))
	}
	return &schema, nil
}

// CatalogStore provides CRUD operations for template definitions and
// versions. Authoring endpoints live outside this subsystem; the store still
// exposes create/publish for seeding and operator tooling.
type CatalogStore struct {
	db *gorm.DB
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// AutoMigrate creates or updates the template catalog tables.
func (s *CatalogStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&TemplateDefinitionRecord{}); err != nil {
		return fmt.Errorf("auto-migrate template_definitions: %w", err)
	}
	if err := s.db.AutoMigrate(&TemplateVersionRecord{}); err != nil {
		return fmt.Errorf("auto-migrate template_versions: %w", err)
	}
	return nil
}

// GetByKey implements Catalog. Org-scoped definitions shadow global ones
// with the same key.
func (s *CatalogStore) GetByKey(orgID, key string) (*TemplateDefinitionRecord, []TemplateVersionRecord, error) {
	var def TemplateDefinitionRecord
	err := s.db.Where("template_key = ? AND (org_id = ? OR org_id = '')", key, orgID).
		Order("org_id DESC").First(&def).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("get template definition: %w", err)
	}

	var versions []TemplateVersionRecord
	if err := s.db.Where("definition_id = ?", def.ID).Order("version DESC").Find(&versions).Error; err != nil {
		return nil, nil, fmt.Errorf("list template versions: %w", err)
	}
	return &def, versions, nil
}

// GetPublishedVersion implements Catalog.
func (s *CatalogStore) GetPublishedVersion(definitionID string, version int) (*TemplateVersionRecord, error) {
	query := s.db.Where("definition_id = ? AND status = ?", definitionID, VersionStatusPublished)
	if version > 0 {
		query = query.Where("version = ?", version)
	} else {
		query = query.Order("version DESC")
	}

	var rec TemplateVersionRecord
	if err := query.First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get published version: %w", err)
	}
	return &rec, nil
}

// GetVersion implements Catalog.
func (s *CatalogStore) GetVersion(versionID string) (*TemplateVersionRecord, error) {
	var rec TemplateVersionRecord
	if err := s.db.Where("id = ?", versionID).First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get template version: %w", err)
	}
	return &rec, nil
}

// CreateDefinition inserts a new template definition.
func (s *CatalogStore) CreateDefinition(def *TemplateDefinitionRecord) error {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if err := s.db.Create(def).Error; err != nil {
		return fmt.Errorf("create template definition: %w", err)
	}
	return nil
}

// CreateVersion inserts a new version record. The schema is marshaled from
// the given TemplateSchema; pass status VersionStatusDraft or
// VersionStatusPublished.
func (s *CatalogStore) CreateVersion(definitionID string, version int, schema *TemplateSchema, status string) (*TemplateVersionRecord, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal template schema: %w", err)
	}

	rec := &TemplateVersionRecord{
		ID:           uuid.New().String(),
		DefinitionID: definitionID,
		Version:      version,
		Status:       status,
		Schema:       string(data),
	}
	if status == VersionStatusPublished {
		now := time.Now()
		rec.PublishedAt = &now
	}
	if err := s.db.Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create template version: %w", err)
	}
	return rec, nil
}

// Publish marks a draft version as published.
func (s *CatalogStore) Publish(versionID string) error {
	now := time.Now()
	result := s.db.Model(&TemplateVersionRecord{}).
		Where("id = ? AND status = ?", versionID, VersionStatusDraft).
		Updates(map[string]any{"status": VersionStatusPublished, "published_at": &now})
	if result.Error != nil {
		return fmt.Errorf("publish template version: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("template version %s not found or not in draft status", versionID)
	}
	return nil
}

// ListDefinitions returns paginated definitions visible to an org (its own
// plus global ones). pageToken is the ID of the last record from the
// previous page; pass "" for the first page.
func (s *CatalogStore) ListDefinitions(orgID string, pageSize int, pageToken string) ([]TemplateDefinitionRecord, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("org_id = ? OR org_id = ''", orgID).Order("id ASC").Limit(pageSize + 1)
	if pageToken != "" {
		query = query.Where("id > ?", pageToken)
	}

	var records []TemplateDefinitionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list template definitions: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].ID
		records = records[:pageSize]
	}
	return records, nextToken, nil
}
