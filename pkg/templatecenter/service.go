package templatecenter

import (
	"github.com/planhub/template-center/pkg/audit"
	"gorm.io/gorm"
)

// Service bundles the governance engines over one database handle.
type Service struct {
	Store     *Store
	Catalog   *CatalogStore
	Apply     *ApplyEngine
	Policy    *PolicyResolver
	Documents *DocumentService
	Gates     *GateEngine
	Evidence  *EvidenceService
}

// NewService wires the engines together. events may be nil to disable
// audit emission.
func NewService(db *gorm.DB, events *audit.Store, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	store := NewStore(db)
	catalog := NewCatalogStore(db)
	policy := NewPolicyResolver(store, catalog, cfg.DefaultGateDocStates)
	return &Service{
		Store:     store,
		Catalog:   catalog,
		Apply:     NewApplyEngine(store, catalog, events),
		Policy:    policy,
		Documents: NewDocumentService(store, events),
		Gates:     NewGateEngine(store, policy, events),
		Evidence:  NewEvidenceService(store),
	}
}

// AutoMigrate creates or updates all tables the service owns.
func (s *Service) AutoMigrate() error {
	if err := s.Store.AutoMigrate(); err != nil {
		return err
	}
	return s.Catalog.AutoMigrate()
}
