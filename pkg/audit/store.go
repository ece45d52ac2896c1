package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store provides append-only operations for audit event records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new audit Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the audit_events table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&EventRecord{}); err != nil {
		return fmt.Errorf("auto-migrate audit_events: %w", err)
	}
	return nil
}

// Append creates a new immutable audit event record. The write always uses
// the store's own DB handle, never a caller transaction, so failure events
// survive a rolled-back operation.
func (s *Store) Append(event *EventRecord) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListByProject returns paginated audit events for a project, ordered by
// created_at DESC (newest first). Events are scoped to orgID; a project in
// another org yields no rows. pageToken comes from a previous page's
// nextPageToken.
func (s *Store) ListByProject(orgID, projectID string, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	return s.list(s.db.Where("org_id = ? AND project_id = ?", orgID, projectID), pageSize, pageToken)
}

// ListAll returns paginated audit events across all projects in orgID,
// ordered by created_at DESC. Optionally filters by event type.
func (s *Store) ListAll(orgID string, pageSize int, pageToken string, filterEventType string) ([]EventRecord, string, int, error) {
	q := s.db.Model(&EventRecord{}).Where("org_id = ?", orgID)
	if filterEventType != "" {
		q = q.Where("event_type = ?", filterEventType)
	}
	return s.list(q, pageSize, pageToken)
}

func (s *Store) list(base *gorm.DB, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var totalSize int64
	if err := base.Session(&gorm.Session{}).Model(&EventRecord{}).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	query := base.Session(&gorm.Session{}).Order("created_at DESC, id DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, id, err := decodePageToken(pageToken)
		if err != nil {
			return nil, "", 0, err
		}
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", t, t, id)
	}

	var records []EventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list audit events: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = encodePageToken(records[pageSize-1])
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// Page tokens are a (created_at, id) keyset cursor, so events sharing a
// boundary timestamp are never skipped on databases with coarse time
// precision. The id tie-break matches the ordering of the list queries.
func encodePageToken(rec EventRecord) string {
	return rec.CreatedAt.Format(time.RFC3339Nano) + "|" + rec.ID
}

func decodePageToken(token string) (time.Time, string, error) {
	ts, id, ok := strings.Cut(token, "|")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("invalid page token")
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid page token: %w", err)
	}
	return t, id, nil
}

// DeleteOlderThan deletes audit events created before the given cutoff time.
// Returns the number of deleted records.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&EventRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
