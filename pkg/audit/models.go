package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

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

// EventRecord is an immutable audit log entry. Records are append-only and
// are written outside the transaction of the operation they describe, so a
// failure record survives the rollback of the attempted mutation.
type EventRecord struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	EventType   string    `gorm:"column:event_type;index:idx_audit_type_time,priority:1;not null"`
	EntityType  string    `gorm:"column:entity_type"`
	EntityID    string    `gorm:"column:entity_id;index"`
	Actor       string    `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	OrgID       string    `gorm:"column:org_id;index"`
	WorkspaceID string    `gorm:"column:workspace_id"`
	ProjectID   string    `gorm:"column:project_id;index:idx_audit_project_time,priority:1"`
	Outcome     string    `gorm:"column:outcome;not null"` // success, failure, blocked
	Reason      string    `gorm:"column:reason"`
	OldValue    JSONAny   `gorm:"column:old_value;type:text"`
	NewValue    JSONAny   `gorm:"column:new_value;type:text"`
	Metadata    JSONAny   `gorm:"column:metadata;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;index:idx_audit_type_time,priority:2;index:idx_audit_actor_time,priority:2;index:idx_audit_project_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }

// Outcome values for EventRecord.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeBlocked = "blocked"
)

// Event is the API-facing audit event type.
type Event struct {
	ID          string         `json:"id"`
	EventType   string         `json:"eventType"`
	EntityType  string         `json:"entityType,omitempty"`
	EntityID    string         `json:"entityId,omitempty"`
	Actor       string         `json:"actor"`
	OrgID       string         `json:"orgId,omitempty"`
	WorkspaceID string         `json:"workspaceId,omitempty"`
	ProjectID   string         `json:"projectId,omitempty"`
	Outcome     string         `json:"outcome"`
	Reason      string         `json:"reason,omitempty"`
	OldValue    map[string]any `json:"oldValue,omitempty"`
	NewValue    map[string]any `json:"newValue,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"createdAt"`
}

// EventList is a paginated list of audit events.
type EventList struct {
	Events        []Event `json:"events"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	TotalSize     int     `json:"totalSize"`
}
