package audit

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestStore creates a Store over an in-memory SQLite DB.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func appendEvent(t *testing.T, store *Store, eventType, projectID string, at time.Time) {
	t.Helper()
	require.NoError(t, store.Append(&EventRecord{
		EventType: eventType,
		Actor:     "alice",
		OrgID:     "acme",
		ProjectID: projectID,
		Outcome:   OutcomeSuccess,
		CreatedAt: at,
	}))
}

func TestStore_AppendAssignsID(t *testing.T) {
	store := newTestStore(t)

	rec := &EventRecord{EventType: "DOC_TRANSITION", Actor: "alice", Outcome: OutcomeSuccess}
	require.NoError(t, store.Append(rec))
	assert.NotEmpty(t, rec.ID)
}

func TestStore_ListByProject_Pagination(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		appendEvent(t, store, "DOC_TRANSITION", "p1", base.Add(time.Duration(i)*time.Minute))
	}
	appendEvent(t, store, "DOC_TRANSITION", "p2", base)

	// First page, newest first.
	records, nextToken, total, err := store.ListByProject("acme", "p1", 3, "")
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, records, 3)
	assert.NotEmpty(t, nextToken)
	assert.True(t, records[0].CreatedAt.After(records[2].CreatedAt))

	// Second page completes the set without overlap.
	records2, nextToken2, _, err := store.ListByProject("acme", "p1", 3, nextToken)
	require.NoError(t, err)
	require.Len(t, records2, 2)
	assert.Empty(t, nextToken2)
	assert.True(t, records[2].CreatedAt.After(records2[0].CreatedAt))
}

func TestStore_Pagination_SharedTimestampBoundary(t *testing.T) {
	store := newTestStore(t)
	at := time.Now().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		appendEvent(t, store, "DOC_TRANSITION", "p1", at)
	}

	// With every row on the same timestamp, paging one at a time must still
	// visit all three exactly once.
	seen := map[string]bool{}
	token := ""
	for i := 0; i < 3; i++ {
		records, next, _, err := store.ListByProject("acme", "p1", 1, token)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.False(t, seen[records[0].ID], "event returned twice")
		seen[records[0].ID] = true
		token = next
	}
	assert.Empty(t, token)
	assert.Len(t, seen, 3)
}

func TestStore_ListScopedToOrg(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	appendEvent(t, store, "TEMPLATE_APPLIED", "p1", now)
	require.NoError(t, store.Append(&EventRecord{
		EventType: "TEMPLATE_APPLIED",
		Actor:     "eve",
		OrgID:     "globex",
		ProjectID: "p1",
		Outcome:   OutcomeSuccess,
		CreatedAt: now,
	}))

	// Another org listing the same project id sees nothing.
	records, _, total, err := store.ListByProject("globex", "p1", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "globex", records[0].OrgID)

	records, _, total, err = store.ListAll("acme", 10, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "acme", records[0].OrgID)
}

func TestStore_ListAll_EventTypeFilter(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	appendEvent(t, store, "TEMPLATE_APPLIED", "p1", now.Add(-2*time.Minute))
	appendEvent(t, store, "DOC_TRANSITION", "p1", now.Add(-time.Minute))
	appendEvent(t, store, "TEMPLATE_APPLIED", "p2", now)

	records, _, total, err := store.ListAll("acme", 10, "", "TEMPLATE_APPLIED")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "TEMPLATE_APPLIED", rec.EventType)
	}
}

func TestStore_InvalidPageToken(t *testing.T) {
	store := newTestStore(t)
	_, _, _, err := store.ListAll("acme", 10, "not-a-cursor", "")
	require.Error(t, err)

	_, _, _, err = store.ListAll("acme", 10, "not-a-timestamp|some-id", "")
	require.Error(t, err)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	appendEvent(t, store, "DOC_TRANSITION", "p1", now.AddDate(0, 0, -100))
	appendEvent(t, store, "DOC_TRANSITION", "p1", now.AddDate(0, 0, -10))
	appendEvent(t, store, "DOC_TRANSITION", "p1", now)

	deleted, err := store.DeleteOlderThan(now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, _, total, err := store.ListByProject("acme", "p1", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
