package templatecenter

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyReq(projectID, key string) ApplyRequest {
	return ApplyRequest{
		ProjectID:   projectID,
		TemplateKey: key,
		ActorID:     "alice",
		OrgID:       "acme",
		WorkspaceID: "ws-1",
	}
}

func TestApply_InstantiatesRequiredRows(t *testing.T) {
	svc, _ := newTestService(t)
	createTestProject(t, svc.Store, "p1")
	_, ver := seedTemplate(t, svc.Catalog, "delivery", 1, basicSchema())

	result, err := svc.Apply.Apply(context.Background(), applyReq("p1", "delivery"))
	require.NoError(t, err)
	assert.False(t, result.AlreadyApplied)
	assert.Equal(t, 1, result.KpisCreated)
	assert.Equal(t, 2, result.DocsCreated)
	assert.Equal(t, ver.ID, result.TemplateVersionID)

	// Only required entries materialize.
	docs, err := svc.Store.ListDocuments("p1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "charter", docs[0].DocKey)
	assert.Equal(t, StatusNotStarted, docs[0].Status)
	assert.Equal(t, 1, docs[0].CurrentVersion)
	assert.Equal(t, "phase-1", docs[0].BlocksGateKey)

	atts, err := svc.Store.ListAttachments("p1")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "budget_variance", atts[0].KpiKey)
	assert.Equal(t, KpiSourceManual, atts[0].Source)

	lin, err := svc.Store.GetLineage("p1")
	require.NoError(t, err)
	require.NotNil(t, lin)
	assert.Equal(t, ver.ID, lin.TemplateVersionID)
	assert.Equal(t, "alice", lin.AppliedBy)
	assert.Equal(t, string(UpgradeStateNone), lin.UpgradeState)
}

func TestApply_SameVersionIsIdempotent(t *testing.T) {
	svc, events := newTestService(t)
	createTestProject(t, svc.Store, "p1")
	seedTemplate(t, svc.Catalog, "delivery", 1, basicSchema())

	_, err := svc.Apply.Apply(context.Background(), applyReq("p1", "delivery"))
	require.NoError(t, err)

	result, err := svc.Apply.Apply(context.Background(), applyReq("p1", "delivery"))
	require.NoError(t, err)
	assert.True(t, result.AlreadyApplied)
	assert.Zero(t, result.KpisCreated)
	assert.Zero(t, result.DocsCreated)
	assert.Equal(t, 1, result.KpisExisting)
	assert.Equal(t, 2, result.DocsExisting)

	docs, err := svc.Store.ListDocuments("p1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	// Both applies land in the audit log as TEMPLATE_APPLIED.
	records, _, _, err := events.ListByProject("acme", "p1", 50, "")
	require.NoError(t, err)
	applied := 0
	for _, rec := range records {
		if rec.EventType == EventTemplateApplied {
			applied++
		}
	}
	assert.Equal(t, 2, applied)
}

func TestApply_NewVersionPreservesProjectState(t *testing.T) {
	svc, _ := newTestService(t)
	createTestProject(t, svc.Store, "p1")
	seedTemplate(t, svc.Catalog, "delivery", 1, basicSchema())

	_, err := svc.Apply.Apply(context.Background(), applyReq("p1", "delivery"))
	require.NoError(t, err)

	// Project makes progress on a document.
	doc, err := svc.Store.GetDocumentByKey("p1", "charter")
	require.NoError(t, err)
	doc.Status = StatusApproved
	doc.OwnerID = "alice"
	require.NoError(t, svc.Store.SaveDocument(doc))

	// v2 adds a document and re-points the charter's gate.
	v2 := basicSchema()
	v2.Documents[0].BlocksGateKey = "phase-2"
	v2.Documents = append(v2.Documents, TemplateDocument{Key: "closure_report", Required: true})
	_, ver2 := seedTemplate(t, svc.Catalog, "delivery", 2, v2)

	req := applyReq("p1", "delivery")
	req.Mode = ModeUpgrade
	result, err := svc.Apply.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.AlreadyApplied)
	assert.Equal(t, 1, result.DocsCreated)
	assert.Equal(t, 2, result.DocsExisting)

	// Existing progress survives; template-owned flags refresh.
	doc, err = svc.Store.GetDocumentByKey("p1", "charter")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, doc.Status)
	assert.Equal(t, "alice", doc.OwnerID)
	assert.Equal(t, "phase-2", doc.BlocksGateKey)

	lin, err := svc.Store.GetLineage("p1")
	require.NoError(t, err)
	assert.Equal(t, ver2.ID, lin.TemplateVersionID)
	assert.Equal(t, string(UpgradeStateApplied), lin.UpgradeState)
}

func TestApply_ConcurrentAppliersSerialize(t *testing.T) {
	svc, _ := newTestService(t)
	createTestProject(t, svc.Store, "p1")
	seedTemplate(t, svc.Catalog, "delivery", 1, basicSchema())

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Apply.Apply(context.Background(), applyReq("p1", "delivery"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "applier %d", i)
	}

	// Exactly one set of rows regardless of interleaving.
	docs, err := svc.Store.ListDocuments("p1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	atts, err := svc.Store.ListAttachments("p1")
	require.NoError(t, err)
	assert.Len(t, atts, 1)

	var lineageRows int64
	require.NoError(t, svc.Store.DB().Model(&LineageRecord{}).Where("project_id = ?", "p1").Count(&lineageRows).Error)
	assert.EqualValues(t, 1, lineageRows)
}

func TestApply_Failures(t *testing.T) {
	svc, events := newTestService(t)
	createTestProject(t, svc.Store, "p1")

	t.Run("unknown project", func(t *testing.T) {
		_, err := svc.Apply.Apply(context.Background(), applyReq("ghost", "delivery"))
		require.Error(t, err)
		assert.Equal(t, CodeProjectNotFound, ErrorCode(err))
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := svc.Apply.Apply(context.Background(), applyReq("p1", "missing"))
		require.Error(t, err)
		assert.Equal(t, CodeTemplateNotFound, ErrorCode(err))
	})

	t.Run("no published version", func(t *testing.T) {
		def := &TemplateDefinitionRecord{OrgID: "acme", Key: "draft-only"}
		require.NoError(t, svc.Catalog.CreateDefinition(def))
		_, err := svc.Catalog.CreateVersion(def.ID, 1, basicSchema(), VersionStatusDraft)
		require.NoError(t, err)

		_, err = svc.Apply.Apply(context.Background(), applyReq("p1", "draft-only"))
		require.Error(t, err)
		assert.Equal(t, CodeTemplateVersionNotFound, ErrorCode(err))
	})

	t.Run("corrupt schema is data integrity and audited", func(t *testing.T) {
		def := &TemplateDefinitionRecord{OrgID: "acme", Key: "corrupt"}
		require.NoError(t, svc.Catalog.CreateDefinition(def))
		ver, err := svc.Catalog.CreateVersion(def.ID, 1, basicSchema(), VersionStatusPublished)
		require.NoError(t, err)
		require.NoError(t, svc.Store.DB().Model(&TemplateVersionRecord{}).
			Where("id = ?", ver.ID).Update("schema", "[1,2,3]").Error)

		_, err = svc.Apply.Apply(context.Background(), applyReq("p1", "corrupt"))
		require.Error(t, err)
		assert.True(t, IsKind(err, KindDataIntegrity))
		assert.Equal(t, CodeSchemaCorrupt, ErrorCode(err))

		// Nothing materialized and the failure is on the record.
		docs, err := svc.Store.ListDocuments("p1")
		require.NoError(t, err)
		assert.Empty(t, docs)

		records, _, _, err := events.ListByProject("acme", "p1", 10, "")
		require.NoError(t, err)
		require.NotEmpty(t, records)
		assert.Equal(t, EventTemplateApplyFailed, records[0].EventType)
		assert.Equal(t, CodeSchemaCorrupt, records[0].Reason)
	})
}
