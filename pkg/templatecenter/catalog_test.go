package templatecenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogStore_OrgShadowsGlobal(t *testing.T) {
	svc, _ := newTestService(t)

	global := &TemplateDefinitionRecord{OrgID: "", Key: "delivery", DisplayName: "Global Delivery"}
	require.NoError(t, svc.Catalog.CreateDefinition(global))
	orgOwn := &TemplateDefinitionRecord{OrgID: "acme", Key: "delivery", DisplayName: "Acme Delivery"}
	require.NoError(t, svc.Catalog.CreateDefinition(orgOwn))

	def, _, err := svc.Catalog.GetByKey("acme", "delivery")
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "Acme Delivery", def.DisplayName)

	// Another org only sees the global definition.
	def, _, err = svc.Catalog.GetByKey("globex", "delivery")
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "Global Delivery", def.DisplayName)

	// List shows the org's own plus global entries.
	defs, _, err := svc.Catalog.ListDefinitions("acme", 10, "")
	require.NoError(t, err)
	assert.Len(t, defs, 2)
	defs, _, err = svc.Catalog.ListDefinitions("globex", 10, "")
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestCatalogStore_PublishFlow(t *testing.T) {
	svc, _ := newTestService(t)

	def := &TemplateDefinitionRecord{OrgID: "acme", Key: "delivery"}
	require.NoError(t, svc.Catalog.CreateDefinition(def))
	draft, err := svc.Catalog.CreateVersion(def.ID, 1, basicSchema(), VersionStatusDraft)
	require.NoError(t, err)
	assert.Nil(t, draft.PublishedAt)

	// Drafts never resolve for apply.
	ver, err := svc.Catalog.GetPublishedVersion(def.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, ver)

	require.NoError(t, svc.Catalog.Publish(draft.ID))
	ver, err = svc.Catalog.GetPublishedVersion(def.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, ver)
	assert.Equal(t, 1, ver.Version)

	// Publishing twice is refused.
	require.Error(t, svc.Catalog.Publish(draft.ID))
}

func TestCatalogStore_VersionSelection(t *testing.T) {
	svc, _ := newTestService(t)

	_, v1 := seedTemplate(t, svc.Catalog, "delivery", 1, basicSchema())
	def, _, err := svc.Catalog.GetByKey("acme", "delivery")
	require.NoError(t, err)
	_, err = svc.Catalog.CreateVersion(def.ID, 2, basicSchema(), VersionStatusPublished)
	require.NoError(t, err)

	latest, err := svc.Catalog.GetPublishedVersion(def.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	pinned, err := svc.Catalog.GetPublishedVersion(def.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, pinned.ID)

	missing, err := svc.Catalog.GetPublishedVersion(def.ID, 9)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
