package templatecenter

import (
	"fmt"
)

// PolicyResolver derives a gate's prerequisite requirements from the schema
// the project most recently had applied.
type PolicyResolver struct {
	store   *Store
	catalog Catalog

	// defaultDocStates applies when a gate's requirements omit
	// requiredDocStates.
	defaultDocStates []DocumentStatus
}

// NewPolicyResolver creates a PolicyResolver. defaultDocStates may be nil to
// use approved/completed.
func NewPolicyResolver(store *Store, catalog Catalog, defaultDocStates []DocumentStatus) *PolicyResolver {
	if len(defaultDocStates) == 0 {
		defaultDocStates = []DocumentStatus{StatusApproved, StatusCompleted}
	}
	return &PolicyResolver{store: store, catalog: catalog, defaultDocStates: defaultDocStates}
}

// Resolve loads the applied schema for a project and returns the
// requirements of gates[gateKey]. A project with no lineage is NotFound with
// code template_not_applied; a lineage that points at a missing version, or
// a stored schema that no longer parses, is a data-integrity fault rather
// than a plain 404.
func (r *PolicyResolver) Resolve(projectID, gateKey string) (*GateRequirements, error) {
	return r.resolve(r.store, projectID, gateKey)
}

// ResolveTx is Resolve against a transactional store, so the gate engine can
// read requirements and record the decision in one transaction.
func (r *PolicyResolver) ResolveTx(tx *Store, projectID, gateKey string) (*GateRequirements, error) {
	return r.resolve(tx, projectID, gateKey)
}

func (r *PolicyResolver) resolve(store *Store, projectID, gateKey string) (*GateRequirements, error) {
	lin, err := store.GetLineage(projectID)
	if err != nil {
		return nil, err
	}
	if lin == nil || lin.TemplateVersionID == "" {
		return nil, NotFoundError(CodeTemplateNotApplied,
			fmt.Sprintf("project %s has no applied template", projectID))
	}

	ver, err := r.catalog.GetVersion(lin.TemplateVersionID)
	if err != nil {
		return nil, err
	}
	if ver == nil {
		return nil, DataIntegrityError(CodeSchemaCorrupt,
			fmt.Sprintf("lineage for project %s references missing template version %s", projectID, lin.TemplateVersionID))
	}

	schema, err := DecodeTemplateSchema(ver)
	if err != nil {
		return nil, err
	}

	req, ok := schema.Gates[gateKey]
	if !ok {
		return nil, NotFoundError(CodeGateNotDefined,
			fmt.Sprintf("gate %q is not defined by the applied template", gateKey))
	}
	if len(req.RequiredDocStates) == 0 {
		req.RequiredDocStates = append([]DocumentStatus(nil), r.defaultDocStates...)
	}
	if req.RequireAllKpis {
		req.RequiredKpiKeys = mergeRequiredKpiKeys(req.RequiredKpiKeys, schema.Kpis)
	}
	return &req, nil
}

// mergeRequiredKpiKeys appends every KPI the schema marks required to the
// gate's own key list, skipping duplicates and preserving order.
func mergeRequiredKpiKeys(keys []string, kpis []TemplateKpi) []string {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	merged := append([]string(nil), keys...)
	for _, kpi := range kpis {
		if kpi.Required && !seen[kpi.Key] {
			merged = append(merged, kpi.Key)
			seen[kpi.Key] = true
		}
	}
	return merged
}
