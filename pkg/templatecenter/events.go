package templatecenter

import "github.com/planhub/template-center/pkg/audit"

// Audit event types emitted by the governance engines.
const (
	EventTemplateApplied     = "TEMPLATE_APPLIED"
	EventTemplateApplyFailed = "TEMPLATE_APPLY_FAILED"
	EventDocTransition       = "DOC_TRANSITION"
	EventDocTransitionFailed = "DOCUMENT_TRANSITION_FAILED"
	EventDocAssigned         = "DOC_ASSIGNED"
	EventGateDecide          = "GATE_DECIDE"
	EventGateDecideBlocked   = "GATE_DECIDE_BLOCKED"
	EventGateDecideFailed    = "GATE_DECIDE_FAILED"
)

// Audit entity types.
const (
	EntityLineage  = "template_lineage"
	EntityDocument = "document"
	EntityGate     = "gate"
)

// emit writes an audit event best-effort. The audit store always writes on
// its own DB handle, so failure events land even when the operation's own
// transaction rolled back. A nil store disables auditing (tests).
func emit(store *audit.Store, ev *audit.EventRecord) {
	if store == nil {
		return
	}
	_ = store.Append(ev)
}
