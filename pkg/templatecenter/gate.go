package templatecenter

import (
	"context"
	"fmt"

	"github.com/planhub/template-center/pkg/audit"
)

// DecideRequest asks for a gate decision to be recorded.
type DecideRequest struct {
	ProjectID string         `json:"-"`
	GateKey   string         `json:"-"`
	Decision  GateDecision   `json:"decision"`
	Comment   string         `json:"comment,omitempty"`
	Evidence  map[string]any `json:"evidence,omitempty"`

	ActorID     string `json:"-"`
	OrgID       string `json:"-"`
	WorkspaceID string `json:"-"`
}

// GateEngine computes unmet gate prerequisites and records approval
// decisions in the append-only gate log.
type GateEngine struct {
	store  *Store
	policy *PolicyResolver
	events *audit.Store
}

// NewGateEngine creates a GateEngine.
func NewGateEngine(store *Store, policy *PolicyResolver, events *audit.Store) *GateEngine {
	return &GateEngine{store: store, policy: policy, events: events}
}

// Blockers computes the unmet prerequisites for a gate against the given
// requirements. Document checks look at instance existence and status; KPI
// checks look at attachment existence only, never at value presence.
func (g *GateEngine) Blockers(projectID, gateKey string, req *GateRequirements) ([]Blocker, error) {
	return g.blockers(g.store, projectID, req)
}

func (g *GateEngine) blockers(store *Store, projectID string, req *GateRequirements) ([]Blocker, error) {
	var blockers []Blocker

	for _, key := range req.RequiredDocKeys {
		doc, err := store.GetDocumentByKey(projectID, key)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			blockers = append(blockers, Blocker{
				Type:   BlockerTypeDocument,
				Key:    key,
				Reason: ReasonMissingDocInstance,
			})
			continue
		}
		if !containsStatus(req.RequiredDocStates, doc.Status) {
			blockers = append(blockers, Blocker{
				Type:   BlockerTypeDocument,
				Key:    key,
				Reason: ReasonDocStateInvalid,
			})
		}
	}

	for _, key := range req.RequiredKpiKeys {
		att, err := store.GetAttachmentByKey(projectID, key)
		if err != nil {
			return nil, err
		}
		if att == nil {
			blockers = append(blockers, Blocker{
				Type:   BlockerTypeKpi,
				Key:    key,
				Reason: ReasonMissingProjectKpi,
			})
		}
	}

	return blockers, nil
}

// Decide records a gate decision. An approving decision first computes
// blockers; any unmet prerequisite fails the call with a structured
// gate_blocked Conflict. A rejected decision skips blocker evaluation
// entirely. The blocker read and the approval insert share one transaction
// so a prerequisite cannot change between check and commit.
func (g *GateEngine) Decide(ctx context.Context, req DecideRequest) (*GateApprovalRecord, error) {
	switch req.Decision {
	case DecisionApproved, DecisionApprovedWithComments, DecisionRejected:
	default:
		return nil, BadRequestError(CodeInvalidDecision,
			fmt.Sprintf("unknown gate decision %q", req.Decision))
	}

	if _, err := g.store.AssertInScope(req.ProjectID, req.OrgID, req.WorkspaceID); err != nil {
		return nil, err
	}

	approval := &GateApprovalRecord{
		ProjectID: req.ProjectID,
		GateKey:   req.GateKey,
		Decision:  req.Decision,
		Comment:   req.Comment,
		Evidence:  JSONAny(req.Evidence),
		DecidedBy: req.ActorID,
	}

	var blockers []Blocker
	txErr := g.store.Transaction(func(tx *Store) error {
		requirements, err := g.policy.ResolveTx(tx, req.ProjectID, req.GateKey)
		if err != nil {
			return err
		}

		if req.Decision != DecisionRejected {
			blockers, err = g.blockers(tx, req.ProjectID, requirements)
			if err != nil {
				return err
			}
			if len(blockers) > 0 {
				return GateBlockedError(req.GateKey, blockers)
			}
		}

		return tx.AppendGateApproval(approval)
	})

	if txErr != nil {
		eventType := EventGateDecideFailed
		outcome := audit.OutcomeFailure
		metadata := audit.JSONAny{
			"gateKey":  req.GateKey,
			"decision": string(req.Decision),
			"error":    txErr.Error(),
		}
		if e := AsError(txErr); e != nil && e.Code == CodeGateBlocked {
			eventType = EventGateDecideBlocked
			outcome = audit.OutcomeBlocked
			metadata["blockers"] = blockerMaps(blockers)
		}
		emit(g.events, &audit.EventRecord{
			EventType:   eventType,
			EntityType:  EntityGate,
			EntityID:    req.GateKey,
			Actor:       req.ActorID,
			OrgID:       req.OrgID,
			WorkspaceID: req.WorkspaceID,
			ProjectID:   req.ProjectID,
			Outcome:     outcome,
			Reason:      ErrorCode(txErr),
			Metadata:    metadata,
		})
		return nil, txErr
	}

	emit(g.events, &audit.EventRecord{
		EventType:   EventGateDecide,
		EntityType:  EntityGate,
		EntityID:    req.GateKey,
		Actor:       req.ActorID,
		OrgID:       req.OrgID,
		WorkspaceID: req.WorkspaceID,
		ProjectID:   req.ProjectID,
		Outcome:     audit.OutcomeSuccess,
		NewValue: audit.JSONAny{
			"approvalId": approval.ID,
			"decision":   string(req.Decision),
			"comment":    req.Comment,
		},
		Metadata: audit.JSONAny{"gateKey": req.GateKey},
	})
	return approval, nil
}

func containsStatus(states []DocumentStatus, s DocumentStatus) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func blockerMaps(blockers []Blocker) []map[string]any {
	out := make([]map[string]any, len(blockers))
	for i, b := range blockers {
		out[i] = map[string]any{"type": b.Type, "key": b.Key, "reason": b.Reason}
	}
	return out
}
