package templatecenter

import "fmt"

// Action is a document lifecycle action.
type Action string

const (
	ActionStartDraft       Action = "start_draft"
	ActionSubmitForReview  Action = "submit_for_review"
	ActionApprove          Action = "approve"
	ActionRequestChanges   Action = "request_changes"
	ActionMarkComplete     Action = "mark_complete"
	ActionCreateNewVersion Action = "create_new_version"
)

// Role names the capability a transition demands from its actor.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleReviewer Role = "reviewer"
	RolePM       Role = "pm"
)

// Actor is the identity attempting a transition. IsPM is a caller-supplied
// capability flag, not a stored role.
type Actor struct {
	ID   string
	IsPM bool
}

// capability predicates, evaluated against the document being transitioned.
// Membership checks only; there is no role hierarchy.
var roleChecks = map[Role]func(doc *DocumentInstanceRecord, actor Actor) bool{
	RoleOwner: func(doc *DocumentInstanceRecord, actor Actor) bool {
		return doc.OwnerID != "" && doc.OwnerID == actor.ID
	},
	RoleReviewer: func(doc *DocumentInstanceRecord, actor Actor) bool {
		return doc.ReviewerIDs.Contains(actor.ID)
	},
	RolePM: func(doc *DocumentInstanceRecord, actor Actor) bool {
		return actor.IsPM
	},
}

// TransitionRule defines one edge of the document approval workflow.
type TransitionRule struct {
	From  DocumentStatus
	To    DocumentStatus
	Roles []Role
}

// transitionRules is the document approval state machine. create_new_version
// is the only edge that advances the version counter.
var transitionRules = map[Action]TransitionRule{
	ActionStartDraft:       {From: StatusNotStarted, To: StatusDraft, Roles: []Role{RoleOwner}},
	ActionSubmitForReview:  {From: StatusDraft, To: StatusInReview, Roles: []Role{RoleOwner}},
	ActionApprove:          {From: StatusInReview, To: StatusApproved, Roles: []Role{RoleReviewer}},
	ActionRequestChanges:   {From: StatusInReview, To: StatusDraft, Roles: []Role{RoleReviewer}},
	ActionMarkComplete:     {From: StatusApproved, To: StatusCompleted, Roles: []Role{RoleOwner, RolePM}},
	ActionCreateNewVersion: {From: StatusCompleted, To: StatusDraft, Roles: []Role{RoleOwner}},
}

// RuleFor returns the transition rule for an action.
// An unknown action yields a BadRequest with code INVALID_ACTION.
func RuleFor(action Action) (TransitionRule, error) {
	rule, ok := transitionRules[action]
	if !ok {
		return TransitionRule{}, BadRequestError(CodeInvalidAction,
			fmt.Sprintf("unknown document action %q", action))
	}
	return rule, nil
}

// ValidateTransition checks that the action applies to the document's
// current status and that the actor holds one of the allowed roles.
func ValidateTransition(doc *DocumentInstanceRecord, action Action, actor Actor) (TransitionRule, error) {
	rule, err := RuleFor(action)
	if err != nil {
		return TransitionRule{}, err
	}
	if doc.Status != rule.From {
		return TransitionRule{}, BadRequestError(CodeInvalidStateTransition,
			fmt.Sprintf("action %s is not valid from status %s", action, doc.Status))
	}
	for _, role := range rule.Roles {
		if roleChecks[role](doc, actor) {
			return rule, nil
		}
	}
	return TransitionRule{}, ForbiddenError(CodeForbidden,
		fmt.Sprintf("actor %s lacks the %s capability for action %s", actor.ID, roleList(rule.Roles), action))
}

func roleList(roles []Role) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += "|"
		}
		out += string(r)
	}
	return out
}
