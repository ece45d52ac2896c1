package templatecenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	owner := Actor{ID: "alice"}
	reviewer := Actor{ID: "bob"}
	pm := Actor{ID: "carol", IsPM: true}
	outsider := Actor{ID: "mallory"}

	doc := func(status DocumentStatus) *DocumentInstanceRecord {
		return &DocumentInstanceRecord{
			ID:          "d1",
			OwnerID:     "alice",
			ReviewerIDs: JSONStringSlice{"bob"},
			Status:      status,
		}
	}

	tests := []struct {
		name     string
		status   DocumentStatus
		action   Action
		actor    Actor
		wantTo   DocumentStatus
		wantCode string
	}{
		{"owner starts draft", StatusNotStarted, ActionStartDraft, owner, StatusDraft, ""},
		{"owner submits for review", StatusDraft, ActionSubmitForReview, owner, StatusInReview, ""},
		{"reviewer approves", StatusInReview, ActionApprove, reviewer, StatusApproved, ""},
		{"reviewer requests changes", StatusInReview, ActionRequestChanges, reviewer, StatusDraft, ""},
		{"owner marks complete", StatusApproved, ActionMarkComplete, owner, StatusCompleted, ""},
		{"pm marks complete", StatusApproved, ActionMarkComplete, pm, StatusCompleted, ""},
		{"owner creates new version", StatusCompleted, ActionCreateNewVersion, owner, StatusDraft, ""},

		{"unknown action", StatusDraft, Action("archive"), owner, "", CodeInvalidAction},
		{"approve from draft", StatusDraft, ActionApprove, reviewer, "", CodeInvalidStateTransition},
		{"start draft twice", StatusDraft, ActionStartDraft, owner, "", CodeInvalidStateTransition},
		{"owner cannot approve own doc", StatusInReview, ActionApprove, owner, "", CodeForbidden},
		{"reviewer cannot submit", StatusDraft, ActionSubmitForReview, reviewer, "", CodeForbidden},
		{"pm cannot start draft", StatusNotStarted, ActionStartDraft, pm, "", CodeForbidden},
		{"outsider cannot complete", StatusApproved, ActionMarkComplete, outsider, "", CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := ValidateTransition(doc(tt.status), tt.action, tt.actor)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTo, rule.To)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ErrorCode(err))
		})
	}
}

func TestValidateTransition_ActionKnownBeforeRole(t *testing.T) {
	// A disallowed transition reports INVALID_STATE_TRANSITION even when the
	// actor would also fail the role check.
	doc := &DocumentInstanceRecord{ID: "d1", OwnerID: "alice", Status: StatusNotStarted}
	_, err := ValidateTransition(doc, ActionApprove, Actor{ID: "mallory"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidStateTransition, ErrorCode(err))
}

func TestValidateTransition_UnassignedOwnerNeverMatches(t *testing.T) {
	// An empty owner must not match an anonymous actor.
	doc := &DocumentInstanceRecord{ID: "d1", Status: StatusNotStarted}
	_, err := ValidateTransition(doc, ActionStartDraft, Actor{ID: ""})
	require.Error(t, err)
	assert.Equal(t, CodeForbidden, ErrorCode(err))
}
