package workflow_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/workflow"
)

var ref = models.MessageRef{Channel: "C1", TS: "1700000000.000100"}

func chatLead() models.MessageState {
	return models.MessageState{
		Ref:      ref,
		Category: models.CategoryChatLeads,
		Contact:  models.Contact{Name: "Al", Email: "a@x.com"},
		Body:     "hi",
	}
}

func application() models.MessageState {
	return models.MessageState{
		Ref:      ref,
		Category: models.CategoryApplications,
		Contact:  models.Contact{Name: "Kim", Email: "kim@x.io"},
		Body:     "please",
	}
}

func effectNames(effects []workflow.Effect) []string {
	names := make([]string, 0, len(effects))
	for _, e := range effects {
		names = append(names, e.Name())
	}
	return names
}

func TestStageOf(t *testing.T) {
	t.Parallel()

	s := application()
	if got := workflow.StageOf(s); got != workflow.StageNew {
		t.Errorf("new: %s", got)
	}
	s.Assignment = &models.AssignmentInfo{AssignedTo: "U2", AssignedBy: "UA"}
	if got := workflow.StageOf(s); got != workflow.StageAssigned {
		t.Errorf("assigned: %s", got)
	}
	s.Decision = &models.Decision{Outcome: models.OutcomeApproved, By: "U3"}
	if got := workflow.StageOf(s); got != workflow.StageDecided {
		t.Errorf("decided: %s", got)
	}
}

func TestAssign(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tr, err := workflow.Assign(chatLead(), "U2", "UA", now)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if tr.State.Assignment == nil || *tr.State.Assignment != (models.AssignmentInfo{AssignedTo: "U2", AssignedBy: "UA"}) {
		t.Fatalf("assignment = %+v", tr.State.Assignment)
	}
	want := []string{"persist_assignment", "update_view", "direct_message", "forward_assignment"}
	if got := effectNames(tr.Effects); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("effects = %v, want %v", got, want)
	}

	persist := tr.Effects[0].(workflow.PersistAssignment)
	if persist.Assignment.Channel != "C1" || persist.Assignment.MessageTS != ref.TS ||
		persist.Assignment.Category != models.CategoryChatLeads || !persist.Assignment.AssignedAt.Equal(now) {
		t.Errorf("record = %+v", persist.Assignment)
	}
	dm := tr.Effects[2].(workflow.DirectMessage)
	if dm.UserID != "U2" || !strings.Contains(dm.Text, "<@UA>") {
		t.Errorf("dm = %+v", dm)
	}
}

func TestAssignRejections(t *testing.T) {
	t.Parallel()

	assigned := chatLead()
	assigned.Assignment = &models.AssignmentInfo{AssignedTo: "U2", AssignedBy: "UA"}
	decided := application()
	decided.Decision = &models.Decision{Outcome: models.OutcomeRejected, By: "U3"}

	testCases := []struct {
		name     string
		state    models.MessageState
		assignee string
		want     error
	}{
		{"already assigned", assigned, "U9", workflow.ErrAlreadyAssigned},
		{"decided", decided, "U9", workflow.ErrTerminal},
		{"no assignee", chatLead(), " ", workflow.ErrMissingAssignee},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := workflow.Assign(tc.state, tc.assignee, "UA", time.Now()); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	assigned := application()
	assigned.Assignment = &models.AssignmentInfo{AssignedTo: "U2", AssignedBy: "UA"}

	tr, err := workflow.Decide(assigned, models.OutcomeApproved, "U3")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if tr.State.Decision == nil || tr.State.Decision.Outcome != models.OutcomeApproved || tr.State.Decision.By != "U3" {
		t.Fatalf("decision = %+v", tr.State.Decision)
	}
	if tr.State.Assignment == nil {
		t.Fatal("assignment dropped by decision")
	}
	// The decision is presentation-only: nothing is persisted.
	if got := effectNames(tr.Effects); len(got) != 1 || got[0] != "update_view" {
		t.Fatalf("effects = %v", got)
	}

	if _, err := workflow.Decide(tr.State, models.OutcomeRejected, "U4"); !errors.Is(err, workflow.ErrAlreadyDecided) {
		t.Errorf("second decision: %v", err)
	}
	if _, err := workflow.Decide(chatLead(), models.OutcomeApproved, "U3"); !errors.Is(err, workflow.ErrNotApplication) {
		t.Errorf("chat lead decision: %v", err)
	}
	if _, err := workflow.Decide(application(), "Maybe", "U3"); !errors.Is(err, workflow.ErrInvalidOutcome) {
		t.Errorf("bogus outcome: %v", err)
	}
}

func TestDecideFromNew(t *testing.T) {
	t.Parallel()

	tr, err := workflow.Decide(application(), models.OutcomeRejected, "U3")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if workflow.StageOf(tr.State) != workflow.StageDecided {
		t.Fatalf("stage = %s", workflow.StageOf(tr.State))
	}
}

func TestDecideDirect(t *testing.T) {
	t.Parallel()

	tr, err := workflow.DecideDirect(application(), models.OutcomeAccepted, "U3")
	if err != nil {
		t.Fatalf("DecideDirect: %v", err)
	}
	want := "update_view,notify_applicant"
	if got := strings.Join(effectNames(tr.Effects), ","); got != want {
		t.Fatalf("effects = %s, want %s", got, want)
	}
	if n := tr.Effects[1].(workflow.NotifyApplicant); n.Email != "kim@x.io" {
		t.Errorf("notify = %+v", n)
	}

	noEmail := application()
	noEmail.Contact.Email = ""
	tr, err = workflow.DecideDirect(noEmail, models.OutcomeRejected, "U3")
	if err != nil {
		t.Fatalf("DecideDirect without email: %v", err)
	}
	if len(tr.Effects) != 1 {
		t.Errorf("expected no applicant notice without an email, got %v", effectNames(tr.Effects))
	}
}

func TestReplyAndPreferences(t *testing.T) {
	t.Parallel()

	tr := workflow.Reply(ref, "U5", "  on it  ")
	reply := tr.Effects[0].(workflow.ThreadReply)
	if reply.Ref != ref || reply.Text != "<@U5> replied: on it" {
		t.Errorf("reply = %+v", reply)
	}

	prefs := models.Preferences{Applications: true}
	tr = workflow.SavePreferences("UA", prefs)
	if got := strings.Join(effectNames(tr.Effects), ","); got != "persist_preferences,publish_home" {
		t.Fatalf("effects = %s", got)
	}
	if p := tr.Effects[0].(workflow.PersistPreferences); p.Preferences != prefs || p.UserID != "UA" {
		t.Errorf("persist = %+v", p)
	}
}
