package view_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lalith-99/leaddesk/internal/errs"
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/view"
	"github.com/slack-go/slack"
)

// deliver sends a rendering through JSON the way Slack hands it back on a
// callback, so block types come out as the pointer types the parser sees.
func deliver(t *testing.T, m view.Message, ts string, stripMetadata bool) slack.Message {
	t.Helper()
	msg := slack.Message{Msg: slack.Msg{
		Timestamp: ts,
		Text:      m.Text,
		Blocks:    slack.Blocks{BlockSet: m.Blocks},
	}}
	if !stripMetadata {
		msg.Metadata = m.Metadata
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	var out slack.Message
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return out
}

func sampleStates() map[string]models.MessageState {
	ref := models.MessageRef{Channel: "C1", TS: "1700000000.000100"}
	return map[string]models.MessageState{
		"new chat lead": {
			Ref:      ref,
			Category: models.CategoryChatLeads,
			Contact:  models.Contact{Name: "Jo", Email: "jo@x.io", Phone: "555-0100", Place: "Berlin"},
			Body:     "Hi, is the room free?",
		},
		"assigned tour with empty phone": {
			Ref:        ref,
			Category:   models.CategoryScheduleTour,
			Contact:    models.Contact{Name: "Ana & Bo", Email: "ana@x.io", Place: "<Lisbon>"},
			Body:       "Saturday at 10",
			Assignment: &models.AssignmentInfo{AssignedTo: "U2", AssignedBy: "U1"},
		},
		"new application": {
			Ref:      ref,
			Category: models.CategoryApplications,
			Contact:  models.Contact{Name: "Kim Lee", FirstName: "Kim", LastName: "Lee", Email: "kim@x.io", Phone: "1", Place: "Oslo"},
			Body:     "multi\nline\nmotivation",
		},
		"assigned and decided application": {
			Ref:        ref,
			Category:   models.CategoryApplications,
			Contact:    models.Contact{Name: "Kim Lee", FirstName: "Kim", LastName: "Lee", Email: "kim@x.io"},
			Body:       "motivation",
			Assignment: &models.AssignmentInfo{AssignedTo: "U2", AssignedBy: "U1"},
			Decision:   &models.Decision{Outcome: models.OutcomeApproved, By: "U3"},
		},
		"place that reads like the empty marker": {
			Ref:      ref,
			Category: models.CategoryChatLeads,
			Contact:  models.Contact{Name: "Lu", Email: "lu@x.io", Place: "_not provided_"},
			Body:     "hey",
		},
		"decided without assignment": {
			Ref:      ref,
			Category: models.CategoryApplications,
			Contact:  models.Contact{Name: "Sam", Email: "sam@x.io"},
			Body:     "hello",
			Decision: &models.Decision{Outcome: models.OutcomeRejected, By: "U3"},
		},
	}
}

func assertStateEqual(t *testing.T, want, got models.MessageState) {
	t.Helper()
	w, _ := json.Marshal(want)
	g, _ := json.Marshal(got)
	if string(w) != string(g) {
		t.Fatalf("state mismatch\nwant %s\ngot  %s", w, g)
	}
}

func TestRoundTripMetadataPath(t *testing.T) {
	t.Parallel()

	for name, state := range sampleStates() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			msg := deliver(t, view.RenderMessage(state, true), state.Ref.TS, false)
			parsed := view.ParseMessage(state.Ref.Channel, msg)
			if parsed.Source != view.SourceMetadata {
				t.Fatalf("expected metadata source, got %s", parsed.Source)
			}
			assertStateEqual(t, state, parsed.State(models.CategoryChatLeads))
		})
	}
}

func TestRoundTripLabelPath(t *testing.T) {
	t.Parallel()

	for name, state := range sampleStates() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			msg := deliver(t, view.RenderMessage(state, false), state.Ref.TS, true)
			parsed := view.ParseMessage(state.Ref.Channel, msg)
			if parsed.Source != view.SourceLabels {
				t.Fatalf("expected label source, got %s", parsed.Source)
			}
			// First and last name are only rendered for applications.
			want := state
			if want.Category != models.CategoryApplications {
				want.Contact.FirstName, want.Contact.LastName = "", ""
			}
			assertStateEqual(t, want, parsed.State(models.CategoryChatLeads))
		})
	}
}

func TestParseDistinguishesEmptyFromMissing(t *testing.T) {
	t.Parallel()

	state := sampleStates()["assigned tour with empty phone"]
	parsed := view.ParseMessage("C1", deliver(t, view.RenderMessage(state, false), state.Ref.TS, true))

	if !parsed.Phone.Found || parsed.Phone.Value != "" {
		t.Errorf("phone: expected found and empty, got %+v", parsed.Phone)
	}
	if parsed.FirstName.Found {
		t.Errorf("first name is never rendered for tours, got %+v", parsed.FirstName)
	}
	if got := parsed.FirstName.Or("unknown"); got != "unknown" {
		t.Errorf("Or on missing field = %q", got)
	}
}

func TestParseUnrelatedMessage(t *testing.T) {
	t.Parallel()

	msg := slack.Message{Msg: slack.Msg{Timestamp: "1.2", Text: "hello"}}
	parsed := view.ParseMessage("C9", msg)

	if parsed.Category.Found || parsed.Name.Found || parsed.Email.Found {
		t.Fatalf("expected nothing recovered, got %+v", parsed)
	}
	state := parsed.State(models.CategoryScheduleTour)
	if state.Category != models.CategoryScheduleTour {
		t.Errorf("fallback category not applied: %q", state.Category)
	}
	if state.Ref != (models.MessageRef{Channel: "C9", TS: "1.2"}) {
		t.Errorf("ref = %+v", state.Ref)
	}
}

func TestParseIgnoresUnknownMetadataVersion(t *testing.T) {
	t.Parallel()

	state := sampleStates()["new chat lead"]
	rendered := view.RenderMessage(state, false)
	rendered.Metadata.EventPayload["v"] = float64(99)
	rendered.Metadata.EventPayload["body"] = "tampered"

	parsed := view.ParseMessage("C1", deliver(t, rendered, state.Ref.TS, false))
	if parsed.Source != view.SourceLabels {
		t.Fatalf("expected fallback to labels, got %s", parsed.Source)
	}
	if parsed.Body.Value != state.Body {
		t.Errorf("body = %q", parsed.Body.Value)
	}
}

func controls(t *testing.T, state models.MessageState) map[string]bool {
	t.Helper()
	return view.ParseMessage("C1", deliver(t, view.RenderMessage(state, true), state.Ref.TS, false)).Controls
}

func TestRenderControlSets(t *testing.T) {
	t.Parallel()

	states := sampleStates()
	testCases := []struct {
		name    string
		state   models.MessageState
		present []string
		absent  []string
	}{
		{
			name:    "chat lead before assignment",
			state:   states["new chat lead"],
			present: []string{view.ActionAssign, view.ActionReply},
			absent:  []string{view.ActionCountersign, view.ActionViewApplication},
		},
		{
			name:    "tour after assignment",
			state:   states["assigned tour with empty phone"],
			present: []string{view.ActionReply},
			absent:  []string{view.ActionAssign, view.ActionCountersign},
		},
		{
			name:    "application before assignment",
			state:   states["new application"],
			present: []string{view.ActionViewApplication, view.ActionCountersign, view.ActionAssign, view.ActionReply},
		},
		{
			name:    "decided application",
			state:   states["assigned and decided application"],
			present: []string{view.ActionViewApplication, view.ActionReply},
			absent:  []string{view.ActionAssign, view.ActionCountersign, view.ActionApprove, view.ActionReject},
		},
		{
			name:    "decided before assignment",
			state:   states["decided without assignment"],
			present: []string{view.ActionViewApplication, view.ActionReply},
			absent:  []string{view.ActionAssign, view.ActionCountersign},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := controls(t, tc.state)
			for _, id := range tc.present {
				if !got[id] {
					t.Errorf("expected control %q, got %v", id, got)
				}
			}
			for _, id := range tc.absent {
				if got[id] {
					t.Errorf("control %q should not be rendered", id)
				}
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()

	state := sampleStates()["assigned and decided application"]
	a, _ := json.Marshal(view.RenderMessage(state, false).Blocks)
	b, _ := json.Marshal(view.RenderMessage(state, false).Blocks)
	if string(a) != string(b) {
		t.Fatal("rendering the same state twice produced different blocks")
	}
}

func TestRenderAdminFlagDoesNotChangeParsedState(t *testing.T) {
	t.Parallel()

	state := sampleStates()["new application"]
	asAdmin := view.ParseMessage("C1", deliver(t, view.RenderMessage(state, true), state.Ref.TS, true))
	asUser := view.ParseMessage("C1", deliver(t, view.RenderMessage(state, false), state.Ref.TS, true))
	assertStateEqual(t, asAdmin.State(""), asUser.State(""))
}

func TestChatLeadAssignmentRendering(t *testing.T) {
	t.Parallel()

	state := sampleStates()["new chat lead"]
	state.Assignment = &models.AssignmentInfo{AssignedTo: "U2", AssignedBy: "U1"}
	raw, _ := json.Marshal(view.RenderMessage(state, true).Blocks)
	if !strings.Contains(string(raw), "assigned by: <@U1>  to: <@U2>") {
		t.Fatalf("assignment annotation missing: %s", raw)
	}
	if strings.Contains(string(raw), view.ActionAssign) {
		t.Fatalf("assign control still rendered: %s", raw)
	}
}

func TestDecisionFallbackText(t *testing.T) {
	t.Parallel()

	m := view.RenderMessage(sampleStates()["decided without assignment"], false)
	if !strings.Contains(m.Text, "Rejected by: <@U3>") {
		t.Errorf("fallback text = %q", m.Text)
	}
}

func TestModalMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	state := sampleStates()["assigned tour with empty phone"]
	raw, truncated, err := view.EncodeModalMetadata(state)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if truncated {
		t.Fatal("short state should not be truncated")
	}
	md, err := view.DecodeModalMetadata(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if md.Ref() != state.Ref {
		t.Errorf("ref = %+v", md.Ref())
	}
	assertStateEqual(t, state, md.State)
}

func TestModalMetadataTruncatesLongBody(t *testing.T) {
	t.Parallel()

	state := sampleStates()["new application"]
	state.Body = strings.Repeat("ü", 5000)
	raw, truncated, err := view.EncodeModalMetadata(state)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !truncated {
		t.Fatal("expected truncation")
	}
	if len(raw) > 3000 {
		t.Fatalf("encoded length %d exceeds the private metadata limit", len(raw))
	}
	md, err := view.DecodeModalMetadata(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if md.State.Contact != state.Contact {
		t.Errorf("contact changed during truncation: %+v", md.State.Contact)
	}
}

func TestDecodeModalMetadataRejects(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "not json", raw: "C1|123.456"},
		{name: "unknown version", raw: `{"v":2,"channel":"C1","ts":"1.2","state":{}}`},
		{name: "missing ts", raw: `{"v":1,"channel":"C1","state":{}}`},
		{name: "missing channel", raw: `{"v":1,"ts":"1.2","state":{}}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := view.DecodeModalMetadata(tc.raw)
			if !errors.Is(err, errs.ErrMalformedEvent) {
				t.Fatalf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestAssignModalOptions(t *testing.T) {
	t.Parallel()

	m := view.AssignModal(sampleStates()["new chat lead"], []view.Candidate{
		{SlackID: "U2", Name: "Bea"},
		{SlackID: "U3"},
	}, "meta")

	if m.CallbackID != view.CallbackAssign || m.PrivateMetadata != "meta" {
		t.Fatalf("unexpected modal envelope: %+v", m)
	}
	raw, _ := json.Marshal(m)
	for _, want := range []string{`"value":"U2"`, `"text":"Bea"`, `"text":"U3"`, view.ActionAssignInput} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("assign modal missing %s: %s", want, raw)
		}
	}
}

func TestApplicationModalLink(t *testing.T) {
	t.Parallel()

	state := sampleStates()["new application"]
	withLink, _ := json.Marshal(view.ApplicationModal(state, "https://example.com/applications?email=kim@x.io"))
	if !strings.Contains(string(withLink), "View in Website") {
		t.Errorf("expected website button: %s", withLink)
	}
	without, _ := json.Marshal(view.ApplicationModal(state, ""))
	if strings.Contains(string(without), "View in Website") {
		t.Errorf("button rendered without a URL: %s", without)
	}
}

func TestRenderHome(t *testing.T) {
	t.Parallel()

	home := view.RenderHome(view.HomeData{
		IsAdmin:     true,
		Preferences: models.Preferences{ChatLeads: true},
		Assignments: []models.Assignment{{
			Channel:    "C1",
			MessageTS:  "1700000000.000100",
			Category:   models.CategoryChatLeads,
			AssignedBy: "U1",
			AssignedAt: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
		}},
	})
	if home.Type != slack.VTHomeTab {
		t.Fatalf("type = %q", home.Type)
	}
	raw, _ := json.Marshal(home)
	for _, want := range []string{
		view.BlockPreferences,
		view.ActionTogglePrefs,
		view.ActionSavePreferences,
		"https://slack.com/archives/C1/p1700000000000100",
		"Mar 5, 2024",
		"*admin*",
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("home view missing %q", want)
		}
	}

	empty, _ := json.Marshal(view.RenderHome(view.HomeData{Preferences: models.DefaultPreferences()}))
	if !strings.Contains(string(empty), "No messages have been assigned") {
		t.Errorf("empty state missing: %s", empty)
	}
}
