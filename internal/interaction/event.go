// Package interaction routes Slack interactive callbacks (button clicks and
// modal submissions) to workflow transitions and performs the resulting
// effects.
package interaction

import (
	"fmt"

	"github.com/lalith-99/leaddesk/internal/errs"
	"github.com/lalith-99/leaddesk/internal/view"
	"github.com/slack-go/slack"
)

// Kind is the closed set of inbound callback kinds.
type Kind int

const (
	KindAction Kind = iota + 1
	KindSubmission
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindSubmission:
		return "submission"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ID is an action id (for KindAction) or a callback id (for KindSubmission).
type ID string

const (
	ActionAssign          ID = view.ActionAssign
	ActionCountersign     ID = view.ActionCountersign
	ActionViewApplication ID = view.ActionViewApplication
	ActionReply           ID = view.ActionReply
	ActionApprove         ID = view.ActionApprove
	ActionReject          ID = view.ActionReject
	ActionSavePreferences ID = view.ActionSavePreferences

	SubmissionAssign      ID = view.CallbackAssign
	SubmissionReply       ID = view.CallbackReply
	SubmissionCountersign ID = view.CallbackCountersign
)

// ActionIDs and SubmissionIDs list every id the router knows. Each must
// have a handler; the router test enforces it.
var (
	ActionIDs = []ID{
		ActionAssign,
		ActionCountersign,
		ActionViewApplication,
		ActionReply,
		ActionApprove,
		ActionReject,
		ActionSavePreferences,
	}
	SubmissionIDs = []ID{
		SubmissionAssign,
		SubmissionReply,
		SubmissionCountersign,
	}
)

// Event is one typed inbound callback.
type Event struct {
	Kind     Kind
	ID       ID
	Callback slack.InteractionCallback

	// Action is the clicked element for KindAction.
	Action *slack.BlockAction
}

// ActorID is the Slack user who triggered the event.
func (e Event) ActorID() string {
	return e.Callback.User.ID
}

// DeliveryID identifies the callback across Slack redeliveries.
func (e Event) DeliveryID() string {
	return e.Callback.TriggerID
}

// EventFromCallback classifies a decoded interaction payload. Callback
// types other than block_actions and view_submission are malformed here.
func EventFromCallback(cb slack.InteractionCallback) (Event, error) {
	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		actions := cb.ActionCallback.BlockActions
		if len(actions) == 0 || actions[0] == nil {
			return Event{}, errs.Malformed("block_actions without an action")
		}
		return Event{Kind: KindAction, ID: ID(actions[0].ActionID), Callback: cb, Action: actions[0]}, nil
	case slack.InteractionTypeViewSubmission:
		if cb.View.CallbackID == "" {
			return Event{}, errs.Malformed("view_submission without callback id")
		}
		return Event{Kind: KindSubmission, ID: ID(cb.View.CallbackID), Callback: cb}, nil
	}
	return Event{}, errs.Malformed("unsupported interaction type %q", cb.Type)
}
