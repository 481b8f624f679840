package interaction

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lalith-99/leaddesk/internal/errs"
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/view"
	"github.com/lalith-99/leaddesk/internal/workflow"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// User-visible notices.
const (
	msgAdminOnlyAssign = "Only the admin can assign messages."
	msgUnreadable      = "Sorry, this message could not be read. Nothing was changed."
	msgRoleCheckFailed = "Sorry, your permissions could not be checked right now. Please try again."
	msgChooseUser      = "Please choose a user."
	msgChooseDecision  = "Please choose a decision."
	msgEmptyReply      = "Please write a reply."
	msgReloadFailed    = "Sorry, the message could not be loaded. Nothing was changed. Please try again."
)

var ack = workflow.Acknowledge{}

// messageRef pulls the message identity out of a block_actions envelope.
func messageRef(cb slack.InteractionCallback) (models.MessageRef, error) {
	ref := models.MessageRef{Channel: cb.Channel.ID, TS: cb.Message.Timestamp}
	if ref.Channel == "" {
		ref.Channel = cb.Container.ChannelID
	}
	if ref.TS == "" {
		ref.TS = cb.Container.MessageTs
	}
	if !ref.Valid() {
		return models.MessageRef{}, errs.Malformed("action without channel or message ts")
	}
	return ref, nil
}

// parseLead recovers the lead behind a block action. A message whose
// category cannot be recovered is malformed.
func (r *Router) parseLead(ev Event) (view.Parsed, models.MessageState, error) {
	ref, err := messageRef(ev.Callback)
	if err != nil {
		return view.Parsed{}, models.MessageState{}, err
	}
	parsed := view.ParseMessage(ref.Channel, ev.Callback.Message)
	if !parsed.Category.Found {
		return parsed, models.MessageState{}, errs.Malformed("message %s/%s carries no lead category", ref.Channel, ref.TS)
	}
	state := parsed.State("")
	state.Ref = ref
	return parsed, state, nil
}

// currentLead reloads the message a modal was opened from. Submissions
// write on top of the message as it is now; the copy in private metadata
// may be stale or carry a shortened body.
func (r *Router) currentLead(ctx context.Context, md view.ModalMetadata) (models.MessageState, error) {
	msg, err := r.deps.Notifier.FetchLead(ctx, md.Ref())
	if err != nil {
		return models.MessageState{}, fmt.Errorf("reload lead: %w", err)
	}
	parsed := view.ParseMessage(md.Channel, msg)
	if !parsed.Category.Found {
		return models.MessageState{}, errs.Malformed("message %s/%s carries no lead category", md.Channel, md.TS)
	}
	state := parsed.State("")
	state.Ref = md.Ref()
	return state, nil
}

func (r *Router) reloadFailed(ev Event, channel string, err error) []workflow.Effect {
	r.logger.Warn("could not reload lead for submission",
		zap.String("id", string(ev.ID)),
		zap.String("channel", channel),
		zap.Error(err),
	)
	return ephemeral(channel, ev.ActorID(), msgReloadFailed)
}

func (r *Router) malformed(ev Event, err error) ([]workflow.Effect, workflow.Acknowledge) {
	r.logger.Warn("dropping malformed interaction",
		zap.String("id", string(ev.ID)),
		zap.String("actor", ev.ActorID()),
		zap.Error(err),
	)
	return nil, ack
}

func ephemeral(channel, userID, text string) []workflow.Effect {
	if channel == "" {
		return nil
	}
	return []workflow.Effect{workflow.Ephemeral{Channel: channel, UserID: userID, Text: text}}
}

// isAdmin wraps the guard. On failure the caller gets a notice to show.
func (r *Router) isAdmin(ctx context.Context, actor string) (bool, error) {
	ok, err := r.deps.Guard.IsAdmin(ctx, actor)
	if err != nil {
		r.logger.Error("role check failed", zap.String("actor", actor), zap.Error(err))
	}
	return ok, err
}

func (r *Router) modalMetadata(state models.MessageState) (string, error) {
	md, truncated, err := view.EncodeModalMetadata(state)
	if err != nil {
		return "", err
	}
	if truncated {
		r.logger.Warn("lead body truncated to fit modal metadata",
			zap.String("channel", state.Ref.Channel),
			zap.String("ts", state.Ref.TS),
		)
	}
	return md, nil
}

func alreadyAssignedText(a models.AssignmentInfo) string {
	return fmt.Sprintf("This message is already assigned to <@%s>.", a.AssignedTo)
}

func decidedText(d models.Decision) string {
	return fmt.Sprintf("This application was already %s by <@%s>.", strings.ToLower(string(d.Outcome)), d.By)
}

// assignAction opens the assign modal for the admin.
func (r *Router) assignAction(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge) {
	actor := ev.ActorID()
	ref, err := messageRef(ev.Callback)
	if err != nil {
		return r.malformed(ev, err)
	}

	admin, err := r.isAdmin(ctx, actor)
	if err != nil {
		return ephemeral(ref.Channel, actor, msgRoleCheckFailed), ack
	}
	if !admin {
		return ephemeral(ref.Channel, actor, msgAdminOnlyAssign), ack
	}

	_, state, err := r.parseLead(ev)
	if err != nil {
		r.malformed(ev, err)
		return ephemeral(ref.Channel, actor, msgUnreadable), ack
	}
	switch {
	case state.IsDecided():
		return ephemeral(ref.Channel, actor, decidedText(*state.Decision)), ack
	case state.IsAssigned():
		return ephemeral(ref.Channel, actor, alreadyAssignedText(*state.Assignment)), ack
	}

	users, err := r.deps.Users.FindUsersByEnabledCategory(ctx, state.Category)
	if err != nil {
		r.logger.Error("load assign candidates", zap.String("category", string(state.Category)), zap.Error(err))
		return ephemeral(ref.Channel, actor, "Sorry, the user list could not be loaded. Please try again."), ack
	}
	if len(users) == 0 {
		text := fmt.Sprintf("No users have %s enabled in their preferences.", view.CategoryLabel(state.Category))
		return ephemeral(ref.Channel, actor, text), ack
	}
	candidates := make([]view.Candidate, 0, len(users))
	for _, u := range users {
		candidates = append(candidates, view.Candidate{SlackID: u.SlackID, Name: u.DisplayName()})
	}

	md, err := r.modalMetadata(state)
	if err != nil {
		r.logger.Error("encode modal metadata", zap.Error(err))
		return nil, ack
	}
	return []workflow.Effect{workflow.OpenModal{
		TriggerID: ev.Callback.TriggerID,
		Modal:     view.AssignModal(state, candidates, md),
	}}, ack
}

// assignSubmission performs New -> Assigned.
func (r *Router) assignSubmission(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge) {
	actor := ev.ActorID()
	md, err := view.DecodeModalMetadata(ev.Callback.View.PrivateMetadata)
	if err != nil {
		return r.malformed(ev, err)
	}
	channel := md.Channel

	assignee := selectedOption(ev.Callback.View.State, view.BlockAssign, view.ActionAssignInput)
	if assignee == "" {
		return nil, workflow.Acknowledge{Response: slack.NewErrorsViewSubmissionResponse(map[string]string{
			view.BlockAssign: msgChooseUser,
		})}
	}

	admin, err := r.isAdmin(ctx, actor)
	if err != nil {
		return ephemeral(channel, actor, msgRoleCheckFailed), ack
	}
	if !admin {
		return ephemeral(channel, actor, msgAdminOnlyAssign), ack
	}

	// The current message is checked first; the stored record catches a
	// submission that raced past it.
	state, err := r.currentLead(ctx, md)
	if err != nil {
		return r.reloadFailed(ev, channel, err), ack
	}
	if state.IsAssigned() {
		return ephemeral(channel, actor, alreadyAssignedText(*state.Assignment)), ack
	}
	existing, err := r.deps.Assignments.FindAssignmentByMessage(ctx, md.Ref())
	if err != nil {
		r.logger.Error("check existing assignment", zap.Error(err))
		return ephemeral(channel, actor, "Sorry, the assignment could not be saved. Please try again."), ack
	}
	if existing != nil {
		return ephemeral(channel, actor, alreadyAssignedText(models.AssignmentInfo{
			AssignedTo: existing.AssignedTo,
			AssignedBy: existing.AssignedBy,
		})), ack
	}

	tr, err := workflow.Assign(state, assignee, actor, r.deps.Now())
	if err != nil {
		return r.transitionRejected(channel, actor, state, err), ack
	}
	return tr.Effects, ack
}

// countersignAction opens the countersign modal.
func (r *Router) countersignAction(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge) {
	actor := ev.ActorID()
	_, state, err := r.parseLead(ev)
	if err != nil {
		return r.malformed(ev, err)
	}
	if state.Category != models.CategoryApplications {
		return ephemeral(state.Ref.Channel, actor, "Only applications can be countersigned."), ack
	}
	if state.IsDecided() {
		return ephemeral(state.Ref.Channel, actor, decidedText(*state.Decision)), ack
	}

	md, err := r.modalMetadata(state)
	if err != nil {
		r.logger.Error("encode modal metadata", zap.Error(err))
		return nil, ack
	}
	return []workflow.Effect{workflow.OpenModal{
		TriggerID: ev.Callback.TriggerID,
		Modal:     view.CountersignModal(state, md),
	}}, ack
}

// countersignSubmission performs New/Assigned -> Decided.
func (r *Router) countersignSubmission(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge) {
	actor := ev.ActorID()
	md, err := view.DecodeModalMetadata(ev.Callback.View.PrivateMetadata)
	if err != nil {
		return r.malformed(ev, err)
	}

	choice := selectedOption(ev.Callback.View.State, view.BlockCountersign, view.ActionChoiceInput)
	if choice == "" {
		return nil, workflow.Acknowledge{Response: slack.NewErrorsViewSubmissionResponse(map[string]string{
			view.BlockCountersign: msgChooseDecision,
		})}
	}

	state, err := r.currentLead(ctx, md)
	if err != nil {
		return r.reloadFailed(ev, md.Channel, err), ack
	}
	tr, err := workflow.Decide(state, models.Outcome(choice), actor)
	if err != nil {
		return r.transitionRejected(md.Channel, actor, state, err), ack
	}
	return tr.Effects, ack
}

// directDecisionAction handles the approve and reject buttons.
func (r *Router) directDecisionAction(outcome models.Outcome) handler {
	return func(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge) {
		actor := ev.ActorID()
		_, state, err := r.parseLead(ev)
		if err != nil {
			return r.malformed(ev, err)
		}
		tr, err := workflow.DecideDirect(state, outcome, actor)
		if err != nil {
			return r.transitionRejected(state.Ref.Channel, actor, state, err), ack
		}
		return tr.Effects, ack
	}
}

// viewApplicationAction shows the full application. No role is required.
func (r *Router) viewApplicationAction(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge) {
	_, state, err := r.parseLead(ev)
	if err != nil {
		return r.malformed(ev, err)
	}
	return []workflow.Effect{workflow.OpenModal{
		TriggerID: ev.Callback.TriggerID,
		Modal:     view.ApplicationModal(state, r.applicationURL(state.Contact.Email)),
	}}, ack
}

func (r *Router) applicationURL(email string) string {
	base := strings.TrimSpace(r.deps.WebsiteBaseURL)
	if base == "" || email == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		r.logger.Warn("invalid website base url", zap.String("url", base), zap.Error(err))
		return ""
	}
	u = u.JoinPath("applications")
	q := u.Query()
	q.Set("email", email)
	u.RawQuery = q.Encode()
	return u.String()
}

// replyAction opens the reply modal. No role is required.
func (r *Router) replyAction(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge) {
	ref, err := messageRef(ev.Callback)
	if err != nil {
		return r.malformed(ev, err)
	}
	// Reply only needs the message identity; an unreadable lead is fine.
	state := view.ParseMessage(ref.Channel, ev.Callback.Message).State(models.CategoryChatLeads)
	state.Ref = ref

	md, err := r.modalMetadata(state)
	if err != nil {
		r.logger.Error("encode modal metadata", zap.Error(err))
		return nil, ack
	}
	return []workflow.Effect{workflow.OpenModal{
		TriggerID: ev.Callback.TriggerID,
		Modal:     view.ReplyModal(md),
	}}, ack
}

func (r *Router) replySubmission(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge) {
	md, err := view.DecodeModalMetadata(ev.Callback.View.PrivateMetadata)
	if err != nil {
		return r.malformed(ev, err)
	}
	text := strings.TrimSpace(inputValue(ev.Callback.View.State, view.BlockReply, view.ActionReplyInput))
	if text == "" {
		return nil, workflow.Acknowledge{Response: slack.NewErrorsViewSubmissionResponse(map[string]string{
			view.BlockReply: msgEmptyReply,
		})}
	}
	return workflow.Reply(md.Ref(), ev.ActorID(), text).Effects, ack
}

// savePreferencesAction stores the home-tab checkboxes. Admin only; anyone
// else gets the blocking "Not Allowed" modal.
func (r *Router) savePreferencesAction(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge) {
	actor := ev.ActorID()
	if actor == "" {
		return r.malformed(ev, errs.Malformed("preference save without user"))
	}

	admin, err := r.isAdmin(ctx, actor)
	if err != nil || !admin {
		return []workflow.Effect{workflow.OpenModal{
			TriggerID: ev.Callback.TriggerID,
			Modal:     view.NotAllowedModal(),
		}}, ack
	}

	var selected []models.Category
	if st := ev.Callback.View.State; st != nil {
		for _, opt := range st.Values[view.BlockPreferences][view.ActionTogglePrefs].SelectedOptions {
			selected = append(selected, models.Category(opt.Value))
		}
	}
	return workflow.SavePreferences(actor, models.PreferencesFromCategories(selected)).Effects, ack
}

// transitionRejected turns a workflow refusal into a notice for the actor.
func (r *Router) transitionRejected(channel, actor string, state models.MessageState, err error) []workflow.Effect {
	switch {
	case errors.Is(err, workflow.ErrAlreadyAssigned):
		return ephemeral(channel, actor, alreadyAssignedText(*state.Assignment))
	case errors.Is(err, workflow.ErrTerminal):
		return ephemeral(channel, actor, decidedText(*state.Decision))
	case errors.Is(err, workflow.ErrNotApplication):
		return ephemeral(channel, actor, "Only applications take a decision.")
	}
	r.logger.Warn("transition rejected", zap.String("channel", channel), zap.Error(err))
	return ephemeral(channel, actor, msgUnreadable)
}

func selectedOption(state *slack.ViewState, blockID, actionID string) string {
	if state == nil {
		return ""
	}
	return state.Values[blockID][actionID].SelectedOption.Value
}

func inputValue(state *slack.ViewState, blockID, actionID string) string {
	if state == nil {
		return ""
	}
	return state.Values[blockID][actionID].Value
}
