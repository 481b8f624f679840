package view

import (
	"fmt"
	"strings"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/slack-go/slack"
)

// Message is a rendered lead: the blocks users see, the notification
// fallback text, and the versioned state record attached as message
// metadata.
type Message struct {
	Blocks   []slack.Block
	Text     string
	Metadata slack.SlackMetadata
}

// Options turns the rendering into chat.postMessage / chat.update options.
func (m Message) Options() []slack.MsgOption {
	return []slack.MsgOption{
		slack.MsgOptionBlocks(m.Blocks...),
		slack.MsgOptionText(m.Text, false),
		slack.MsgOptionMetadata(m.Metadata),
	}
}

// RenderMessage renders state into a Slack message. It is pure and
// deterministic. viewerIsAdmin only changes button styling; nothing that
// ParseMessage reads depends on it.
//
// Once a decision is recorded the assign and countersign controls are
// replaced by the decision annotation and are never rendered again.
func RenderMessage(state models.MessageState, viewerIsAdmin bool) Message {
	blocks := []slack.Block{
		slack.NewContextBlock(blockCategory,
			slack.NewTextBlockObject(slack.MarkdownType, "*"+CategoryLabel(state.Category)+"*", false, false)),
		slack.NewSectionBlock(nil, contactFields(state), nil, slack.SectionBlockOptionBlockID(blockFields)),
	}

	bodyLabel := labelChat
	if state.Category == models.CategoryApplications {
		bodyLabel = labelMessage
	}
	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, bodyLabel+"\n"+fieldValue(state.Body), false, false),
		nil, nil, slack.SectionBlockOptionBlockID(blockBody)))

	if state.Category == models.CategoryApplications {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "Full application can be viewed by clicking the following link:", false, false),
			nil, nil, slack.SectionBlockOptionBlockID(blockNote)))
	}

	if state.IsAssigned() {
		blocks = append(blocks, slack.NewContextBlock(blockAssignment,
			slack.NewTextBlockObject(slack.MarkdownType, assignmentText(*state.Assignment), false, false)))
	}

	if controls := controlButtons(state, viewerIsAdmin); len(controls) > 0 {
		blocks = append(blocks, slack.NewActionBlock(blockControls, controls...))
	}
	if state.IsDecided() {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, decisionText(*state.Decision), false, false),
			nil, nil, slack.SectionBlockOptionBlockID(blockDecision)))
	}

	blocks = append(blocks, slack.NewActionBlock(blockReply,
		button(ActionReply, "Reply", state.Contact.Email, true)))

	return Message{
		Blocks:   blocks,
		Text:     fallbackText(state),
		Metadata: encodeState(state),
	}
}

func contactFields(state models.MessageState) []*slack.TextBlockObject {
	c := state.Contact
	pairs := [][2]string{{labelName, c.Name}}
	if state.Category == models.CategoryApplications {
		pairs = append(pairs, [2]string{labelFirstName, c.FirstName}, [2]string{labelLastName, c.LastName})
	}
	pairs = append(pairs,
		[2]string{labelPhone, c.Phone},
		[2]string{labelEmail, c.Email},
		[2]string{labelPlace, c.Place},
	)

	fields := make([]*slack.TextBlockObject, 0, len(pairs))
	for _, p := range pairs {
		fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, p[0]+"\n"+fieldValue(p[1]), false, false))
	}
	return fields
}

// controlButtons returns the stage-dependent control set. The reply control
// lives in its own block and is not part of this set.
func controlButtons(state models.MessageState, viewerIsAdmin bool) []slack.BlockElement {
	email := state.Contact.Email
	var out []slack.BlockElement

	if state.Category == models.CategoryApplications {
		out = append(out, button(ActionViewApplication, "See full application", email, true))
		if state.IsDecided() {
			return out
		}
		out = append(out, button(ActionCountersign, "please countersign ...", email, true))
		if !state.IsAssigned() {
			out = append(out, button(ActionAssign, "Assign to...", email, viewerIsAdmin))
		}
		return out
	}

	if !state.IsAssigned() && !state.IsDecided() {
		out = append(out, button(ActionAssign, "assign chat lead to ...", email, viewerIsAdmin))
	}
	return out
}

func button(actionID, label, value string, primary bool) *slack.ButtonBlockElement {
	b := slack.NewButtonBlockElement(actionID, value, slack.NewTextBlockObject(slack.PlainTextType, label, false, false))
	if primary {
		b = b.WithStyle(slack.StylePrimary)
	}
	return b
}

func assignmentText(a models.AssignmentInfo) string {
	return fmt.Sprintf("assigned by: %s  to: %s", mention(a.AssignedBy), mention(a.AssignedTo))
}

func decisionText(d models.Decision) string {
	return fmt.Sprintf("*%s by: %s*", d.Outcome, mention(d.By))
}

func fallbackText(state models.MessageState) string {
	text := fmt.Sprintf("%s from %s (%s): %s", CategoryLabel(state.Category), contactName(state.Contact), state.Contact.Email, strings.TrimSpace(state.Body))
	if state.IsDecided() {
		text += fmt.Sprintf(" [%s by: %s]", state.Decision.Outcome, mention(state.Decision.By))
	}
	return text
}
