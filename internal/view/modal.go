package view

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lalith-99/leaddesk/internal/errs"
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/slack-go/slack"
)

// Slack caps private_metadata at 3000 characters.
const maxPrivateMetadata = 3000

const modalMetadataVersion = 1

// ModalMetadata travels in a modal's private_metadata so the submission
// handler knows which message it belongs to and what the message looked
// like when the modal was opened.
type ModalMetadata struct {
	Version int                 `json:"v"`
	Channel string              `json:"channel"`
	TS      string              `json:"ts"`
	State   models.MessageState `json:"state"`
}

// Ref is the message the modal was opened from.
func (m ModalMetadata) Ref() models.MessageRef {
	return models.MessageRef{Channel: m.Channel, TS: m.TS}
}

// EncodeModalMetadata serializes state for private_metadata. When the
// encoding would exceed Slack's limit the body is cut down until it fits;
// truncated reports whether that happened.
func EncodeModalMetadata(state models.MessageState) (encoded string, truncated bool, err error) {
	md := ModalMetadata{
		Version: modalMetadataVersion,
		Channel: state.Ref.Channel,
		TS:      state.Ref.TS,
		State:   state,
	}
	md.State.Ref = models.MessageRef{}

	for {
		raw, err := json.Marshal(md)
		if err != nil {
			return "", false, fmt.Errorf("encode modal metadata: %w", err)
		}
		if len(raw) <= maxPrivateMetadata {
			return string(raw), truncated, nil
		}
		if md.State.Body == "" {
			return "", truncated, fmt.Errorf("modal metadata is %d bytes without a body", len(raw))
		}
		body := md.State.Body
		keep := len(body) - (len(raw) - maxPrivateMetadata)
		if keep < 0 {
			keep = 0
		}
		for keep > 0 && !utf8.RuneStart(body[keep]) {
			keep--
		}
		md.State.Body = body[:keep]
		truncated = true
	}
}

// DecodeModalMetadata is the inverse of EncodeModalMetadata. Unknown
// versions and a missing message identity are malformed events.
func DecodeModalMetadata(raw string) (ModalMetadata, error) {
	if raw == "" {
		return ModalMetadata{}, errs.Malformed("empty private metadata")
	}
	var md ModalMetadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return ModalMetadata{}, errs.Malformed("private metadata: %v", err)
	}
	if md.Version != modalMetadataVersion {
		return ModalMetadata{}, errs.Malformed("private metadata version %d", md.Version)
	}
	if md.Channel == "" || md.TS == "" {
		return ModalMetadata{}, errs.Malformed("private metadata without message identity")
	}
	md.State.Ref = md.Ref()
	return md, nil
}

// Candidate is one option in the assign modal.
type Candidate struct {
	SlackID string
	Name    string
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

// AssignModal lists the users who can take a lead of this category.
func AssignModal(state models.MessageState, candidates []Candidate, metadata string) slack.ModalViewRequest {
	options := make([]*slack.OptionBlockObject, 0, len(candidates))
	for _, c := range candidates {
		name := c.Name
		if name == "" {
			name = c.SlackID
		}
		options = append(options, slack.NewOptionBlockObject(c.SlackID, plain(name), nil))
	}
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Choose a user"), ActionAssignInput, options...)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackAssign,
		Title:           plain("Assign lead"),
		Submit:          plain("Assign"),
		Close:           plain("Cancel"),
		PrivateMetadata: metadata,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(markdown(fmt.Sprintf("%s from *%s*", CategoryLabel(state.Category), fieldValue(contactName(state.Contact)))), nil, nil),
			slack.NewInputBlock(BlockAssign, plain("Assign to"), nil, sel),
		}},
	}
}

// ReplyModal collects a thread reply.
func ReplyModal(metadata string) slack.ModalViewRequest {
	input := slack.NewPlainTextInputBlockElement(plain("Write your reply"), ActionReplyInput).WithMultiline(true)
	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackReply,
		Title:           plain("Reply"),
		Submit:          plain("Send"),
		Close:           plain("Cancel"),
		PrivateMetadata: metadata,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(BlockReply, plain("Reply"), nil, input),
		}},
	}
}

// CountersignModal offers the countersign outcomes.
func CountersignModal(state models.MessageState, metadata string) slack.ModalViewRequest {
	radio := slack.NewRadioButtonsBlockElement(ActionChoiceInput,
		slack.NewOptionBlockObject(string(models.OutcomeApproved), plain(string(models.OutcomeApproved)), nil),
		slack.NewOptionBlockObject(string(models.OutcomeRejected), plain(string(models.OutcomeRejected)), nil),
	)
	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackCountersign,
		Title:           plain("Countersign"),
		Submit:          plain("Submit"),
		Close:           plain("Cancel"),
		PrivateMetadata: metadata,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(markdown(fmt.Sprintf("Application from *%s*", fieldValue(contactName(state.Contact)))), nil, nil),
			slack.NewInputBlock(BlockCountersign, plain("Decision"), nil, radio),
		}},
	}
}

// ApplicationModal shows the whole application. websiteURL may be empty,
// in which case the link button is left out.
func ApplicationModal(state models.MessageState, websiteURL string) slack.ModalViewRequest {
	c := state.Contact
	fields := []*slack.TextBlockObject{
		markdown(labelFirstName + "\n" + fieldValue(c.FirstName)),
		markdown(labelLastName + "\n" + fieldValue(c.LastName)),
		markdown(labelEmail + "\n" + fieldValue(c.Email)),
		markdown(labelPhone + "\n" + fieldValue(c.Phone)),
		markdown(labelPlace + "\n" + fieldValue(c.Place)),
	}
	blocks := []slack.Block{
		slack.NewHeaderBlock(plain(contactName(c))),
		slack.NewSectionBlock(nil, fields, nil),
		slack.NewSectionBlock(markdown(labelMessage+"\n"+fieldValue(state.Body)), nil, nil),
	}
	if state.IsAssigned() {
		blocks = append(blocks, slack.NewContextBlock("", markdown(assignmentText(*state.Assignment))))
	}
	if state.IsDecided() {
		blocks = append(blocks, slack.NewSectionBlock(markdown(decisionText(*state.Decision)), nil, nil))
	}
	if websiteURL != "" {
		link := slack.NewButtonBlockElement(ActionOpenInWebsite, c.Email, plain("View in Website")).WithURL(websiteURL)
		blocks = append(blocks, slack.NewActionBlock("", link))
	}
	return slack.ModalViewRequest{
		Type:   slack.VTModal,
		Title:  plain("Application"),
		Close:  plain("Close"),
		Blocks: slack.Blocks{BlockSet: blocks},
	}
}

// NotAllowedModal is the blocking notice shown when a non-admin tries an
// admin-only action from the home tab.
func NotAllowedModal() slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:  slack.VTModal,
		Title: plain("Not Allowed"),
		Close: plain("OK"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(markdown("Only the admin can change preferences."), nil, nil),
		}},
	}
}

func contactName(c models.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	if full := strings.TrimSpace(c.FirstName + " " + c.LastName); full != "" {
		return full
	}
	return "anonymous"
}
