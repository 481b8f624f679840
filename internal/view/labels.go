// Package view renders lead state into Slack Block Kit and recovers it from
// messages Slack hands back on later interactions.
package view

import (
	"strings"

	"github.com/lalith-99/leaddesk/internal/models"
)

// Action, callback and block identifiers shared with the interaction router.
const (
	ActionAssign          = "assign_to_user"
	ActionCountersign     = "countersign_application"
	ActionViewApplication = "view_application"
	ActionReply           = "reply_to_thread"
	ActionApprove         = "approve_application"
	ActionReject          = "reject_application"
	ActionSavePreferences = "open_preferences_modal"
	ActionOpenInWebsite   = "open_in_website"
	ActionTogglePrefs     = "toggle_preferences"

	CallbackAssign      = "assign_modal"
	CallbackReply       = "reply_modal"
	CallbackCountersign = "countersign_modal"

	BlockAssign       = "assign_block"
	ActionAssignInput = "assign_user_select"
	BlockReply        = "reply_block"
	ActionReplyInput  = "reply_input"
	BlockCountersign  = "countersign_block"
	ActionChoiceInput = "countersign_choice"
	BlockPreferences  = "preferences_section"

	blockCategory   = "lead_category"
	blockFields     = "lead_fields"
	blockBody       = "lead_body"
	blockNote       = "lead_note"
	blockAssignment = "lead_assignment"
	blockControls   = "lead_controls"
	blockDecision   = "lead_decision"
	blockReply      = "lead_reply"
)

// Field labels. Parsing locates values by these exact prefixes.
const (
	labelName      = "*Name:*"
	labelFirstName = "*First Name:*"
	labelLastName  = "*Last Name:*"
	labelPhone     = "*Phone #:*"
	labelEmail     = "*eMail:*"
	labelPlace     = "*Place:*"
	labelChat      = "*Chat:*"
	labelMessage   = "*Message:*"
)

// emptyValue stands in for a field that was rendered with no value, so an
// empty field is distinguishable from a missing label.
const emptyValue = "_not provided_"

// literalEmptyValue renders a real value that happens to read like
// emptyValue. The leading zero-width space keeps the two apart on the
// label path without changing what the reader sees.
const literalEmptyValue = "\u200b" + emptyValue

// CategoryLabel is the human label shown in the category context block.
func CategoryLabel(c models.Category) string {
	switch c {
	case models.CategoryChatLeads:
		return ":red_circle: Chat Leads"
	case models.CategoryScheduleTour:
		return ":orange_circle: Schedule a Tour"
	case models.CategoryApplications:
		return ":large_blue_circle: Application Review"
	}
	return string(c)
}

// categoryFromLabel is the inverse of CategoryLabel. Matching is by the
// distinctive words so older renderings without emoji still resolve.
func categoryFromLabel(text string) (models.Category, bool) {
	switch {
	case strings.Contains(text, "Chat Leads"):
		return models.CategoryChatLeads, true
	case strings.Contains(text, "Schedule a Tour"):
		return models.CategoryScheduleTour, true
	case strings.Contains(text, "Application Review"):
		return models.CategoryApplications, true
	}
	return "", false
}

// PreferenceLabel is the checkbox label for a category on the home tab.
func PreferenceLabel(c models.Category) string {
	switch c {
	case models.CategoryChatLeads:
		return "Enable Chat Leads"
	case models.CategoryScheduleTour:
		return "Enable Schedule a Tour"
	case models.CategoryApplications:
		return "Enable Applications"
	}
	return string(c)
}

var (
	escaper   = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	unescaper = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">")
)

// fieldValue normalizes and escapes a value for mrkdwn.
func fieldValue(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "":
		return emptyValue
	case emptyValue:
		return literalEmptyValue
	}
	return escaper.Replace(v)
}

// parseValue is the inverse of fieldValue.
func parseValue(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case emptyValue:
		return ""
	case literalEmptyValue:
		return emptyValue
	}
	return unescaper.Replace(v)
}

func mention(userID string) string {
	return "<@" + userID + ">"
}
