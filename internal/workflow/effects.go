package workflow

import (
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/slack-go/slack"
)

// Effect is one outward action a transition asks for. Effects are plain
// data; the interaction executor performs them in order.
type Effect interface {
	// Name identifies the effect in logs.
	Name() string
}

// Acknowledge answers the inbound HTTP callback. Response is nil for a bare
// 200, or a view_submission response (field errors, clear).
type Acknowledge struct {
	Response *slack.ViewSubmissionResponse
}

// PersistAssignment writes the assignment record. A duplicate (the message
// already has a record) ends the effect sequence.
type PersistAssignment struct {
	Assignment models.Assignment
}

// PersistPreferences stores a user's category preferences.
type PersistPreferences struct {
	UserID      string
	Preferences models.Preferences
}

// UpdateView re-renders the message at State.Ref.
type UpdateView struct {
	State models.MessageState
}

// DirectMessage sends text to a user's DM channel.
type DirectMessage struct {
	UserID string
	Text   string
}

// ThreadReply posts text in the message's thread.
type ThreadReply struct {
	Ref  models.MessageRef
	Text string
}

// Ephemeral shows text to one user in a channel.
type Ephemeral struct {
	Channel string
	UserID  string
	Text    string
}

// OpenModal opens a modal against a trigger id.
type OpenModal struct {
	TriggerID string
	Modal     slack.ModalViewRequest
}

// PublishHome rebuilds and publishes a user's home tab.
type PublishHome struct {
	UserID string
}

// ForwardAssignment notifies the website of a new assignment.
type ForwardAssignment struct {
	Assignment models.Assignment
}

// NotifyApplicant DMs the applicant found by email, if any.
type NotifyApplicant struct {
	Email string
	Text  string
}

func (Acknowledge) Name() string        { return "acknowledge" }
func (PersistAssignment) Name() string  { return "persist_assignment" }
func (PersistPreferences) Name() string { return "persist_preferences" }
func (UpdateView) Name() string         { return "update_view" }
func (DirectMessage) Name() string      { return "direct_message" }
func (ThreadReply) Name() string        { return "thread_reply" }
func (Ephemeral) Name() string          { return "ephemeral" }
func (OpenModal) Name() string          { return "open_modal" }
func (PublishHome) Name() string        { return "publish_home" }
func (ForwardAssignment) Name() string  { return "forward_assignment" }
func (NotifyApplicant) Name() string    { return "notify_applicant" }
