// Package notify sends everything the service says in Slack: lead messages
// and their updates, DMs, thread replies, ephemerals, modals and home tabs.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/lalith-99/leaddesk/internal/errs"
	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/view"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackAPI is the subset of *slack.Client the dispatcher uses, so tests can
// substitute a recorder.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
	PublishViewContext(ctx context.Context, req slack.PublishViewContextRequest) (*slack.ViewResponse, error)
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
	GetUserByEmailContext(ctx context.Context, email string) (*slack.User, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetUsersInConversationContext(ctx context.Context, params *slack.GetUsersInConversationParameters) ([]string, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
}

var _ SlackAPI = (*slack.Client)(nil)

type Dispatcher struct {
	api    SlackAPI
	logger *zap.Logger
}

func NewDispatcher(api SlackAPI, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{api: api, logger: logger}
}

// PostLead renders a new lead into channel and returns the message ts.
func (d *Dispatcher) PostLead(ctx context.Context, channel string, state models.MessageState) (string, error) {
	_, ts, err := d.api.PostMessageContext(ctx, channel, view.RenderMessage(state, false).Options()...)
	if err != nil {
		return "", errs.Upstream("chat.postMessage", err)
	}
	return ts, nil
}

// UpdateLead re-renders the message at state.Ref.
func (d *Dispatcher) UpdateLead(ctx context.Context, state models.MessageState) error {
	if !state.Ref.Valid() {
		return errs.Malformed("update without message identity")
	}
	_, _, _, err := d.api.UpdateMessageContext(ctx, state.Ref.Channel, state.Ref.TS, view.RenderMessage(state, false).Options()...)
	return errs.Upstream("chat.update", err)
}

// FetchLead returns the message at ref as it is now, metadata included.
// A message that no longer exists is ErrNotFound.
func (d *Dispatcher) FetchLead(ctx context.Context, ref models.MessageRef) (slack.Message, error) {
	if !ref.Valid() {
		return slack.Message{}, errs.Malformed("fetch without message identity")
	}
	resp, err := d.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID:          ref.Channel,
		Latest:             ref.TS,
		Oldest:             ref.TS,
		Inclusive:          true,
		Limit:              1,
		IncludeAllMetadata: true,
	})
	if err != nil {
		return slack.Message{}, errs.Upstream("conversations.history", err)
	}
	for _, msg := range resp.Messages {
		if msg.Timestamp == ref.TS {
			return msg, nil
		}
	}
	return slack.Message{}, fmt.Errorf("%w: message %s/%s", errs.ErrNotFound, ref.Channel, ref.TS)
}

// DirectMessage opens (or reuses) the IM with userID and posts text.
func (d *Dispatcher) DirectMessage(ctx context.Context, userID, text string) error {
	ch, _, _, err := d.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return errs.Upstream("conversations.open", err)
	}
	_, _, err = d.api.PostMessageContext(ctx, ch.ID, slack.MsgOptionText(text, false))
	return errs.Upstream("chat.postMessage", err)
}

// ThreadReply posts text under the message at ref.
func (d *Dispatcher) ThreadReply(ctx context.Context, ref models.MessageRef, text string) error {
	_, _, err := d.api.PostMessageContext(ctx, ref.Channel, slack.MsgOptionText(text, false), slack.MsgOptionTS(ref.TS))
	return errs.Upstream("chat.postMessage", err)
}

// Ephemeral shows text to userID only.
func (d *Dispatcher) Ephemeral(ctx context.Context, channel, userID, text string) error {
	_, err := d.api.PostEphemeralContext(ctx, channel, userID, slack.MsgOptionText(text, false))
	return errs.Upstream("chat.postEphemeral", err)
}

func (d *Dispatcher) OpenModal(ctx context.Context, triggerID string, modal slack.ModalViewRequest) error {
	_, err := d.api.OpenViewContext(ctx, triggerID, modal)
	return errs.Upstream("views.open", err)
}

func (d *Dispatcher) PublishHome(ctx context.Context, userID string, home slack.HomeTabViewRequest) error {
	_, err := d.api.PublishViewContext(ctx, slack.PublishViewContextRequest{UserID: userID, View: home})
	return errs.Upstream("views.publish", err)
}

// NotifyByEmail DMs the workspace member registered under email. A missing
// member is ErrNotFound.
func (d *Dispatcher) NotifyByEmail(ctx context.Context, email, text string) error {
	u, err := d.api.GetUserByEmailContext(ctx, email)
	if err != nil {
		var slackErr slack.SlackErrorResponse
		if errors.As(err, &slackErr) && slackErr.Err == "users_not_found" {
			return fmt.Errorf("%w: no member with email %s", errs.ErrNotFound, email)
		}
		return errs.Upstream("users.lookupByEmail", err)
	}
	return d.DirectMessage(ctx, u.ID, text)
}

// UserName returns the best display name Slack has for userID.
func (d *Dispatcher) UserName(ctx context.Context, userID string) (string, error) {
	u, err := d.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", errs.Upstream("users.info", err)
	}
	switch {
	case u.Profile.DisplayName != "":
		return u.Profile.DisplayName, nil
	case u.RealName != "":
		return u.RealName, nil
	}
	return u.Name, nil
}

// ChannelMembers pages through every member of channel.
func (d *Dispatcher) ChannelMembers(ctx context.Context, channel string) ([]string, error) {
	params := &slack.GetUsersInConversationParameters{ChannelID: channel, Limit: 200}
	members := make([]string, 0)
	for {
		page, cursor, err := d.api.GetUsersInConversationContext(ctx, params)
		if err != nil {
			return nil, errs.Upstream("conversations.members", err)
		}
		members = append(members, page...)
		if cursor == "" {
			return members, nil
		}
		params.Cursor = cursor
	}
}
