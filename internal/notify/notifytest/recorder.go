// Package notifytest provides an in-memory Slack API for tests.
package notifytest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/slack-go/slack"
)

// Call is one recorded Slack API call.
type Call struct {
	Method    string
	Channel   string
	User      string
	TS        string
	TriggerID string
	Values    url.Values
	Modal     *slack.ModalViewRequest
	Home      *slack.HomeTabViewRequest
}

// Recorder implements notify.SlackAPI. Message options are applied through
// slack.UnsafeApplyMsgOptions so tests can inspect the form values Slack
// would have received.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	seq   int

	// Fail makes the named method return an error.
	Fail map[string]error
	// Emails maps an email to the member id users.lookupByEmail returns.
	Emails map[string]string
	// Users backs users.info.
	Users map[string]slack.User
	// Members backs conversations.members.
	Members []string

	// messages holds the current version of every lead message, keyed by
	// channel and ts. Posts and updates keep it current.
	messages map[string]slack.Message
}

func New() *Recorder {
	return &Recorder{
		Fail:   map[string]error{},
		Emails: map[string]string{},
		Users:  map[string]slack.User{},

		messages: map[string]slack.Message{},
	}
}

func messageKey(channel, ts string) string { return channel + "/" + ts }

// Seed stores msg as the current message at channel/msg.Timestamp, as if it
// had been posted earlier.
func (r *Recorder) Seed(channel string, msg slack.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[messageKey(channel, msg.Timestamp)] = msg
}

// keep stores the message a successful post or update produced. Thread
// replies and plain-text posts are not lead messages.
func (r *Recorder) keep(c Call) {
	if c.Values.Get("blocks") == "" || c.Values.Get("thread_ts") != "" {
		return
	}
	msg, err := c.Message()
	if err != nil {
		return
	}
	r.Seed(c.Channel, msg)
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.Fail[c.Method]
}

func (r *Recorder) nextTS() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("1700000000.%06d", r.seq)
}

// Calls returns a copy of every recorded call, in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Methods returns the recorded method names, in order.
func (r *Recorder) Methods() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Method)
	}
	return out
}

// Find returns the recorded calls to method.
func (r *Recorder) Find(method string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func values(channel string, options []slack.MsgOption) url.Values {
	_, v, err := slack.UnsafeApplyMsgOptions("token", channel, "https://slack.com/api/", options...)
	if err != nil {
		return url.Values{}
	}
	return v
}

func (r *Recorder) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	ts := r.nextTS()
	c := Call{Method: "chat.postMessage", Channel: channelID, TS: ts, Values: values(channelID, options)}
	err := r.record(c)
	if err == nil {
		r.keep(c)
	}
	return channelID, ts, err
}

func (r *Recorder) UpdateMessageContext(_ context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	c := Call{Method: "chat.update", Channel: channelID, TS: timestamp, Values: values(channelID, options)}
	err := r.record(c)
	if err == nil {
		r.keep(c)
	}
	return channelID, timestamp, "", err
}

func (r *Recorder) PostEphemeralContext(_ context.Context, channelID, userID string, options ...slack.MsgOption) (string, error) {
	err := r.record(Call{Method: "chat.postEphemeral", Channel: channelID, User: userID, Values: values(channelID, options)})
	return r.nextTS(), err
}

func (r *Recorder) OpenViewContext(_ context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error) {
	if err := r.record(Call{Method: "views.open", TriggerID: triggerID, Modal: &view}); err != nil {
		return nil, err
	}
	return &slack.ViewResponse{}, nil
}

func (r *Recorder) PublishViewContext(_ context.Context, req slack.PublishViewContextRequest) (*slack.ViewResponse, error) {
	home := req.View
	if err := r.record(Call{Method: "views.publish", User: req.UserID, Home: &home}); err != nil {
		return nil, err
	}
	return &slack.ViewResponse{}, nil
}

func (r *Recorder) OpenConversationContext(_ context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error) {
	user := ""
	if len(params.Users) > 0 {
		user = params.Users[0]
	}
	if err := r.record(Call{Method: "conversations.open", User: user}); err != nil {
		return nil, false, false, err
	}
	ch := &slack.Channel{}
	ch.ID = "D" + user
	return ch, false, false, nil
}

func (r *Recorder) GetUserByEmailContext(_ context.Context, email string) (*slack.User, error) {
	if err := r.record(Call{Method: "users.lookupByEmail", Values: url.Values{"email": {email}}}); err != nil {
		return nil, err
	}
	id, ok := r.Emails[email]
	if !ok {
		return nil, slack.SlackErrorResponse{Err: "users_not_found"}
	}
	return &slack.User{ID: id}, nil
}

func (r *Recorder) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	if err := r.record(Call{Method: "users.info", User: user}); err != nil {
		return nil, err
	}
	u, ok := r.Users[user]
	if !ok {
		return nil, slack.SlackErrorResponse{Err: "user_not_found"}
	}
	return &u, nil
}

func (r *Recorder) GetUsersInConversationContext(_ context.Context, params *slack.GetUsersInConversationParameters) ([]string, string, error) {
	if err := r.record(Call{Method: "conversations.members", Channel: params.ChannelID}); err != nil {
		return nil, "", err
	}
	return append([]string(nil), r.Members...), "", nil
}

// GetConversationHistoryContext serves the stored message at params.Latest.
// An unknown ts yields an empty page, as Slack does.
func (r *Recorder) GetConversationHistoryContext(_ context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	if err := r.record(Call{Method: "conversations.history", Channel: params.ChannelID, TS: params.Latest}); err != nil {
		return nil, err
	}
	resp := &slack.GetConversationHistoryResponse{}
	resp.Ok = true
	r.mu.Lock()
	msg, ok := r.messages[messageKey(params.ChannelID, params.Latest)]
	r.mu.Unlock()
	if ok {
		resp.Messages = []slack.Message{msg}
	}
	return resp, nil
}

// Message rebuilds the message a chat.postMessage or chat.update call
// would have produced, as Slack would hand it back on the next callback.
func (c Call) Message() (slack.Message, error) {
	msg := slack.Message{}
	msg.Timestamp = c.TS
	msg.Text = c.Values.Get("text")
	if raw := c.Values.Get("blocks"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &msg.Blocks); err != nil {
			return slack.Message{}, fmt.Errorf("decode blocks: %w", err)
		}
	}
	if raw := c.Values.Get("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &msg.Metadata); err != nil {
			return slack.Message{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return msg, nil
}
