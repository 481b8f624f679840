package view

import (
	"encoding/json"
	"fmt"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/slack-go/slack"
)

// StateEventType is the metadata event type attached to every rendered lead.
const StateEventType = "lead_state"

// stateVersion is bumped whenever stateRecord changes shape. Decoders
// reject versions they do not know and fall back to label parsing.
const stateVersion = 1

// stateRecord is the schema of the metadata payload. The message reference
// is not part of it: Slack supplies channel and ts on every callback, and
// the ts is unknown when a lead is first rendered.
type stateRecord struct {
	Version    int                    `json:"v"`
	Category   models.Category        `json:"category"`
	Contact    models.Contact         `json:"contact"`
	Body       string                 `json:"body"`
	Assignment *models.AssignmentInfo `json:"assignment,omitempty"`
	Decision   *models.Decision       `json:"decision,omitempty"`
}

func encodeState(state models.MessageState) slack.SlackMetadata {
	rec := stateRecord{
		Version:    stateVersion,
		Category:   state.Category,
		Contact:    state.Contact,
		Body:       state.Body,
		Assignment: state.Assignment,
		Decision:   state.Decision,
	}

	// EventPayload is a generic map; go through JSON so the field names
	// match the struct tags exactly.
	payload := map[string]interface{}{}
	raw, err := json.Marshal(rec)
	if err == nil {
		err = json.Unmarshal(raw, &payload)
	}
	if err != nil {
		return slack.SlackMetadata{}
	}
	return slack.SlackMetadata{EventType: StateEventType, EventPayload: payload}
}

func decodeState(md slack.SlackMetadata) (stateRecord, error) {
	if md.EventType != StateEventType {
		return stateRecord{}, fmt.Errorf("metadata event type %q", md.EventType)
	}
	raw, err := json.Marshal(md.EventPayload)
	if err != nil {
		return stateRecord{}, fmt.Errorf("marshal metadata payload: %w", err)
	}
	var rec stateRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return stateRecord{}, fmt.Errorf("decode metadata payload: %w", err)
	}
	if rec.Version != stateVersion {
		return stateRecord{}, fmt.Errorf("unsupported state version %d", rec.Version)
	}
	if !rec.Category.Valid() {
		return stateRecord{}, fmt.Errorf("unknown category %q", rec.Category)
	}
	return rec, nil
}
