package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is the closed classification of an inbound lead. It drives both
// routing (which control set the message gets) and per-user notification
// preferences.
type Category string

const (
	CategoryChatLeads    Category = "chat_leads"
	CategoryScheduleTour Category = "schedule_tour"
	CategoryApplications Category = "applications"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryChatLeads, CategoryScheduleTour, CategoryApplications}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryChatLeads, CategoryScheduleTour, CategoryApplications:
		return true
	}
	return false
}

// Outcome is the terminal decision recorded on an application.
type Outcome string

const (
	OutcomeApproved Outcome = "Approved"
	OutcomeRejected Outcome = "Rejected"
	OutcomeAccepted Outcome = "Accepted"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeApproved, OutcomeRejected, OutcomeAccepted:
		return true
	}
	return false
}

// MessageRef identifies a Slack message. Channel + TS is the composite key;
// neither changes for the life of the message.
type MessageRef struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

func (r MessageRef) Valid() bool {
	return r.Channel != "" && r.TS != ""
}

// Contact is the person who sent the lead.
type Contact struct {
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Place     string `json:"place,omitempty"`
}

// AssignmentInfo is the assignment annotation carried by a rendered message.
type AssignmentInfo struct {
	AssignedTo string `json:"assigned_to"`
	AssignedBy string `json:"assigned_by"`
}

// Decision is the terminal annotation on an application message.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	By      string  `json:"by"`
}

// MessageState is the logical lead being tracked. Between Slack callbacks it
// only survives inside the rendered message, so every field here is rendered.
//
// Invariants: Assignment, once set, is never replaced. Decision is set at most
// once and only for applications.
type MessageState struct {
	Ref        MessageRef      `json:"ref"`
	Category   Category        `json:"category"`
	Contact    Contact         `json:"contact"`
	Body       string          `json:"body,omitempty"`
	Assignment *AssignmentInfo `json:"assignment,omitempty"`
	Decision   *Decision       `json:"decision,omitempty"`
}

func (s MessageState) IsAssigned() bool {
	return s.Assignment != nil && s.Assignment.AssignedTo != ""
}

func (s MessageState) IsDecided() bool {
	return s.Decision != nil && s.Decision.Outcome != ""
}

// Preferences maps each category to whether the user wants it.
type Preferences struct {
	ChatLeads    bool `json:"chat_leads"`
	ScheduleTour bool `json:"schedule_tour"`
	Applications bool `json:"applications"`
}

// DefaultPreferences is what a lazily created profile starts with.
func DefaultPreferences() Preferences {
	return Preferences{ChatLeads: true, ScheduleTour: true, Applications: false}
}

// Enabled reports whether the category is switched on.
func (p Preferences) Enabled(c Category) bool {
	switch c {
	case CategoryChatLeads:
		return p.ChatLeads
	case CategoryScheduleTour:
		return p.ScheduleTour
	case CategoryApplications:
		return p.Applications
	}
	return false
}

// EnabledCategories returns the switched-on categories in display order.
func (p Preferences) EnabledCategories() []Category {
	out := make([]Category, 0, len(Categories))
	for _, c := range Categories {
		if p.Enabled(c) {
			out = append(out, c)
		}
	}
	return out
}

// PreferencesFromCategories builds Preferences from a list of enabled
// categories. Unknown values are ignored.
func PreferencesFromCategories(enabled []Category) Preferences {
	var p Preferences
	for _, c := range enabled {
		switch c {
		case CategoryChatLeads:
			p.ChatLeads = true
		case CategoryScheduleTour:
			p.ScheduleTour = true
		case CategoryApplications:
			p.Applications = true
		}
	}
	return p
}

// UserProfile is a Slack user known to the system. SlackID is unique.
// Exactly one profile is expected to have IsAdmin set; that is checked by
// query (see authz.Guard.GetAdmin), not by a constraint.
type UserProfile struct {
	SlackID     string      `json:"slack_id"`
	Name        string      `json:"name"`
	IsAdmin     bool        `json:"is_admin"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// DisplayName falls back to the Slack ID when no name is known.
func (u UserProfile) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.SlackID
}

// Assignment is the persisted record of a message being handed to a user.
// Created once per message, never updated or deleted.
type Assignment struct {
	ID         uuid.UUID `json:"id"`
	Channel    string    `json:"channel"`
	MessageTS  string    `json:"message_ts"`
	Category   Category  `json:"category"`
	AssignedTo string    `json:"assigned_to"`
	AssignedBy string    `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Lead is the log entry for a lead that the website posted through the API.
type Lead struct {
	ID        uuid.UUID `json:"id"`
	Channel   string    `json:"channel"`
	SlackTS   string    `json:"slack_ts"`
	Category  Category  `json:"category"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Place     string    `json:"place,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
