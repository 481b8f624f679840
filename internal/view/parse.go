package view

import (
	"regexp"
	"strings"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/slack-go/slack"
)

// Field is one recovered value. Found is false when the label was not in
// the message at all; an empty Value with Found set means the field was
// rendered empty.
type Field struct {
	Value string
	Found bool
}

// Or returns the value, or def when the field was not found.
func (f Field) Or(def string) string {
	if !f.Found {
		return def
	}
	return f.Value
}

// Source records which path recovered the state.
type Source int

const (
	SourceLabels Source = iota
	SourceMetadata
)

func (s Source) String() string {
	if s == SourceMetadata {
		return "metadata"
	}
	return "labels"
}

// Parsed is the best-effort recovery of a rendered lead.
type Parsed struct {
	Source     Source
	Ref        models.MessageRef
	Category   Field
	Name       Field
	FirstName  Field
	LastName   Field
	Email      Field
	Phone      Field
	Place      Field
	Body       Field
	Assignment *models.AssignmentInfo
	Decision   *models.Decision

	// Controls holds the action ids of every button still on the message.
	Controls map[string]bool
}

// HasControl reports whether a button with actionID is still rendered.
func (p Parsed) HasControl(actionID string) bool {
	return p.Controls[actionID]
}

// State assembles a MessageState. Fields that were not found are left
// empty; fallbackCategory is used when the category could not be read.
func (p Parsed) State(fallbackCategory models.Category) models.MessageState {
	category := models.Category(p.Category.Value)
	if !p.Category.Found || !category.Valid() {
		category = fallbackCategory
	}
	return models.MessageState{
		Ref:      p.Ref,
		Category: category,
		Contact: models.Contact{
			Name:      p.Name.Value,
			FirstName: p.FirstName.Value,
			LastName:  p.LastName.Value,
			Email:     p.Email.Value,
			Phone:     p.Phone.Value,
			Place:     p.Place.Value,
		},
		Body:       p.Body.Value,
		Assignment: p.Assignment,
		Decision:   p.Decision,
	}
}

var (
	assignmentPattern = regexp.MustCompile(`assigned by: <@([^>]*)>\s+to: <@([^>]*)>`)
	decisionPattern   = regexp.MustCompile(`^\*(Approved|Rejected|Accepted) by:? <@([^>]*)>\*$`)
)

// ParseMessage recovers lead state from a message Slack handed back.
//
// The versioned metadata record is authoritative when present and readable.
// Otherwise every field is located by its label prefix in the blocks; the
// first occurrence wins. Control buttons are always read from the blocks.
func ParseMessage(channel string, msg slack.Message) Parsed {
	p := Parsed{
		Source:   SourceLabels,
		Ref:      models.MessageRef{Channel: channel, TS: msg.Timestamp},
		Controls: map[string]bool{},
	}

	for _, block := range msg.Blocks.BlockSet {
		switch b := block.(type) {
		case *slack.SectionBlock:
			p.readSection(b)
		case *slack.ContextBlock:
			p.readContext(b)
		case *slack.ActionBlock:
			p.readActions(b)
		}
	}

	if rec, err := decodeState(msg.Metadata); err == nil {
		p.applyRecord(rec)
	}
	return p
}

func (p *Parsed) readSection(b *slack.SectionBlock) {
	for _, f := range b.Fields {
		if f == nil {
			continue
		}
		p.readLabeled(f.Text)
	}
	if b.Text == nil {
		return
	}
	text := strings.TrimSpace(b.Text.Text)
	if m := decisionPattern.FindStringSubmatch(text); m != nil && p.Decision == nil {
		p.Decision = &models.Decision{Outcome: models.Outcome(m[1]), By: m[2]}
		return
	}
	p.readLabeled(text)
}

func (p *Parsed) readLabeled(text string) {
	label, value, ok := strings.Cut(text, "\n")
	if !ok {
		return
	}
	var target *Field
	switch strings.TrimSpace(label) {
	case labelName:
		target = &p.Name
	case labelFirstName:
		target = &p.FirstName
	case labelLastName:
		target = &p.LastName
	case labelPhone:
		target = &p.Phone
	case labelEmail:
		target = &p.Email
	case labelPlace:
		target = &p.Place
	case labelChat, labelMessage:
		target = &p.Body
	default:
		return
	}
	if target.Found {
		return
	}
	*target = Field{Value: parseValue(value), Found: true}
}

func (p *Parsed) readContext(b *slack.ContextBlock) {
	for _, el := range b.ContextElements.Elements {
		t, ok := el.(*slack.TextBlockObject)
		if !ok {
			continue
		}
		if m := assignmentPattern.FindStringSubmatch(t.Text); m != nil {
			if p.Assignment == nil {
				p.Assignment = &models.AssignmentInfo{AssignedBy: m[1], AssignedTo: m[2]}
			}
			continue
		}
		if c, ok := categoryFromLabel(t.Text); ok && !p.Category.Found {
			p.Category = Field{Value: string(c), Found: true}
		}
	}
}

func (p *Parsed) readActions(b *slack.ActionBlock) {
	if b.Elements == nil {
		return
	}
	for _, el := range b.Elements.ElementSet {
		if btn, ok := el.(*slack.ButtonBlockElement); ok {
			p.Controls[btn.ActionID] = true
		}
	}
}

func (p *Parsed) applyRecord(rec stateRecord) {
	found := func(v string) Field { return Field{Value: v, Found: true} }
	p.Source = SourceMetadata
	p.Category = found(string(rec.Category))
	p.Name = found(rec.Contact.Name)
	p.FirstName = found(rec.Contact.FirstName)
	p.LastName = found(rec.Contact.LastName)
	p.Email = found(rec.Contact.Email)
	p.Phone = found(rec.Contact.Phone)
	p.Place = found(rec.Contact.Place)
	p.Body = found(rec.Body)
	p.Assignment = rec.Assignment
	p.Decision = rec.Decision
}
