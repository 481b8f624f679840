package view

import (
	"fmt"
	"strings"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/slack-go/slack"
)

// HomeData is everything the home tab shows for one user.
type HomeData struct {
	IsAdmin     bool
	Preferences models.Preferences
	Assignments []models.Assignment
}

// RenderHome builds the App Home view.
func RenderHome(d HomeData) slack.HomeTabViewRequest {
	notice := "You are a regular user. Your preferences are managed by the admin."
	if d.IsAdmin {
		notice = "You are the *admin*. You can change which leads get routed and assign them to users."
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(plain("Lead Desk")),
		slack.NewSectionBlock(markdown(notice), nil, nil),
		slack.NewSectionBlock(markdown("Choose which lead categories you want to receive."), nil, nil),
		preferencesBlock(d.Preferences),
		slack.NewActionBlock("preferences_actions",
			button(ActionSavePreferences, "Save preferences", "", true)),
		slack.NewDividerBlock(),
		slack.NewHeaderBlock(plain("Your assignments")),
	}

	if len(d.Assignments) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(markdown("_No messages have been assigned to you yet._"), nil, nil))
	}
	for _, a := range d.Assignments {
		text := fmt.Sprintf("*%s*  <%s|View message>\nassigned by %s on %s",
			CategoryLabel(a.Category), MessageLink(a.Channel, a.MessageTS),
			mention(a.AssignedBy), a.AssignedAt.UTC().Format("Jan 2, 2006"))
		blocks = append(blocks, slack.NewSectionBlock(markdown(text), nil, nil))
	}

	return slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: blocks},
	}
}

func preferencesBlock(p models.Preferences) slack.Block {
	options := make([]*slack.OptionBlockObject, 0, len(models.Categories))
	var initial []*slack.OptionBlockObject
	for _, c := range models.Categories {
		opt := slack.NewOptionBlockObject(string(c), plain(PreferenceLabel(c)), nil)
		options = append(options, opt)
		if p.Enabled(c) {
			initial = append(initial, opt)
		}
	}
	boxes := slack.NewCheckboxGroupsBlockElement(ActionTogglePrefs, options...)
	boxes.InitialOptions = initial
	return slack.NewActionBlock(BlockPreferences, boxes)
}

// MessageLink is a web link to a channel message.
func MessageLink(channel, ts string) string {
	return fmt.Sprintf("https://slack.com/archives/%s/p%s", channel, strings.ReplaceAll(ts, ".", ""))
}
