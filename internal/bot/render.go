package bot

import (
	"regexp"

	"venuebot/internal/scheduling"

	"github.com/bwmarrin/discordgo"
)

const (
	colorOpen   = 0x3498db
	colorLocked = 0x95a5a6

	maxEmbedFields     = 25
	maxFieldValue      = 1024
	maxFieldName       = 256
	maxButtonsPerRow   = 5
	maxComponentRows   = 5
	maxButtonLabelSize = 80
)

func renderEmbed(view scheduling.PostView) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       truncateString(view.Title, maxFieldName),
		Description: truncateString(view.Description, 4096),
		Color:       colorOpen,
	}
	if view.Locked {
		embed.Color = colorLocked
	}
	if view.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: view.ImageURL}
	}
	for _, f := range view.Fields {
		if len(embed.Fields) == maxEmbedFields {
			break
		}
		value := f.Value
		if value == "" {
			value = "\u200b"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   truncateString(f.Name, maxFieldName),
			Value:  truncateString(value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	return embed
}

// renderComponents lays the signup buttons out in rows. Buttons are disabled
// when their position is full or the event is locked.
func renderComponents(view scheduling.PostView) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	var row []discordgo.MessageComponent
	for _, vb := range view.Buttons {
		style := discordgo.PrimaryButton
		if vb.Full {
			style = discordgo.SecondaryButton
		}
		row = append(row, discordgo.Button{
			Label:    truncateString(vb.Label, maxButtonLabelSize),
			Style:    style,
			Disabled: vb.Full || view.Locked,
			Emoji:    parseEmoji(vb.Emoji),
			CustomID: vb.CustomID,
		})
		if len(row) == maxButtonsPerRow {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
			if len(rows) == maxComponentRows {
				return rows
			}
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

var customEmoji = regexp.MustCompile(`^<(a?):([A-Za-z0-9_]+):(\d+)>$`)

// parseEmoji accepts a unicode emoji or a custom emoji like <:name:id>.
func parseEmoji(s string) discordgo.ComponentEmoji {
	if s == "" {
		return discordgo.ComponentEmoji{}
	}
	if m := customEmoji.FindStringSubmatch(s); m != nil {
		return discordgo.ComponentEmoji{Name: m[2], ID: m[3], Animated: m[1] == "a"}
	}
	return discordgo.ComponentEmoji{Name: s}
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
