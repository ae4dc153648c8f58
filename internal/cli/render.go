package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-spice-must-talk/internal/chat"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// RenderReply draws a reply in a box with a one-line metadata footer.
func RenderReply(reply *chat.Reply) string {
	icon := RobotIcon
	switch {
	case reply.Metadata.NeedsAuthentication:
		icon = LockIcon
	case reply.Metadata.IsFallback:
		icon = WarningIcon
	}

	header := AssistantStyle.Render(icon + " " + reply.ProviderID)
	body := lipgloss.JoinVertical(lipgloss.Left, header, reply.Text)
	return lipgloss.JoinVertical(lipgloss.Left,
		BoxStyle.Render(body),
		SubtleStyle.Render(ReplyFooter(reply)),
	)
}

// ReplyFooter summarizes reply metadata on one line.
func ReplyFooter(reply *chat.Reply) string {
	m := reply.Metadata
	parts := []string{
		fmt.Sprintf("intent=%s (%.2f)", m.Intent, m.Confidence),
		"type=" + string(m.ResponseType),
	}
	if len(m.Categories) > 0 {
		names := make([]string, len(m.Categories))
		for i, c := range m.Categories {
			names[i] = string(c)
		}
		parts = append(parts, "fetched="+strings.Join(names, ","))
	}
	if m.PIIMasked {
		parts = append(parts, "pii_masked")
	}
	if m.IsFallback {
		parts = append(parts, "fallback="+string(m.ErrorType))
	}
	if m.Cached {
		parts = append(parts, "cached")
	}
	return strings.Join(parts, " · ")
}

// RenderTurns lists a conversation, oldest first.
func RenderTurns(turns []model.Turn) string {
	if len(turns) == 0 {
		return SubtleStyle.Render("No conversation history.")
	}

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		label := UserStyle.Render("You")
		if t.Role == model.RoleAssistant {
			label = AssistantStyle.Render("Assistant")
		}
		stamp := ""
		if !t.CreatedAt.IsZero() {
			stamp = " " + SubtleStyle.Render(t.CreatedAt.Local().Format("Jan 02 15:04"))
		}
		fmt.Fprintf(&b, "%s%s\n%s\n", label, stamp, t.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
