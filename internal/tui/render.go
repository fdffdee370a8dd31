package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nilebyte/site/backend/internal/analysis/markup"
	"github.com/nilebyte/site/backend/internal/model/chat"
)

const separatorWidth = 12

// RenderMessage renders one log entry at the given line width. User text
// is shown verbatim on the right; bot text is laid out block by block.
func RenderMessage(msg chat.Message, width int) string {
	maxWidth := width * 80 / 100
	if maxWidth < 10 {
		maxWidth = 10
	}

	if msg.Role == chat.RoleUser {
		style := StyleUserBubble
		if lipgloss.Width(msg.Text) > maxWidth {
			style = style.Width(maxWidth)
		}
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, style.Render(msg.Text))
	}

	return StyleBotBubble.Width(maxWidth).Render(RenderBlocks(markup.Format(msg.Text)))
}

// RenderBlocks renders formatted bot blocks, one line each.
func RenderBlocks(blocks []chat.Block) string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, renderBlock(b))
	}
	return strings.Join(lines, "\n")
}

func renderBlock(b chat.Block) string {
	switch b.Kind {
	case chat.BlockHeader:
		return StyleHeader.Render(b.Text)
	case chat.BlockSeparator:
		return StyleSeparator.Render(strings.Repeat("─", separatorWidth))
	case chat.BlockNumberedItem:
		return StyleNumbered.Render(b.Text)
	case chat.BlockSpacer:
		return ""
	default:
		return b.Text
	}
}
