package tui

import (
	"strings"
	"testing"

	"github.com/nilebyte/site/backend/internal/analysis/markup"
	"github.com/nilebyte/site/backend/internal/model/chat"
)

func TestRenderBlocks(t *testing.T) {
	out := RenderBlocks(markup.Format("Step 1:\n1. Do X\n--\n\nDone"))
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "Step 1:") {
		t.Fatalf("header missing: %q", lines[0])
	}
	if !strings.Contains(lines[1], "  1. Do X") {
		t.Fatalf("numbered item should be indented: %q", lines[1])
	}
	if !strings.Contains(lines[2], "─") || strings.Contains(lines[2], "--") {
		t.Fatalf("separator should render as a rule: %q", lines[2])
	}
	if strings.TrimSpace(lines[3]) != "" {
		t.Fatalf("spacer should be blank: %q", lines[3])
	}
	if !strings.Contains(lines[4], "Done") {
		t.Fatalf("body missing: %q", lines[4])
	}
}

func TestRenderMessageUserIsVerbatim(t *testing.T) {
	out := RenderMessage(chat.UserMessage("Step 1:"), 60)
	if !strings.Contains(out, "Step 1:") {
		t.Fatalf("user text missing: %q", out)
	}
}

func TestRenderMessageBotUsesBlocks(t *testing.T) {
	out := RenderMessage(chat.BotMessage("Here are our plans:\n1. Basic\n2. Standard"), 60)
	for _, want := range []string{"Here are our plans:", "1. Basic", "2. Standard"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}
