package ai

import (
	"fmt"
	"strings"

	"github.com/nilebyte/site/backend/internal/model/assistant"
)

// BuildSystemPrompt 根据助手资料生成系统提示词。
func BuildSystemPrompt(profile assistant.Profile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, the %s on the company website.\n", profile.Name, profile.Title)
	b.WriteString("You help visitors understand how AI automation can work for their business.\n")

	if len(profile.Expertise) > 0 {
		b.WriteString("\nAreas you cover:\n")
		for _, area := range profile.Expertise {
			b.WriteString("- ")
			b.WriteString(area)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nFormatting rules (the widget renders replies line by line):\n")
	b.WriteString("- A line ending with a colon is shown as a section header.\n")
	b.WriteString("- Lines like \"1. Item\" are shown as numbered items.\n")
	b.WriteString("- A line starting with -- is shown as a divider.\n")
	b.WriteString("- Blank lines add vertical space.\n")

	if profile.PromptHint != "" {
		b.WriteString("\n")
		b.WriteString(profile.PromptHint)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nThe visitor was greeted with: %q", profile.Welcome)
	return b.String()
}
