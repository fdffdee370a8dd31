package assistant

import (
	"fmt"
	"strings"
)

// DefaultName is the brand the assistant speaks for when none is configured.
const DefaultName = "Nilebyte"

// Profile captures the assistant attributes exposed to the page.
type Profile struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Welcome     string   `json:"welcome"`
	Placeholder string   `json:"placeholder"`
	PromptHint  string   `json:"promptHint,omitempty"`
	Expertise   []string `json:"expertise,omitempty"`
}

// Seed returns the profile of the site's automation assistant.
func Seed(name string) Profile {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}

	return Profile{
		Name:        name + " AI",
		Title:       "AI Automation Specialist",
		Welcome:     fmt.Sprintf("Hello! I'm %s AI assistant. How can I help with AI automation today?", name),
		Placeholder: "Ask about AI automation...",
		PromptHint:  "Keep answers short, list options as numbered items and group them under headers ending with a colon.",
		Expertise: []string{
			"AI chatbots",
			"workflow automation",
			"voice agents",
			"lead qualification",
			"appointment booking",
		},
	}
}
