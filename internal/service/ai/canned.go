package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/nilebyte/site/backend/internal/model/assistant"
	"github.com/nilebyte/site/backend/internal/model/chat"
)

type cannedTopic struct {
	keywords []string
	answer   string
}

var cannedTopics = []cannedTopic{
	{
		keywords: []string{"price", "pricing", "cost", "plan"},
		answer:   "Here are our plans:\n1. Basic\n2. Standard\n3. Enterprise\n\nTell me about your use case and I can suggest one.",
	},
	{
		keywords: []string{"voice", "call", "phone"},
		answer:   "Voice agents:\n1. Answer inbound calls around the clock\n2. Qualify leads and book appointments\n--\nWant a demo?",
	},
	{
		keywords: []string{"book", "demo", "meeting", "appointment"},
		answer:   "Booking a demo:\n1. Pick a time that suits you\n2. We review your workflows together\n3. You get a tailored automation plan",
	},
}

// CannedResponder answers from a fixed topic list. It stands in for the
// language model when no model credentials are configured.
type CannedResponder struct {
	profile assistant.Profile
}

// NewCannedResponder returns a responder speaking for profile.
func NewCannedResponder(profile assistant.Profile) *CannedResponder {
	return &CannedResponder{profile: profile}
}

// Reply matches userMessage against known topics.
func (r *CannedResponder) Reply(_ context.Context, _ string, _ []chat.Turn, userMessage string) (string, error) {
	normalized := strings.ToLower(userMessage)
	for _, topic := range cannedTopics {
		for _, kw := range topic.keywords {
			if strings.Contains(normalized, kw) {
				return topic.answer, nil
			}
		}
	}

	var b strings.Builder
	b.WriteString("I can help with:\n")
	for i, area := range r.profile.Expertise {
		fmt.Fprintf(&b, "%d. %s\n", i+1, area)
	}
	b.WriteString("\nWhich one interests you?")
	return b.String(), nil
}
