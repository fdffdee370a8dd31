package chat

import "fmt"

// Role identifies who authored a widget message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleBot
}

// UnmarshalText rejects unknown roles so corrupt persisted logs are detected.
func (r *Role) UnmarshalText(text []byte) error {
	role := Role(text)
	if !role.Valid() {
		return fmt.Errorf("unknown message role %q", string(text))
	}
	*r = role
	return nil
}

// Message is a single chat turn shown in the widget. The JSON layout matches
// what the browser widget keeps in local storage.
type Message struct {
	Role Role   `json:"type"`
	Text string `json:"text"`
}

// UserMessage builds a message authored by the visitor.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// BotMessage builds a message authored by the assistant.
func BotMessage(text string) Message {
	return Message{Role: RoleBot, Text: text}
}
