package chat

// BlockKind classifies one rendered line of a bot reply.
type BlockKind string

const (
	BlockHeader       BlockKind = "header"
	BlockSeparator    BlockKind = "separator"
	BlockNumberedItem BlockKind = "numbered"
	BlockSpacer       BlockKind = "spacer"
	BlockBody         BlockKind = "body"
)

// Block is a display unit derived from a single line of text.
type Block struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text,omitempty"`
}
