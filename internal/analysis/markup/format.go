package markup

import (
	"regexp"
	"strings"

	"github.com/nilebyte/site/backend/internal/model/chat"
)

var numberedItem = regexp.MustCompile(`^\d+\.\s`)

// Classify 判断单行文本的展示类型。行与行之间互不影响。
func Classify(line string) chat.BlockKind {
	line = strings.TrimSpace(line)

	switch {
	case line == "":
		return chat.BlockSpacer
	case strings.HasSuffix(line, ":") && !strings.Contains(line, "--"):
		return chat.BlockHeader
	case strings.HasPrefix(line, "--"):
		return chat.BlockSeparator
	case numberedItem.MatchString(line):
		return chat.BlockNumberedItem
	default:
		return chat.BlockBody
	}
}

// Format 将机器人回复拆分为按行分类的展示块。
func Format(text string) []chat.Block {
	lines := strings.Split(text, "\n")
	blocks := make([]chat.Block, 0, len(lines))

	for _, line := range lines {
		kind := Classify(line)
		block := chat.Block{Kind: kind}
		if kind != chat.BlockSpacer {
			block.Text = strings.TrimSpace(line)
		}
		blocks = append(blocks, block)
	}

	return blocks
}
