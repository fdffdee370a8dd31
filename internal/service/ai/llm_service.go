package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/nilebyte/site/backend/internal/config"
	"github.com/nilebyte/site/backend/internal/logger"
	"github.com/nilebyte/site/backend/internal/model/assistant"
	"github.com/nilebyte/site/backend/internal/model/chat"
	chatservice "github.com/nilebyte/site/backend/internal/service/chat"
)

const historyLimit = 10

// Responder produces the assistant's answer to one visitor message.
type Responder interface {
	Reply(ctx context.Context, sessionID string, history []chat.Turn, userMessage string) (string, error)
}

// Service answers visitor messages through an eino chain over a chat model.
type Service struct {
	profile assistant.Profile
	chain   compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the chain from the Ark settings in cfg.
func NewService(ctx context.Context, profile assistant.Profile, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, profile, chatModel)
}

// NewServiceWithModel builds the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, profile assistant.Profile, chatModel model.ChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{profile: profile, chain: runnable}, nil
}

// Reply runs the chain for userMessage with the recent transcript as context.
func (s *Service) Reply(ctx context.Context, sessionID string, history []chat.Turn, userMessage string) (string, error) {
	input := map[string]any{
		"system":  BuildSystemPrompt(s.profile),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	logger.InfoCF("ai", "generated reply", map[string]interface{}{
		"session": sessionID,
		"length":  len(response.Content),
	})
	return response.Content, nil
}

func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	startIdx := 0
	if len(turns) > historyLimit {
		startIdx = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, len(turns)-startIdx)
	for _, turn := range turns[startIdx:] {
		switch turn.Sender {
		case chatservice.SenderUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chatservice.SenderAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return history
}
