package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/razim-manzoor/AI-Data-Analyst/config"
)

// Completer is the narrow text-completion capability the agents depend on.
// It is treated as an opaque, possibly slow, possibly failing remote call.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NewChatModel builds the eino chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg config.Config) (model.ChatModel, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.ModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model: %w", err)
	}
	return chatModel, nil
}

// einoCompleter adapts an eino ChatModel to the Completer contract, with a
// hard per-call timeout so a hung model call never runs in the background.
type einoCompleter struct {
	chatModel model.ChatModel
	timeout   time.Duration
}

// NewCompleter wraps a ChatModel with a per-call timeout.
func NewCompleter(chatModel model.ChatModel, timeout time.Duration) Completer {
	return &einoCompleter{chatModel: chatModel, timeout: timeout}
}

func (c *einoCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: prompt},
	}

	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
