package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"
)

// Retriever looks up the passages most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Source, error)
}

// Chain answers questions by retrieving passages and asking the chat model
// to answer from them.
type Chain struct {
	retriever Retriever
	topK      int
	runnable  compose.Runnable[map[string]any, *schema.Message]
}

// NewChain compiles the prompt and chat model into a runnable chain.
func NewChain(ctx context.Context, chatModel model.ChatModel, retriever Retriever, topK int) (*Chain, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if topK < 1 {
		topK = 1
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage(userPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile qa chain: %w", err)
	}

	return &Chain{
		retriever: retriever,
		topK:      topK,
		runnable:  runnable,
	}, nil
}

// Answer implements Gateway.
func (c *Chain) Answer(ctx context.Context, query string) (*Response, error) {
	sources, err := c.retriever.Retrieve(ctx, query, c.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	message, err := c.runnable.Invoke(ctx, map[string]any{
		"system":  systemPrompt,
		"context": formatContext(sources),
		"query":   query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run qa chain: %w", err)
	}

	response := &Response{Sources: sources}
	if message != nil {
		response.Result = strings.TrimSpace(message.Content)
	}

	klog.V(6).Infof("[qa] answered query, sources=%d, length=%d", len(sources), len(response.Result))
	return response, nil
}
