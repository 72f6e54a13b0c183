// File path: internal/enrich/openai.go
package enrich

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"docverge/internal/common"
	"docverge/internal/diff"
)

const defaultSystemPrompt = "You review one change between two versions of a document. " +
	"Explain the change and its likely significance in two sentences or fewer."

// OpenAIProvider annotates change records through the chat completions API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if endpoint := strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")); endpoint != "" {
		common.Logger().Info("enrich: using custom OpenAI endpoint", "endpoint", endpoint)
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	model := strings.TrimSpace(os.Getenv("OPENAI_CHAT_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	common.Logger().Info("enrich: OpenAI provider configured", "model", model)
	return &OpenAIProvider{client: openai.NewClient(opts...), model: model}
}

func (p *OpenAIProvider) Annotate(ctx context.Context, rec diff.ChangeRecord, prompt string) (*Result, error) {
	system := defaultSystemPrompt
	if trimmed := strings.TrimSpace(prompt); trimmed != "" {
		system = trimmed
	}
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(describeRecord(rec)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, ErrUnavailable
	}
	return &Result{Provider: p.Name(), Text: text}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func describeRecord(rec diff.ChangeRecord) string {
	var b strings.Builder
	b.WriteString(rec.Proof)
	if rec.ContextBefore != "" {
		b.WriteString("\nContext before:\n")
		b.WriteString(rec.ContextBefore)
	}
	if rec.ContextAfter != "" {
		b.WriteString("\nContext after:\n")
		b.WriteString(rec.ContextAfter)
	}
	return b.String()
}
