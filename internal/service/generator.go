package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omar-mostafa205/Planna/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const defaultGenerationTimeout = 90 * time.Second

// OpenRouterGenerator implements domain.PlanGenerator.
// It makes exactly one call per Generate and never retries or substitutes content.
type OpenRouterGenerator struct {
	client  *OpenRouterClient
	model   string
	timeout time.Duration
}

// NewOpenRouterGenerator creates the plan generator
func NewOpenRouterGenerator(client *OpenRouterClient, model string, timeout time.Duration) *OpenRouterGenerator {
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	return &OpenRouterGenerator{
		client:  client,
		model:   model,
		timeout: timeout,
	}
}

// Generate returns the model's raw JSON text for the prompt
func (g *OpenRouterGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	content, err := g.client.complete(ctx, "openrouter.generate_plan", openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty response from AI model", domain.ErrGenerationFailed)
	}

	return content, nil
}
