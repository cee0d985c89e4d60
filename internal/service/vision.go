package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omar-mostafa205/Planna/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	visionSystemPrompt = "Extract body composition metrics from this InBody scan."
	visionUserPrompt   = "Extract these metrics: body fat %, muscle mass, water %, visceral fat, BMI"

	defaultVisionMaxTokens = 300
	defaultVisionTimeout   = 60 * time.Second
)

// OpenRouterVision implements domain.MetricExtractor with a vision-capable model
type OpenRouterVision struct {
	client    *OpenRouterClient
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenRouterVision creates the scan metric extractor
func NewOpenRouterVision(client *OpenRouterClient, model string, maxTokens int, timeout time.Duration) *OpenRouterVision {
	if maxTokens <= 0 {
		maxTokens = defaultVisionMaxTokens
	}
	if timeout <= 0 {
		timeout = defaultVisionTimeout
	}
	return &OpenRouterVision{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

// Extract asks the model for the scan's body-composition readings as free text
func (v *OpenRouterVision) Extract(ctx context.Context, img *domain.ProcessedImage) (string, error) {
	if img == nil {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	content, err := v.client.complete(ctx, "openrouter.vision", openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: visionSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionUserPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    img.DataURI,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens: v.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMetricExtractionFailed, err)
	}

	return strings.TrimSpace(content), nil
}
