package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	openRouterReferer = "https://planna.app"
	openRouterTitle   = "Planna Meal Planner"
)

// OpenRouterClient is the chat-completions transport shared by the vision
// and plan adapters. It speaks the OpenAI wire format against OpenRouter.
type OpenRouterClient struct {
	client *openai.Client
	tracer trace.Tracer
}

// NewOpenRouterClient creates a client. Timeouts are applied per call by the
// adapters, so httpClient may be nil.
func NewOpenRouterClient(apiKey, baseURL string, httpClient *http.Client) *OpenRouterClient {
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	withHeaders := *httpClient
	withHeaders.Transport = &attributionTransport{next: transport}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = &withHeaders

	return &OpenRouterClient{
		client: openai.NewClientWithConfig(cfg),
		tracer: otel.Tracer("openrouter"),
	}
}

// complete sends one chat completion and returns the first choice's content
func (c *OpenRouterClient) complete(ctx context.Context, spanName string, req openai.ChatCompletionRequest) (string, error) {
	ctx, span := c.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("ai.model", req.Model)),
	)
	defer span.End()

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		err = describeAPIError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if len(resp.Choices) == 0 {
		err := errors.New("no response from AI model")
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(
		attribute.Int("ai.usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("ai.usage.completion_tokens", resp.Usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// describeAPIError flattens OpenRouter error payloads into one message
func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openrouter api error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openrouter request error (status %d): %w", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("failed to send request: %w", err)
}

// attributionTransport adds OpenRouter's optional app attribution headers
type attributionTransport struct {
	next http.RoundTripper
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("HTTP-Referer", openRouterReferer)
	req.Header.Set("X-Title", openRouterTitle)
	return t.next.RoundTrip(req)
}
