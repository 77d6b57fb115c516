package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/BradenHooton/stylebook/internal/models"
)

const captionPrompt = "Describe the person's hair in one short English sentence: length, texture " +
	"(straight, wavy or curly) and whether they have a beard. Do not describe anything else."

// Captioner describes the hair visible in an image data URL.
type Captioner interface {
	Caption(ctx context.Context, imageDataURL string) (string, error)
}

// ChatCompleter is the subset of the OpenAI client used for captioning.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAICaptioner captions images with a vision chat model behind a circuit breaker.
type OpenAICaptioner struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewOpenAICaptioner builds a captioner for apiKey. baseURL may point at any
// OpenAI-compatible endpoint; empty keeps the default.
func NewOpenAICaptioner(apiKey, baseURL, model string, timeout time.Duration, logger *slog.Logger) *OpenAICaptioner {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return NewOpenAICaptionerWithClient(openai.NewClientWithConfig(clientConfig), model, timeout, logger)
}

func NewOpenAICaptionerWithClient(client ChatCompleter, model string, timeout time.Duration, logger *slog.Logger) *OpenAICaptioner {
	return &OpenAICaptioner{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "ai-caption",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					slog.String("name", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		}),
	}
}

// Caption returns models.ErrTooBusy while the breaker is open.
func (c *OpenAICaptioner) Caption(ctx context.Context, imageDataURL string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: 120,
			Messages: []openai.ChatCompletionMessage{{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: captionPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    imageDataURL,
						Detail: openai.ImageURLDetailLow,
					}},
				},
			}},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("empty completion")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", models.ErrTooBusy
		}
		return "", fmt.Errorf("caption image: %w", err)
	}

	caption, _ := result.(string)
	if caption == "" {
		return "", errors.New("caption image: empty description")
	}
	return caption, nil
}
