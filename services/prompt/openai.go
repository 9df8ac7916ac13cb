package prompt

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"travelagent/models"
)

// OpenAIExtractor asks a chat model for the trip fields in JSON mode.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

func NewOpenAIExtractor(apiKey, model string) *OpenAIExtractor {
	return NewOpenAIExtractorWithConfig(openai.DefaultConfig(apiKey), model)
}

func NewOpenAIExtractorWithConfig(cfg openai.ClientConfig, model string) *OpenAIExtractor {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIExtractor{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAIExtractor) Extract(ctx context.Context, text string, now time.Time) (models.TripQuery, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a travel booking assistant that turns requests into structured trip parameters.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: instruction(text, now),
			},
		},
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.TripQuery{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.TripQuery{}, fmt.Errorf("OpenAI API returned no choices")
	}
	return parseModelReply(resp.Choices[0].Message.Content)
}
