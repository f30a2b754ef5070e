// Package llm wraps the two language-model backends the pipeline uses:
// AWS Bedrock (Claude) for editorial reasoning and Gemini for bulk
// classification and body cleaning.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockMessage represents a message in Bedrock format
type BedrockMessage struct {
	Role    string                `json:"role"`
	Content []BedrockContentBlock `json:"content"`
}

// BedrockContentBlock represents content in a message
type BedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// BedrockRequest is the request body for the Anthropic messages API on
// Bedrock
type BedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []BedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

// BedrockResponse is the response from Bedrock
type BedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// modelInvoker is the slice of the Bedrock runtime client we use,
// extracted so tests can substitute a fake.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Reasoner runs editorial prompts against Claude on Bedrock.
type Reasoner struct {
	client      modelInvoker
	modelID     string
	maxTokens   int
	temperature float64
	region      string
}

// NewReasoner creates a Bedrock-backed reasoner using the default AWS
// credential chain.
func NewReasoner(region, modelID string, maxTokens int, temperature float64) (*Reasoner, error) {
	ctx := context.Background()

	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if modelID == "" {
		modelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}

	r := &Reasoner{
		client:      bedrockruntime.NewFromConfig(cfg),
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		region:      region,
	}

	log.Printf("[LLM] Reasoner initialized with model=%s, region=%s", modelID, region)
	return r, nil
}

// SetInvoker allows overriding the Bedrock client (useful for testing)
func (r *Reasoner) SetInvoker(inv modelInvoker) {
	r.client = inv
}

// Complete sends one system+user prompt pair and returns the model's
// text output.
func (r *Reasoner) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	request := BedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        r.maxTokens,
		System:           systemPrompt,
		Messages: []BedrockMessage{
			{
				Role: "user",
				Content: []BedrockContentBlock{
					{Type: "text", Text: userPrompt},
				},
			},
		},
		Temperature: r.temperature,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := r.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(r.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return "", fmt.Errorf("Bedrock API error: %w", err)
	}

	var response BedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var text string
	for _, content := range response.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}

	log.Printf("[LLM] Completed prompt (in: %d tokens, out: %d tokens)",
		response.Usage.InputTokens, response.Usage.OutputTokens)

	return text, nil
}

// GetModelID returns the Bedrock model being used
func (r *Reasoner) GetModelID() string {
	return r.modelID
}
