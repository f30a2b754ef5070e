package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type fakeInvoker struct {
	gotBody []byte
	text    string
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.gotBody = params.Body
	body, _ := json.Marshal(map[string]interface{}{
		"content": []map[string]string{{"type": "text", "text": f.text}},
		"usage":   map[string]int{"input_tokens": 10, "output_tokens": 5},
	})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func TestReasonerComplete(t *testing.T) {
	fake := &fakeInvoker{text: `{"selected_id": "rec1"}`}
	r := &Reasoner{
		client:      fake,
		modelID:     "anthropic.claude-3-5-sonnet-20241022-v2:0",
		maxTokens:   1024,
		temperature: 0.2,
	}

	got, err := r.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"selected_id": "rec1"}` {
		t.Errorf("Complete = %q", got)
	}

	var req BedrockRequest
	if err := json.Unmarshal(fake.gotBody, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req.AnthropicVersion != "bedrock-2023-05-31" {
		t.Errorf("anthropic_version = %q", req.AnthropicVersion)
	}
	if req.System != "system" {
		t.Errorf("system = %q", req.System)
	}
	if req.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d", req.MaxTokens)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", req.Messages)
	}
}
