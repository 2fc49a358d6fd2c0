package anthropic

import (
	"encoding/json"
	"testing"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/agentchat/internal/provider"
)

func TestSplitSystemMessages(t *testing.T) {
	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleSystem, Content: "You are a helpful AI assistant."},
		{Role: provider.MessageRoleUser, Content: "Hello"},
	}

	system, rest := splitSystemMessages(msgs)

	if len(system) != 1 || system[0].Text != "You are a helpful AI assistant." {
		t.Fatalf("system = %+v", system)
	}
	if len(rest) != 1 || rest[0].Role != provider.MessageRoleUser {
		t.Fatalf("rest = %+v", rest)
	}
}

func TestConvertMessages_DropsLateSystemAndEmptyAssistant(t *testing.T) {
	msgs := []provider.LLMMessage{
		{Role: provider.MessageRoleUser, Content: "Hello"},
		{Role: provider.MessageRoleSystem, Content: "late"},
		{Role: provider.MessageRoleAssistant, Content: ""},
		{Role: provider.MessageRoleAssistant, Content: "Hi there"},
	}

	result := convertMessages(msgs, nil)

	if len(result) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result))
	}
	if result[0].Role != sdkanthropic.MessageParamRoleUser {
		t.Errorf("result[0].Role = %q", result[0].Role)
	}
	if result[1].Role != sdkanthropic.MessageParamRoleAssistant {
		t.Errorf("result[1].Role = %q", result[1].Role)
	}
}

func TestConvertResponse_Blocks(t *testing.T) {
	msg := &sdkanthropic.Message{
		Content: []sdkanthropic.ContentBlockUnion{
			textBlock("I'll search "),
			toolUseBlock("tc1", "search", `{"q":"test"}`),
			textBlock("for that"),
		},
		StopReason: sdkanthropic.StopReasonToolUse,
		Usage:      sdkanthropic.Usage{InputTokens: 15, OutputTokens: 8},
	}

	resp := convertResponse(msg)

	blocks, ok := resp.Content.(provider.BlockContent)
	if !ok {
		t.Fatalf("Content = %#v, want BlockContent", resp.Content)
	}
	if len(blocks) != 3 {
		t.Fatalf("len(blocks) = %d, want 3", len(blocks))
	}
	if blocks[0].Type != provider.BlockText || blocks[0].Text != "I'll search " {
		t.Errorf("blocks[0] = %+v", blocks[0])
	}
	if blocks[1].Type != provider.BlockToolUse || blocks[1].Name != "search" {
		t.Errorf("blocks[1] = %+v", blocks[1])
	}
	if blocks[2].Text != "for that" {
		t.Errorf("blocks[2] = %+v", blocks[2])
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "search" || resp.ToolCalls[0].ID != "tc1" {
		t.Errorf("ToolCalls = %+v", resp.ToolCalls)
	}
	if resp.FinishReason != provider.FinishReasonToolUse {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 23 {
		t.Errorf("TotalTokens = %d, want 23", resp.Usage.TotalTokens)
	}
}

func TestConvertResponse_Empty(t *testing.T) {
	resp := convertResponse(&sdkanthropic.Message{StopReason: sdkanthropic.StopReasonEndTurn})

	blocks, ok := resp.Content.(provider.BlockContent)
	if !ok || len(blocks) != 0 {
		t.Errorf("Content = %#v, want empty BlockContent", resp.Content)
	}
}

func TestConvertStopReason(t *testing.T) {
	tests := []struct {
		input    sdkanthropic.StopReason
		expected provider.FinishReason
	}{
		{sdkanthropic.StopReasonEndTurn, provider.FinishReasonStop},
		{sdkanthropic.StopReasonStopSequence, provider.FinishReasonStop},
		{sdkanthropic.StopReasonMaxTokens, provider.FinishReasonLength},
		{sdkanthropic.StopReasonToolUse, provider.FinishReasonToolUse},
		{sdkanthropic.StopReasonRefusal, provider.FinishReasonFiltering},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := convertStopReason(tt.input); got != tt.expected {
				t.Errorf("convertStopReason(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestConvertRequest(t *testing.T) {
	cfg := &Config{Model: "claude-sonnet-4-5-20250929", MaxTokens: 4096}
	temp := 0.5
	req := provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleSystem, Content: "sys"},
			{Role: provider.MessageRoleUser, Content: "Hello"},
		},
		Temperature: &temp,
	}

	params := convertRequest(req, cfg, nil)

	if params.MaxTokens != 4096 {
		t.Errorf("max_tokens = %d, want 4096", params.MaxTokens)
	}
	if string(params.Model) != "claude-sonnet-4-5-20250929" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.System) != 1 || len(params.Messages) != 1 {
		t.Errorf("system=%d messages=%d, want 1 and 1", len(params.System), len(params.Messages))
	}

	req.MaxTokens = 8192
	if got := convertRequest(req, cfg, nil).MaxTokens; got != 8192 {
		t.Errorf("max_tokens override = %d, want 8192", got)
	}
}

func textBlock(text string) sdkanthropic.ContentBlockUnion {
	raw := `{"type":"text","text":` + jsonString(text) + `}`
	var block sdkanthropic.ContentBlockUnion
	_ = json.Unmarshal([]byte(raw), &block)
	return block
}

func toolUseBlock(id, name, input string) sdkanthropic.ContentBlockUnion {
	raw := `{"type":"tool_use","id":` + jsonString(id) + `,"name":` + jsonString(name) + `,"input":` + input + `}`
	var block sdkanthropic.ContentBlockUnion
	_ = json.Unmarshal([]byte(raw), &block)
	return block
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
