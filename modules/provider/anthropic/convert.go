package anthropic

import (
	"encoding/json"
	"log/slog"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/agentchat/internal/provider"
)

// convertRequest builds Messages API parameters. Leading system messages
// move to the dedicated System field.
func convertRequest(req provider.CompletionRequest, cfg *Config, logger *slog.Logger) sdkanthropic.MessageNewParams {
	system, messages := splitSystemMessages(req.Messages)

	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(cfg.Model),
		Messages:  convertMessages(messages, logger),
		System:    system,
		MaxTokens: int64(cfg.MaxTokens),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = sdkanthropic.Float(*req.TopP)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	return params
}

func splitSystemMessages(msgs []provider.LLMMessage) ([]sdkanthropic.TextBlockParam, []provider.LLMMessage) {
	var system []sdkanthropic.TextBlockParam
	idx := 0
	for ; idx < len(msgs) && msgs[idx].Role == provider.MessageRoleSystem; idx++ {
		system = append(system, sdkanthropic.TextBlockParam{Text: msgs[idx].Content})
	}
	return system, msgs[idx:]
}

// convertMessages maps user and assistant turns. System messages after the
// first non-system message are dropped; the API only accepts them up front.
func convertMessages(msgs []provider.LLMMessage, logger *slog.Logger) []sdkanthropic.MessageParam {
	result := make([]sdkanthropic.MessageParam, 0, len(msgs))
	for i, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock(msg.Content)))
		case provider.MessageRoleAssistant:
			if msg.Content == "" {
				continue
			}
			result = append(result, sdkanthropic.NewAssistantMessage(sdkanthropic.NewTextBlock(msg.Content)))
		case provider.MessageRoleSystem:
			if logger != nil {
				logger.Warn("dropping non-leading system message", "index", i)
			}
		}
	}
	return result
}

// convertResponse keeps every content block in order. Text becomes a text
// block, tool use is reported both as a block and as a ToolCall, and
// anything else is carried raw.
func convertResponse(msg *sdkanthropic.Message) provider.CompletionResponse {
	blocks := make(provider.BlockContent, 0, len(msg.Content))
	var toolCalls []provider.ToolCall

	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case sdkanthropic.TextBlock:
			blocks = append(blocks, provider.NewTextBlock(v.Text))
		case sdkanthropic.ToolUseBlock:
			toolCalls = append(toolCalls, provider.ToolCall{
				ID:        v.ID,
				Name:      v.Name,
				Arguments: v.Input,
			})
			b := provider.NewRawBlock(provider.BlockToolUse, v.Input)
			b.Name = v.Name
			blocks = append(blocks, b)
		case sdkanthropic.ThinkingBlock:
			blocks = append(blocks, provider.Block{Type: provider.BlockThinking, Text: v.Thinking})
		default:
			blocks = append(blocks, provider.NewRawBlock(provider.BlockType(block.Type), json.RawMessage(block.RawJSON())))
		}
	}

	return provider.CompletionResponse{
		Content:      blocks,
		ToolCalls:    toolCalls,
		FinishReason: convertStopReason(msg.StopReason),
		Usage: provider.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

func convertStopReason(reason sdkanthropic.StopReason) provider.FinishReason {
	switch reason {
	case sdkanthropic.StopReasonEndTurn, sdkanthropic.StopReasonStopSequence:
		return provider.FinishReasonStop
	case sdkanthropic.StopReasonMaxTokens:
		return provider.FinishReasonLength
	case sdkanthropic.StopReasonToolUse:
		return provider.FinishReasonToolUse
	case sdkanthropic.StopReasonRefusal:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
