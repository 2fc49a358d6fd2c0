package provider_test

import (
	"context"
	"testing"

	"github.com/flemzord/agentchat/internal/provider"
	"github.com/flemzord/agentchat/internal/provider/providertest"
)

func TestMockProvider_Text(t *testing.T) {
	t.Parallel()

	mock := providertest.Text("ok")

	resp, err := mock.Complete(context.Background(), provider.CompletionRequest{
		Messages: []provider.LLMMessage{{Role: provider.MessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	text, ok := resp.Content.(provider.TextContent)
	if !ok || text != "ok" {
		t.Errorf("content = %#v, want TextContent(ok)", resp.Content)
	}
	if mock.ModelName() != "mock" {
		t.Errorf("ModelName() = %q, want %q", mock.ModelName(), "mock")
	}
	if got := mock.LastRequest().Messages[0].Content; got != "hi" {
		t.Errorf("recorded request content = %q, want %q", got, "hi")
	}
}

func TestContent_TypeSwitch(t *testing.T) {
	t.Parallel()

	payloads := []provider.Content{
		provider.TextContent("a"),
		provider.BlockContent{provider.NewTextBlock("b")},
		provider.UnknownContent{Raw: []byte(`42`)},
	}
	var kinds []string
	for _, p := range payloads {
		switch p.(type) {
		case provider.TextContent:
			kinds = append(kinds, "text")
		case provider.BlockContent:
			kinds = append(kinds, "blocks")
		case provider.UnknownContent:
			kinds = append(kinds, "unknown")
		}
	}
	if len(kinds) != 3 || kinds[0] != "text" || kinds[1] != "blocks" || kinds[2] != "unknown" {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestNewRawBlock_CopiesData(t *testing.T) {
	t.Parallel()

	data := []byte(`{"x":1}`)
	b := provider.NewRawBlock(provider.BlockThinking, data)
	data[2] = 'y'

	if string(b.Data) != `{"x":1}` {
		t.Errorf("block data mutated: %s", b.Data)
	}
	if b.Type != provider.BlockThinking {
		t.Errorf("type = %q", b.Type)
	}
}
