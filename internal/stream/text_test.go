package stream

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/flemzord/agentchat/internal/provider"
)

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content provider.Content
		want    string
		wantErr error
	}{
		{name: "text", content: provider.TextContent("Hello!"), want: "Hello!"},
		{
			name: "blocks concatenated",
			content: provider.BlockContent{
				provider.NewTextBlock("Hel"),
				provider.NewRawBlock(provider.BlockToolUse, []byte(`{"id":"1"}`)),
				provider.NewTextBlock("lo"),
			},
			want: "Hello",
		},
		{name: "empty text", content: provider.TextContent(""), wantErr: ErrEmptyResponse},
		{name: "no text blocks", content: provider.BlockContent{{Type: provider.BlockThinking, Text: "hmm"}}, wantErr: ErrEmptyResponse},
		{name: "nil", content: nil, wantErr: ErrEmptyResponse},
		{name: "unknown", content: provider.UnknownContent{Raw: []byte(`42`)}, wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractText(tt.content)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunk(t *testing.T) {
	t.Parallel()

	texts := []string{
		"Hello!",
		"exactly10c",
		"The quick brown fox jumps over the lazy dog",
		"héllo wörld, ça va? 日本語のテキストです",
		strings.Repeat("ab", 51),
	}
	for _, text := range texts {
		for _, size := range []int{1, 3, 10} {
			chunks := Chunk(text, size)
			if got := strings.Join(chunks, ""); got != text {
				t.Errorf("Chunk(%q, %d) joined = %q", text, size, got)
			}
			n := utf8.RuneCountInString(text)
			wantLen := (n + size - 1) / size
			if len(chunks) != wantLen {
				t.Errorf("Chunk(%q, %d) len = %d, want %d", text, size, len(chunks), wantLen)
			}
			for i, c := range chunks {
				rc := utf8.RuneCountInString(c)
				if rc == 0 || rc > size {
					t.Errorf("Chunk(%q, %d)[%d] = %q has %d runes", text, size, i, c, rc)
				}
				if i < len(chunks)-1 && rc != size {
					t.Errorf("Chunk(%q, %d)[%d] = %q is short", text, size, i, c)
				}
			}
		}
	}
}

func TestChunk_Edges(t *testing.T) {
	t.Parallel()

	if got := Chunk("", 10); got != nil {
		t.Errorf("Chunk(\"\") = %v, want nil", got)
	}
	if got := Chunk("abc", 0); len(got) != 1 || got[0] != "abc" {
		t.Errorf("Chunk(size 0) = %v", got)
	}
	got := Chunk("Hello!", 10)
	if len(got) != 1 || got[0] != "Hello!" {
		t.Errorf("Chunk(\"Hello!\", 10) = %v", got)
	}
}
