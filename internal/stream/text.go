package stream

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/flemzord/agentchat/internal/provider"
)

// ExtractText returns the user-visible text of a reply payload. Block
// payloads contribute their text blocks only, concatenated in order.
func ExtractText(c provider.Content) (string, error) {
	var text string
	switch v := c.(type) {
	case provider.TextContent:
		text = string(v)
	case provider.BlockContent:
		var b strings.Builder
		for _, blk := range v {
			if blk.Type == provider.BlockText {
				b.WriteString(blk.Text)
			}
		}
		text = b.String()
	case provider.UnknownContent:
		return "", fmt.Errorf("%w: %.64s", ErrMalformedResponse, v.Raw)
	case nil:
		return "", ErrEmptyResponse
	default:
		return "", fmt.Errorf("%w: %T", ErrMalformedResponse, c)
	}

	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Chunk splits text into pieces of at most size characters (runes).
// Concatenating the pieces yields text. A non-positive size yields one piece.
func Chunk(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, n := 0, 0
	for i := range text {
		if n == size {
			chunks = append(chunks, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(chunks, text[start:])
}
