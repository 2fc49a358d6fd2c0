package provider

import "encoding/json"

// Content is the reply payload of a completion. It is one of
// TextContent, BlockContent or UnknownContent.
type Content interface {
	isContent()
}

// TextContent is a plain text reply.
type TextContent string

// BlockContent is a reply made of ordered content blocks.
type BlockContent []Block

// UnknownContent is a reply whose shape the backend adapter could not
// classify. Raw carries the undecoded payload for diagnostics.
type UnknownContent struct {
	Raw json.RawMessage
}

func (TextContent) isContent()    {}
func (BlockContent) isContent()   {}
func (UnknownContent) isContent() {}

// BlockType discriminates the fields of a Block.
type BlockType string

// BlockType constants.
const (
	BlockText     BlockType = "text"
	BlockToolUse  BlockType = "tool_use"
	BlockThinking BlockType = "thinking"
	BlockRaw      BlockType = "raw"
)

// Block is a flat union representing one piece of a structured reply.
// The Type field discriminates which fields are meaningful.
type Block struct {
	Type BlockType       `json:"type"`
	Text string          `json:"text,omitempty"`
	Name string          `json:"name,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewTextBlock creates a text block.
func NewTextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// NewRawBlock creates a block carrying opaque JSON data.
func NewRawBlock(typ BlockType, data json.RawMessage) Block {
	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	return Block{Type: typ, Data: cp}
}
