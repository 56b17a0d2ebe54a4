package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shamba-ai/shamba/pkg/llm"
)

// ContentKind tags which shape a message's content arrived in.
type ContentKind int

const (
	// ContentEmpty is null or absent content.
	ContentEmpty ContentKind = iota

	// PlainText is content sent as a bare JSON string.
	PlainText

	// SingleBlock is content sent as one block object.
	SingleBlock

	// BlockList is content sent as an ordered array of block objects.
	BlockList
)

func (k ContentKind) String() string {
	switch k {
	case PlainText:
		return "plain_text"
	case SingleBlock:
		return "single_block"
	case BlockList:
		return "block_list"
	default:
		return "empty"
	}
}

// ContentBlock is one decoded block. Text is already flattened from the
// provider's {"value": ...} wrapper when present.
type ContentBlock struct {
	Type string
	Text string
}

// Content is the tagged union of every shape an assistant message's content
// may take. Exactly one of Plain or Blocks is meaningful, selected by Kind.
type Content struct {
	Kind   ContentKind
	Plain  string
	Blocks []ContentBlock
}

// TextContent returns PlainText content.
func TextContent(text string) Content {
	return Content{Kind: PlainText, Plain: text}
}

// BlockContent returns BlockList content made of text blocks.
func BlockContent(texts ...string) Content {
	blocks := make([]ContentBlock, 0, len(texts))
	for _, t := range texts {
		blocks = append(blocks, ContentBlock{Type: llm.ContentTypeText, Text: t})
	}
	return Content{Kind: BlockList, Blocks: blocks}
}

// Text extracts the textual payload. Text blocks are joined with a single
// space and every other block type is dropped.
func (c Content) Text() string {
	if c.Kind == PlainText {
		return c.Plain
	}

	texts := make([]string, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		if b.Type == llm.ContentTypeText {
			texts = append(texts, b.Text)
		}
	}
	return strings.Join(texts, " ")
}

// UnmarshalJSON decodes a string, a single block object, or an array of
// block objects into the matching Kind.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding plain text content: %w", err)
		}
		*c = TextContent(s)

	case '{':
		block, err := decodeBlock(data)
		if err != nil {
			return err
		}
		*c = Content{Kind: SingleBlock, Blocks: []ContentBlock{block}}

	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return fmt.Errorf("decoding content list: %w", err)
		}
		blocks := make([]ContentBlock, 0, len(raws))
		for i, raw := range raws {
			block, err := decodeBlock(raw)
			if err != nil {
				return fmt.Errorf("content block %d: %w", i, err)
			}
			blocks = append(blocks, block)
		}
		*c = Content{Kind: BlockList, Blocks: blocks}

	default:
		return fmt.Errorf("unsupported content shape: %.20s", data)
	}

	return nil
}

type rawBlock struct {
	Type string          `json:"type"`
	Text json.RawMessage `json:"text"`
}

type wrappedText struct {
	Value string `json:"value"`
}

// decodeBlock decodes one block. A block with no type but a text field is
// treated as text.
func decodeBlock(data []byte) (ContentBlock, error) {
	var rb rawBlock
	if err := json.Unmarshal(data, &rb); err != nil {
		return ContentBlock{}, fmt.Errorf("decoding content block: %w", err)
	}

	text, hasText, err := decodeBlockText(rb.Text)
	if err != nil {
		return ContentBlock{}, err
	}

	blockType := rb.Type
	if blockType == "" && hasText {
		blockType = llm.ContentTypeText
	}

	return ContentBlock{Type: blockType, Text: text}, nil
}

func decodeBlockText(raw json.RawMessage) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false, fmt.Errorf("decoding block text: %w", err)
		}
		return s, true, nil
	}

	var w wrappedText
	if err := json.Unmarshal(raw, &w); err != nil {
		return "", false, fmt.Errorf("decoding block text value: %w", err)
	}
	return w.Value, true, nil
}
