package openai_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shamba-ai/shamba/pkg/llm/provider/openai"
)

var _ = Describe("Content", func() {
	decode := func(raw string) openai.Content {
		var c openai.Content
		Expect(json.Unmarshal([]byte(raw), &c)).To(Succeed())
		return c
	}

	DescribeTable("extracting text from every content shape",
		func(raw string, kind openai.ContentKind, expected string) {
			c := decode(raw)
			Expect(c.Kind).To(Equal(kind))
			Expect(c.Text()).To(Equal(expected))
		},
		Entry("plain string", `"hello"`, openai.PlainText, "hello"),
		Entry("single block with string text", `{"text":"solo"}`, openai.SingleBlock, "solo"),
		Entry("single typed block with value wrapper", `{"type":"text","text":{"value":"wrapped","annotations":[]}}`, openai.SingleBlock, "wrapped"),
		Entry("list of untyped text blocks", `[{"text":"a"},{"text":"b"}]`, openai.BlockList, "a b"),
		Entry("list with a non-text block", `[{"type":"text","text":{"value":"a"}},{"type":"image_file","image_file":{"file_id":"f"}},{"type":"text","text":"b"}]`, openai.BlockList, "a b"),
		Entry("empty list", `[]`, openai.BlockList, ""),
		Entry("null", `null`, openai.ContentEmpty, ""),
	)

	It("decodes inside a message", func() {
		var msg openai.ThreadMessage
		Expect(json.Unmarshal([]byte(`{"id":"m","role":"assistant","content":[{"text":"x"}]}`), &msg)).To(Succeed())
		Expect(msg.Content.Text()).To(Equal("x"))
	})

	It("rejects unsupported shapes", func() {
		var c openai.Content
		Expect(json.Unmarshal([]byte(`42`), &c)).NotTo(Succeed())
		Expect(json.Unmarshal([]byte(`[{"text":7}]`), &c)).NotTo(Succeed())
	})

	It("builds content from Go values", func() {
		Expect(openai.TextContent("t").Text()).To(Equal("t"))
		Expect(openai.BlockContent("a", "b").Text()).To(Equal("a b"))
		Expect(openai.BlockList.String()).To(Equal("block_list"))
	})
})

var _ = Describe("DeltaText", func() {
	DescribeTable("chunk decoding",
		func(data, expected string, ok bool) {
			text, got := openai.DeltaText(data)
			Expect(got).To(Equal(ok))
			Expect(text).To(Equal(expected))
		},
		Entry("content delta", `{"choices":[{"delta":{"content":"hi"}}]}`, "hi", true),
		Entry("empty content delta", `{"choices":[{"delta":{"content":""}}]}`, "", true),
		Entry("role-only delta", `{"choices":[{"delta":{"role":"assistant"}}]}`, "", false),
		Entry("no choices", `{"choices":[]}`, "", false),
		Entry("done sentinel", "[DONE]", "", false),
		Entry("malformed", `{"choices":`, "", false),
	)
})
