package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shamba-ai/shamba/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	DescribeTable("formats",
		func(d time.Duration, want string) {
			Expect(cliui.FormatDuration(d)).To(Equal(want))
		},
		Entry("milliseconds", 12*time.Millisecond, "12ms"),
		Entry("seconds", 3200*time.Millisecond, "3.2s"),
	)
})

var _ = Describe("Step", func() {
	It("reports success with a check mark", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "Opening database", func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("Opening database"))
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
	})

	It("passes the error through", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")
		err := cliui.Step(&buf, "Connecting", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text of the reply", func() {
		out, err := cliui.RenderMarkdown("Carbon potential: **5.2 tons/ha**")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("tons/ha"))
		Expect(out).NotTo(ContainSubstring("**"))
	})
})
