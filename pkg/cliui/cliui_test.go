package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	It("formats sub-second durations in milliseconds", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("formats longer durations in seconds", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Mark", func() {
	It("distinguishes success from failure", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})
})

var _ = Describe("Step", func() {
	It("returns the error from fn and ends the line with its message", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "embedding", func() error { return boom })
		Expect(err).To(MatchError(boom))

		out := buf.String()
		Expect(strings.HasSuffix(out, "\n")).To(BeTrue())
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\r")
		Expect(lines[len(lines)-1]).To(ContainSubstring("embedding"))
		Expect(lines[len(lines)-1]).To(ContainSubstring(cliui.FailMark))
	})
})
