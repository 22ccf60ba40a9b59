package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// decode parses the single JSON record in buf.
func decode(buf *bytes.Buffer) map[string]any {
	var rec map[string]any
	ExpectWithOffset(1, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec)).To(Succeed())
	return rec
}

var _ = Describe("New", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	DescribeTable("debug level",
		func(debug, visible bool) {
			l := logger.New(logger.WithWriter(buf), logger.WithDebug(debug))
			l.Debug("drain finished", "conversation_id", "c-1")
			if visible {
				Expect(buf.String()).To(ContainSubstring("drain finished"))
			} else {
				Expect(buf.Len()).To(BeZero())
			}
		},
		Entry("shown with debug", true, true),
		Entry("hidden without debug", false, false),
	)

	It("writes text records with attributes by default", func() {
		logger.New(logger.WithWriter(buf)).Info("starting API server", "listen", ":8080")
		Expect(buf.String()).To(ContainSubstring("starting API server"))
		Expect(buf.String()).To(ContainSubstring("listen=:8080"))
	})

	It("writes JSON records", func() {
		logger.New(logger.WithWriter(buf), logger.WithJSON(true)).Warn("queue full", "dropped", 3)

		rec := decode(buf)
		Expect(rec["msg"]).To(Equal("queue full"))
		Expect(rec["level"]).To(Equal("WARN"))
		Expect(rec["dropped"]).To(BeNumerically("==", 3))
	})

	It("prefers the pretty handler over JSON", func() {
		logger.New(logger.WithWriter(buf), logger.WithJSON(true), logger.WithPretty(true)).Info("pretty output")
		Expect(buf.String()).To(ContainSubstring("pretty output"))
		Expect(json.Valid(bytes.TrimSpace(buf.Bytes()))).To(BeFalse())
	})

	It("copies records to every writer", func() {
		var other bytes.Buffer
		logger.New(logger.WithWriters(buf, &other)).Info("twice")
		Expect(buf.String()).To(ContainSubstring("twice"))
		Expect(other.String()).To(Equal(buf.String()))
	})

	It("nests grouped attributes", func() {
		l := logger.New(logger.WithWriter(buf), logger.WithJSON(true))
		l.WithGroup("upstream").Info("request", "status", 502)

		group, ok := decode(buf)["upstream"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(group["status"]).To(BeNumerically("==", 502))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		h := logger.Nop().Handler()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
			Expect(h.Enabled(context.Background(), level)).To(BeFalse())
		}
	})
})

var _ = Describe("Multi", func() {
	var text, js *bytes.Buffer

	BeforeEach(func() {
		text, js = &bytes.Buffer{}, &bytes.Buffer{}
	})

	It("writes each record through every logger", func() {
		l := logger.Multi(
			logger.New(logger.WithWriter(text)),
			logger.New(logger.WithWriter(js), logger.WithJSON(true)),
		)
		l.Info("persisted message", "id", "42")

		Expect(text.String()).To(ContainSubstring("persisted message"))
		Expect(decode(js)["id"]).To(Equal("42"))
	})

	It("respects each logger's level", func() {
		l := logger.Multi(
			logger.New(logger.WithWriter(text)),
			logger.New(logger.WithWriter(js), logger.WithJSON(true), logger.WithDebug(true)),
		)
		l.Debug("only verbose")

		Expect(text.Len()).To(BeZero())
		Expect(js.String()).To(ContainSubstring("only verbose"))
	})

	It("carries With attributes to all handlers", func() {
		l := logger.Multi(
			logger.New(logger.WithWriter(text)),
			logger.New(logger.WithWriter(js), logger.WithJSON(true)),
		).With("component", "recorder")
		l.Info("drain started")

		Expect(strings.Contains(text.String(), "component=recorder")).To(BeTrue())
		Expect(decode(js)["component"]).To(Equal("recorder"))
	})
})
