package sse

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// feedAll feeds input in fragments of the given size and collects every
// dispatched event, including one flushed at end of input.
func feedAll(input string, size int) []*Event {
	p := NewParser()
	var events []*Event
	collect := func(ev *Event) error {
		events = append(events, ev)
		return nil
	}

	b := []byte(input)
	for len(b) > 0 {
		n := min(size, len(b))
		Expect(p.Feed(b[:n], collect)).To(Succeed())
		b = b[n:]
	}
	Expect(p.Flush(collect)).To(Succeed())

	return events
}

var _ = Describe("Parser", func() {
	Describe("Feed", func() {
		Context("with standard SSE events", func() {
			It("parses a single event", func() {
				events := feedAll("data: hello world\n\n", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("hello world"))
				Expect(events[0].Type).To(BeEmpty())
				Expect(events[0].ID).To(BeEmpty())
			})

			It("parses multiple events", func() {
				events := feedAll("data: first\n\ndata: second\n\n", 1024)
				Expect(events).To(HaveLen(2))
				Expect(events[0].Data).To(Equal("first"))
				Expect(events[1].Data).To(Equal("second"))
			})

			It("parses event type and ID", func() {
				events := feedAll("event: content_block_delta\nid: 42\ndata: {\"type\":\"delta\"}\n\n", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Type).To(Equal("content_block_delta"))
				Expect(events[0].ID).To(Equal("42"))
				Expect(events[0].Data).To(Equal("{\"type\":\"delta\"}"))
			})

			It("joins multiple data lines with newline", func() {
				events := feedAll("data: line one\ndata: line two\ndata: line three\n\n", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("line one\nline two\nline three"))
			})
		})

		Context("with fragmented input", func() {
			input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"

			It("produces the same events regardless of fragment size", func() {
				whole := feedAll(input, len(input))
				for _, size := range []int{1, 2, 3, 7, 16} {
					Expect(feedAll(input, size)).To(Equal(whole))
				}
			})

			It("handles a CRLF terminator split across fragments", func() {
				p := NewParser()
				var events []*Event
				collect := func(ev *Event) error {
					events = append(events, ev)
					return nil
				}

				Expect(p.Feed([]byte("data: a\r"), collect)).To(Succeed())
				Expect(p.Feed([]byte("\n\r"), collect)).To(Succeed())
				Expect(p.Feed([]byte("\ndata: b\r\n\r\n"), collect)).To(Succeed())

				Expect(events).To(HaveLen(2))
				Expect(events[0].Data).To(Equal("a"))
				Expect(events[1].Data).To(Equal("b"))
			})

			It("accepts lone carriage returns as line terminators", func() {
				events := feedAll("data: cr\r\r", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("cr"))
			})

			It("buffers only the current partial line", func() {
				p := NewParser()
				Expect(p.Feed([]byte("data: first\n\ndata: par"), func(*Event) error { return nil })).To(Succeed())
				Expect(p.Buffered()).To(Equal(len("data: par")))
			})
		})

		Context("when the callback fails", func() {
			It("stops processing the rest of the fragment", func() {
				p := NewParser()
				stop := errors.New("stop")
				var seen []string

				err := p.Feed([]byte("data: one\n\ndata: two\n\ndata: three\n\n"), func(ev *Event) error {
					seen = append(seen, ev.Data)
					if ev.Data == "two" {
						return stop
					}
					return nil
				})

				Expect(err).To(MatchError(stop))
				Expect(seen).To(Equal([]string{"one", "two"}))
			})
		})

		Context("with SSE comments and keep-alives", func() {
			It("ignores comment lines", func() {
				events := feedAll(": keep-alive\ndata: hello\n\n", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("hello"))
			})

			It("ignores retry records", func() {
				events := feedAll("retry: 3000\n\ndata: hello\n\n", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("hello"))
			})

			It("does not dispatch events without data", func() {
				events := feedAll("event: ping\n\ndata: hello\n\n", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Type).To(BeEmpty())
			})
		})

		Context("with data field variations", func() {
			It("handles data field with no space after colon", func() {
				events := feedAll("data:no-space\n\n", 1024)
				Expect(events[0].Data).To(Equal("no-space"))
			})

			It("handles empty data field", func() {
				events := feedAll("data:\n\n", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(BeEmpty())
			})

			It("handles field with no colon", func() {
				events := feedAll("data\n\n", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(BeEmpty())
			})

			It("preserves a second leading space", func() {
				events := feedAll("data:  indented\n\n", 1024)
				Expect(events[0].Data).To(Equal(" indented"))
			})
		})

		Context("edge cases", func() {
			It("returns nothing on empty input", func() {
				Expect(feedAll("", 1024)).To(BeEmpty())
			})

			It("returns nothing on input with only blank lines", func() {
				Expect(feedAll("\n\n\n", 1024)).To(BeEmpty())
			})

			It("flushes an event when the stream ends without a trailing blank line", func() {
				events := feedAll("data: unterminated", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("unterminated"))
			})

			It("ignores unknown fields", func() {
				events := feedAll("foo: bar\ndata: hello\n\n", 1024)
				Expect(events).To(HaveLen(1))
				Expect(events[0].Data).To(Equal("hello"))
			})
		})
	})
})
