// Package storagetest holds the behavior every storage.Driver must share,
// written as ginkgo specs that driver packages register in their suites.
package storagetest

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// DescribeDriver registers the shared driver specs. newDriver is called
// before each spec and must return an empty driver.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" driver contract", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		appendAt := func(conversationID, role, content string, tokens int, created time.Time) *storage.Message {
			msg := &storage.Message{
				ConversationID: conversationID,
				Role:           role,
				Content:        content,
				Tokens:         tokens,
				Created:        created,
			}
			Expect(driver.AppendMessage(ctx, msg)).To(Succeed())
			return msg
		}

		Describe("AppendMessage", func() {
			It("assigns increasing ids", func() {
				first := appendAt("", "user", "hello", 1, time.Time{})
				second := appendAt("", "assistant", "hi", 1, time.Time{})

				Expect(first.ID).To(BeNumerically(">", 0))
				Expect(second.ID).To(BeNumerically(">", first.ID))
			})

			It("fills in the created timestamp when unset", func() {
				msg := appendAt("", "user", "hello", 1, time.Time{})
				Expect(msg.Created).NotTo(BeZero())
			})

			It("round-trips the retrieved context", func() {
				msg := &storage.Message{Role: "user", Content: "q", Context: "some docs", Tokens: 1}
				Expect(driver.AppendMessage(ctx, msg)).To(Succeed())

				msgs, err := driver.ListMessages(ctx, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(HaveLen(1))
				Expect(msgs[0].Context).To(Equal("some docs"))
				Expect(msgs[0].Tokens).To(Equal(1))
			})

			It("rejects a nil message", func() {
				Expect(driver.AppendMessage(ctx, nil)).To(HaveOccurred())
			})
		})

		Describe("ListMessages", func() {
			It("returns an empty result for an empty store", func() {
				msgs, err := driver.ListMessages(ctx, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(BeEmpty())
			})

			It("orders messages by creation", func() {
				base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
				appendAt("", "assistant", "second", 1, base.Add(2*time.Second))
				appendAt("", "user", "first", 1, base.Add(time.Second))

				msgs, err := driver.ListMessages(ctx, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(HaveLen(2))
				Expect(msgs[0].Content).To(Equal("first"))
				Expect(msgs[1].Content).To(Equal("second"))
			})

			It("filters by conversation", func() {
				a, err := driver.CreateConversation(ctx, "user-1", "A")
				Expect(err).NotTo(HaveOccurred())
				b, err := driver.CreateConversation(ctx, "user-1", "B")
				Expect(err).NotTo(HaveOccurred())

				appendAt(a, "user", "in a", 1, time.Time{})
				appendAt(b, "user", "in b", 1, time.Time{})
				appendAt("", "user", "loose", 1, time.Time{})

				msgs, err := driver.ListMessages(ctx, a)
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(HaveLen(1))
				Expect(msgs[0].Content).To(Equal("in a"))
				Expect(msgs[0].ConversationID).To(Equal(a))

				all, err := driver.ListMessages(ctx, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(3))
			})
		})

		Describe("History", func() {
			BeforeEach(func() {
				base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
				appendAt("", "user", "oldest", 800, base.Add(1*time.Second))
				appendAt("", "assistant", "older", 600, base.Add(2*time.Second))
				appendAt("", "user", "newer", 500, base.Add(3*time.Second))
				appendAt("", "assistant", "newest", 400, base.Add(4*time.Second))
			})

			It("keeps the newest messages within the token budget, oldest first", func() {
				msgs, err := driver.History(ctx, "", 1500)
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(HaveLen(3))
				Expect(msgs[0].Content).To(Equal("older"))
				Expect(msgs[1].Content).To(Equal("newer"))
				Expect(msgs[2].Content).To(Equal("newest"))
			})

			It("returns nothing when the newest message exceeds the budget", func() {
				msgs, err := driver.History(ctx, "", 100)
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(BeEmpty())
			})

			It("scopes the window to a conversation", func() {
				id, err := driver.CreateConversation(ctx, "user-1", "scoped")
				Expect(err).NotTo(HaveOccurred())
				appendAt(id, "user", "scoped question", 10, time.Time{})

				msgs, err := driver.History(ctx, id, 1500)
				Expect(err).NotTo(HaveOccurred())
				Expect(msgs).To(HaveLen(1))
				Expect(msgs[0].Content).To(Equal("scoped question"))
			})
		})

		Describe("Conversations", func() {
			It("creates and retrieves a conversation", func() {
				id, err := driver.CreateConversation(ctx, "user-1", "Origin of the Universe")
				Expect(err).NotTo(HaveOccurred())
				Expect(id).NotTo(BeEmpty())

				c, err := driver.GetConversation(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(c.ID).To(Equal(id))
				Expect(c.UserID).To(Equal("user-1"))
				Expect(c.Title).To(Equal("Origin of the Universe"))
			})

			It("generates distinct ids", func() {
				a, err := driver.CreateConversation(ctx, "user-1", "A")
				Expect(err).NotTo(HaveOccurred())
				b, err := driver.CreateConversation(ctx, "user-1", "A")
				Expect(err).NotTo(HaveOccurred())
				Expect(a).NotTo(Equal(b))
			})

			It("returns NotFoundError for an unknown conversation", func() {
				_, err := driver.GetConversation(ctx, "00000000-0000-0000-0000-000000000001")
				var notFound storage.NotFoundError
				Expect(errors.As(err, &notFound)).To(BeTrue())
			})
		})
	})
}
