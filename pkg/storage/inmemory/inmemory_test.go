package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("inmemory", func() storage.Driver {
	return inmemory.NewDriver()
})

var _ = Describe("Driver", func() {
	It("does not let callers mutate stored messages", func() {
		ctx := context.Background()
		driver := inmemory.NewDriver()

		msg := &storage.Message{Role: "user", Content: "original", Tokens: 1}
		Expect(driver.AppendMessage(ctx, msg)).To(Succeed())
		msg.Content = "changed"

		msgs, err := driver.ListMessages(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs[0].Content).To(Equal("original"))

		msgs[0].Content = "changed again"
		again, err := driver.ListMessages(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(again[0].Content).To(Equal("original"))
	})
})
