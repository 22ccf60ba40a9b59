package sqlite_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
	"github.com/papercomputeco/chatrelay/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("sqlite", func() storage.Driver {
	driver, err := sqlite.NewDriver(":memory:")
	Expect(err).NotTo(HaveOccurred())
	return driver
})

var _ = Describe("NewDriver", func() {
	It("persists messages in a database file across reopen", func() {
		ctx := context.Background()
		dbPath := filepath.Join(GinkgoT().TempDir(), "chatrelay.db")

		driver, err := sqlite.NewDriver(dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.AppendMessage(ctx, &storage.Message{Role: "user", Content: "hello", Tokens: 1})).To(Succeed())
		Expect(driver.Close()).To(Succeed())

		reopened, err := sqlite.NewDriver(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		msgs, err := reopened.ListMessages(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content).To(Equal("hello"))
	})

	It("fails for a path in a missing directory", func() {
		_, err := sqlite.NewDriver(filepath.Join(GinkgoT().TempDir(), "missing", "chatrelay.db"))
		Expect(err).To(HaveOccurred())
	})
})
