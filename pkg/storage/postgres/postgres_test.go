package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/postgres"
	"github.com/papercomputeco/chatrelay/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("CHATRELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("CHATRELAY_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = storagetest.DescribeDriver("postgres", func() storage.Driver {
	ctx := context.Background()
	driver, err := postgres.NewDriver(ctx, postgres.Config{ConnString: connStr(), MaxConns: 4})
	Expect(err).NotTo(HaveOccurred())

	// Clean all rows before each test for isolation.
	Expect(driver.Truncate(ctx)).To(Succeed())
	return driver
})

var _ = Describe("NewDriver", func() {
	It("rejects an invalid connection string", func() {
		_, err := postgres.NewDriver(context.Background(), postgres.Config{ConnString: "postgres://%zz"})
		Expect(err).To(HaveOccurred())
	})

	It("releases pooled connections after each operation", func() {
		ctx := context.Background()
		driver, err := postgres.NewDriver(ctx, postgres.Config{ConnString: connStr(), MaxConns: 1})
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()
		Expect(driver.Truncate(ctx)).To(Succeed())

		for range 5 {
			Expect(driver.AppendMessage(ctx, &storage.Message{Role: "user", Content: "x", Tokens: 1})).To(Succeed())
			_, err := driver.ListMessages(ctx, "")
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(driver.Pool.Stat().AcquiredConns()).To(BeZero())
	})
})
