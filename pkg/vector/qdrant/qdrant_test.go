package qdrant_test

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	qdrantclient "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/chatrelay/pkg/vector"
	"github.com/papercomputeco/chatrelay/pkg/vector/qdrant"
)

var _ = Describe("SplitAddr", func() {
	It("parses host and port", func() {
		host, port, err := qdrant.SplitAddr("qdrant.internal:7000")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("qdrant.internal"))
		Expect(port).To(Equal(7000))
	})

	It("defaults the port", func() {
		host, port, err := qdrant.SplitAddr("localhost")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("localhost"))
		Expect(port).To(Equal(qdrant.DefaultPort))
	})

	It("rejects an empty address", func() {
		_, _, err := qdrant.SplitAddr("")
		Expect(err).To(HaveOccurred())
	})

	It("rejects a non-numeric port", func() {
		_, _, err := qdrant.SplitAddr("localhost:grpc")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("PointID", func() {
	It("is a stable UUID per document id", func() {
		a := qdrant.PointID("docs/intro.md#0")
		Expect(uuid.Validate(a)).To(Succeed())
		Expect(qdrant.PointID("docs/intro.md#0")).To(Equal(a))
		Expect(qdrant.PointID("docs/intro.md#1")).NotTo(Equal(a))
	})
})

var _ = Describe("ScoredToResult", func() {
	It("reads the document from the payload and converts similarity to distance", func() {
		point := &qdrantclient.ScoredPoint{
			Score: 0.75,
			Payload: qdrantclient.NewValueMap(map[string]any{
				"doc_id":   "doc-1",
				"text":     "hello world",
				"n_tokens": 2,
			}),
		}

		r := qdrant.ScoredToResult(point)
		Expect(r.ID).To(Equal("doc-1"))
		Expect(r.Text).To(Equal("hello world"))
		Expect(r.Tokens).To(Equal(2))
		Expect(r.Distance).To(BeNumerically("~", 0.25, 1e-6))
	})
})

var _ = Describe("Driver", func() {
	It("upserts and queries a live collection", func() {
		addr := os.Getenv("CHATRELAY_TEST_QDRANT_ADDR")
		if addr == "" {
			Skip("CHATRELAY_TEST_QDRANT_ADDR not set, skipping Qdrant tests")
		}

		ctx := context.Background()
		driver, err := qdrant.NewDriver(ctx, qdrant.Config{
			Addr:       addr,
			Collection: "chatrelay_test_" + uuid.NewString()[:8],
			Dimensions: 3,
		}, slog.New(slog.DiscardHandler))
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		Expect(driver.Add(ctx, []vector.Document{
			{ID: "a", Text: "about a", Tokens: 2, Embedding: []float32{1, 0, 0}},
			{ID: "b", Text: "about b", Tokens: 2, Embedding: []float32{0, 1, 0}},
		})).To(Succeed())

		results, err := driver.Query(ctx, []float32{1, 0.1, 0}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].ID).To(Equal("a"))
		Expect(results[0].Text).To(Equal("about a"))
	})
})
