package ingestcmder_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ingestcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/ingest"
	"github.com/papercomputeco/chatrelay/pkg/tokens"
	testutils "github.com/papercomputeco/chatrelay/pkg/utils/test"
)

var _ = Describe("Paragraphs", func() {
	It("splits on blank lines and joins wrapped lines", func() {
		text := "The universe began\nabout 13.8 billion years ago.\n\n\n  Stars formed later.  \n"
		Expect(ingestcmder.Paragraphs(text)).To(Equal([]string{
			"The universe began about 13.8 billion years ago.",
			"Stars formed later.",
		}))
	})

	It("treats whitespace-only lines as separators", func() {
		Expect(ingestcmder.Paragraphs("a\n \t \nb")).To(Equal([]string{"a", "b"}))
	})

	It("returns nothing for blank input", func() {
		Expect(ingestcmder.Paragraphs("\n\n  \n")).To(BeEmpty())
	})
})

var _ = Describe("Ingester", func() {
	var (
		embedder *testutils.MockEmbedder
		vectors  *testutils.MockVectorDriver
		ing      *ingestcmder.Ingester
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		vectors = testutils.NewMockVectorDriver()
		ing = &ingestcmder.Ingester{
			Embedder: embedder,
			Driver:   vectors,
			Counter:  tokens.EstimateCounter{},
		}
	})

	It("adds one document per paragraph with stable ids", func() {
		embedder.Embeddings["first paragraph"] = []float32{1, 0, 0}

		n, err := ing.Ingest(ctx, "notes.txt", "first paragraph\n\nsecond one")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		Expect(vectors.Documents).To(HaveLen(2))
		Expect(vectors.Documents[0].ID).To(Equal("notes.txt#0"))
		Expect(vectors.Documents[0].Text).To(Equal("first paragraph"))
		Expect(vectors.Documents[0].Tokens).To(Equal(tokens.Estimate("first paragraph")))
		Expect(vectors.Documents[0].Embedding).To(Equal([]float32{1, 0, 0}))
		Expect(vectors.Documents[1].ID).To(Equal("notes.txt#1"))
		Expect(embedder.Calls).To(Equal([]string{"first paragraph", "second one"}))
	})

	It("adds nothing when an embedding fails", func() {
		embedder.FailOn = "bad"

		_, err := ing.Ingest(ctx, "notes.txt", "good\n\nbad")
		Expect(err).To(MatchError(ContainSubstring("embedding paragraph 1")))
		Expect(vectors.Documents).To(BeEmpty())
	})

	It("ingests files from disk", func() {
		dir, err := os.MkdirTemp("", "chatrelay-ingest-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		path := filepath.Join(dir, "doc.md")
		Expect(os.WriteFile(path, []byte("alpha\n\nbeta\n\ngamma\n"), 0o600)).To(Succeed())

		n, err := ing.IngestFile(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(3))
		Expect(vectors.Documents[2].ID).To(Equal(path + "#2"))
	})

	It("fails on missing files", func() {
		_, err := ing.IngestFile(ctx, "/does/not/exist.txt")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NewIngestCmd", func() {
	It("requires at least one file", func() {
		cmd := ingestcmder.NewIngestCmd()
		cmd.SetArgs([]string{})
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})
