package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/embeddings/openai"
	"github.com/papercomputeco/chatrelay/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		received map[string]any
		authz    string
		path     string
		status   int
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz = r.Header.Get("Authorization")
			path = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&received)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status != http.StatusOK {
				_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
				return
			}
			_, _ = w.Write([]byte(`{
				"object": "list",
				"data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5, 1]}],
				"model": "text-embedding-ada-002",
				"usage": {"prompt_tokens": 2, "total_tokens": 2}
			}`))
		}))
		DeferCleanup(server.Close)
	})

	newEmbedder := func(cfg openai.EmbedderConfig) *openai.Embedder {
		noRetries := 0
		cfg.APIKey = "sk-test"
		cfg.BaseURL = server.URL
		cfg.MaxRetries = &noRetries
		e, err := openai.NewEmbedder(cfg)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("requires an API key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("defaults the model", func() {
		e := newEmbedder(openai.EmbedderConfig{})
		Expect(e.Model()).To(Equal(openai.DefaultEmbeddingModel))
		Expect(e.Model()).To(Equal("text-embedding-ada-002"))
	})

	It("embeds text as float32 values", func() {
		e := newEmbedder(openai.EmbedderConfig{})

		emb, err := e.Embed(context.Background(), "hello world")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.25, -0.5, 1}))

		Expect(strings.HasSuffix(path, "/embeddings")).To(BeTrue())
		Expect(authz).To(Equal("Bearer sk-test"))
		Expect(received).To(HaveKeyWithValue("input", "hello world"))
		Expect(received).To(HaveKeyWithValue("model", "text-embedding-ada-002"))
		Expect(received).NotTo(HaveKey("dimensions"))
	})

	It("sends requested dimensions", func() {
		e := newEmbedder(openai.EmbedderConfig{Model: "text-embedding-3-small", Dimensions: 3})

		_, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(received).To(HaveKeyWithValue("dimensions", BeNumerically("==", 3)))
		Expect(received).To(HaveKeyWithValue("model", "text-embedding-3-small"))
	})

	It("wraps API errors with ErrEmbedding", func() {
		status = http.StatusBadRequest
		e := newEmbedder(openai.EmbedderConfig{})

		_, err := e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})
})
