package config

const (
	defaultListen = ":8080"

	defaultUpstreamURL   = "https://api.openai.com/v1/chat/completions"
	defaultUpstreamModel = "gpt-3.5-turbo"

	defaultStorageProvider = "sqlite"
	defaultMaxConns        = 10

	defaultVectorCollection = "chatrelay_documents"

	defaultEmbeddingProvider   = "openai"
	defaultEmbeddingModel      = "text-embedding-ada-002"
	defaultEmbeddingDimensions = 1536

	defaultMaxContextTokens = 2000
	defaultMaxHistoryTokens = 1500

	defaultTeeBuffer = 64

	defaultEventTopic = "chatrelay.messages"
)

var defaultEventBrokers = []string{"localhost:9092"}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Upstream: UpstreamConfig{
			URL:   defaultUpstreamURL,
			Model: defaultUpstreamModel,
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
			MaxConns: defaultMaxConns,
		},
		VectorStore: VectorStoreConfig{
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Context: ContextConfig{
			MaxContextTokens: defaultMaxContextTokens,
			MaxHistoryTokens: defaultMaxHistoryTokens,
		},
		Stream: StreamConfig{
			TeeBuffer: defaultTeeBuffer,
		},
		EventStream: EventStreamConfig{
			Brokers: append([]string(nil), defaultEventBrokers...),
			Topic:   defaultEventTopic,
		},
	}
}
