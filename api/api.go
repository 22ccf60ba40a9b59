package api

import (
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const defaultMaxHistoryTokens = 1500

// Server is the chat relay HTTP server.
type Server struct {
	config Config
	driver storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected so it can be shared with the persistence worker pool.
func NewServer(config Config, driver storage.Driver, logger *slog.Logger) (*Server, error) {
	if driver == nil {
		return nil, errors.New("api server requires a storage driver")
	}
	if config.Completer == nil {
		return nil, errors.New("api server requires a completion client")
	}
	if config.Persister == nil || config.Recorder == nil {
		return nil, errors.New("api server requires a persister and a recorder")
	}
	if config.MaxHistoryTokens <= 0 {
		config.MaxHistoryTokens = defaultMaxHistoryTokens
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	s := &Server{
		config: config,
		driver: driver,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	app.Post("/api/completion", s.handleCompletion)
	app.Post("/api/conversations/completion", s.handleTitleCompletion)
	app.Post("/api/with-context", s.handleWithContext)

	app.Post("/api/conversations", s.handleCreateConversation)
	app.Get("/api/messages", s.handleListMessages)
	app.Post("/api/messages", s.handleCreateMessage)

	app.Post("/api/context", s.handleContext)
	app.Post("/api/embeddings", s.handleEmbeddings)

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"model", s.config.Completer.Model(),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
		"model", s.config.Completer.Model(),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server. In-flight streams keep
// their background persistence running; wait on the Recorder afterwards.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
