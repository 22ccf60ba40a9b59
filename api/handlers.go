package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/retrieval"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/utils"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

const (
	assistantPrompt = "You are a helpful assistant."

	titlePrompt = "Find a suitable title to the conversation between the user and assistant. " +
		"The title should not exceed 20 characters. Example: Origin of the Universe. \n\nAnswer:"

	noPromptMessage = "No prompt in the request"
)

// CompletionRequest is the body of the plain completion routes.
type CompletionRequest struct {
	Messages []llm.Message `json:"messages"`
}

// WithContextRequest is the body of /api/with-context.
type WithContextRequest struct {
	Message        *llm.Message `json:"message"`
	ConversationID string       `json:"conversationId,omitempty"`
}

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
}

// CreateMessageRequest is the body of POST /api/messages.
type CreateMessageRequest struct {
	Content        string `json:"content"`
	Role           string `json:"role"`
	ConversationID string `json:"conversationId,omitempty"`
}

// InputRequest is the body of /api/context and /api/embeddings.
type InputRequest struct {
	Input string `json:"input"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleCompletion(c *fiber.Ctx) error {
	return s.handlePromptedCompletion(c, assistantPrompt)
}

func (s *Server) handleTitleCompletion(c *fiber.Ctx) error {
	return s.handlePromptedCompletion(c, titlePrompt)
}

// handlePromptedCompletion streams a completion of the client's messages
// behind the given system prompt. Nothing is persisted.
func (s *Server) handlePromptedCompletion(c *fiber.Ctx, prompt string) error {
	var req CompletionRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.Messages == nil {
		return c.Status(fiber.StatusBadRequest).SendString(noPromptMessage)
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.NewTextMessage(llm.RoleSystem, prompt))
	messages = append(messages, req.Messages...)

	return s.streamCompletion(c, messages, nil)
}

// handleWithContext answers a question using retrieved context and the
// conversation history. The question is stored before the upstream call and
// the answer once its stream has closed.
func (s *Server) handleWithContext(c *fiber.Ctx) error {
	var req WithContextRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.Message == nil || req.Message.Content == "" {
		return c.Status(fiber.StatusBadRequest).SendString(noPromptMessage)
	}

	ctx := c.Context()
	question := req.Message.Content

	if err := s.checkConversation(c, req.ConversationID); err != nil {
		return err
	}

	retrieved, err := s.config.Retriever.Context(ctx, question)
	switch {
	case errors.Is(err, retrieval.ErrNotConfigured):
		retrieved = ""
	case err != nil:
		s.logger.Error("context retrieval failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to retrieve context"})
	}

	_, err = s.config.Persister.PersistAndPublish(ctx, worker.Job{
		ConversationID: req.ConversationID,
		Role:           llm.RoleUser,
		Content:        question,
		Context:        retrieved,
		Model:          s.config.Completer.Model(),
	})
	if err != nil {
		s.logger.Error("failed to store question",
			"conversation_id", req.ConversationID,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to store message"})
	}

	history, err := s.driver.History(ctx, req.ConversationID, s.config.MaxHistoryTokens)
	if err != nil {
		s.logger.Error("failed to load history",
			"conversation_id", req.ConversationID,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to load history"})
	}

	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.NewTextMessage(llm.RoleSystem, assistantPrompt))
	for _, m := range history {
		messages = append(messages, llm.NewTextMessage(m.Role, m.Content))
	}
	messages = append(messages,
		llm.NewTextMessage(llm.RoleUser, "Context: "+retrieved),
		llm.NewTextMessage(llm.RoleUser, "Question: "+question),
	)

	s.logger.Debug("answering with context",
		"conversation_id", req.ConversationID,
		"question", utils.Truncate(question, 80),
		"history_messages", len(history),
		"context_bytes", len(retrieved),
	)

	return s.streamCompletion(c, messages, &worker.Job{
		ConversationID: req.ConversationID,
		Context:        retrieved,
		Model:          s.config.Completer.Model(),
	})
}

// streamCompletion opens the upstream stream and sets its transcoded text as
// the response body. When job is non-nil the completion is recorded into it.
func (s *Server) streamCompletion(c *fiber.Ctx, messages []llm.Message, job *worker.Job) error {
	// The stream outlives the handler: fasthttp reads the body after the
	// handler returns and recycles the request context, so the upstream call
	// runs under a background context.
	upstream, err := s.config.Completer.Stream(context.Background(), messages)
	if err != nil {
		var upErr *completion.UpstreamError
		if errors.As(err, &upErr) {
			s.logger.Error("upstream returned error",
				"status", upErr.StatusCode,
				"body", utils.Truncate(string(upErr.Body), 512),
			)
			if upErr.ContentType != "" {
				c.Set(fiber.HeaderContentType, upErr.ContentType)
			}
			return c.Status(upErr.StatusCode).Send(upErr.Body)
		}

		s.logger.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}

	var stream relay.Stream = relay.NewTranscoder(upstream)
	if job != nil {
		stream = s.config.Recorder.Record(stream, *job)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Status(fiber.StatusOK)

	// Unknown size (-1) gives chunked transfer encoding; fasthttp closes the
	// body once it is written or the client goes away.
	c.Context().Response.SetBodyStream(relay.NewBody(context.Background(), stream), -1)

	return nil
}

// checkConversation answers 404 when id names no stored conversation. An
// empty id is accepted.
func (s *Server) checkConversation(c *fiber.Ctx, id string) error {
	if id == "" {
		return nil
	}

	_, err := s.driver.GetConversation(c.Context(), id)
	if err == nil {
		return nil
	}

	var notFound storage.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: fmt.Sprintf("conversation %s not found", id)})
	}

	s.logger.Error("failed to load conversation", "conversation_id", id, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to load conversation"})
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req CreateConversationRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	id, err := s.driver.CreateConversation(c.Context(), req.UserID, req.Title)
	if err != nil {
		s.logger.Error("failed to create conversation", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to create conversation"})
	}

	return c.JSON(fiber.Map{"chatId": id})
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	msgs, err := s.driver.ListMessages(c.Context(), c.Query("conversationId"))
	if err != nil {
		s.logger.Error("failed to list messages", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list messages"})
	}
	if msgs == nil {
		msgs = []*storage.Message{}
	}

	return c.JSON(fiber.Map{"data": msgs})
}

func (s *Server) handleCreateMessage(c *fiber.Ctx) error {
	var req CreateMessageRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.Content == "" || req.Role == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "content and role are required"})
	}

	if err := s.checkConversation(c, req.ConversationID); err != nil {
		return err
	}

	msg, err := s.config.Persister.PersistAndPublish(c.Context(), worker.Job{
		ConversationID: req.ConversationID,
		Role:           req.Role,
		Content:        req.Content,
	})
	if err != nil {
		s.logger.Error("failed to store message", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to store message"})
	}

	return c.JSON(fiber.Map{"id": msg.ID})
}

func (s *Server) handleContext(c *fiber.Ctx) error {
	var req InputRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Input == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "input is required"})
	}

	retrieved, err := s.config.Retriever.Context(c.Context(), req.Input)
	if errors.Is(err, retrieval.ErrNotConfigured) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		s.logger.Error("context retrieval failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to retrieve context"})
	}

	return c.JSON(fiber.Map{"context": retrieved})
}

func (s *Server) handleEmbeddings(c *fiber.Ctx) error {
	if s.config.Embedder == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "embeddings are not configured"})
	}

	var req InputRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Input == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "input is required"})
	}

	embedding, err := s.config.Embedder.Embed(c.Context(), req.Input)
	if err != nil {
		s.logger.Error("embedding failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "failed to embed input"})
	}

	return c.JSON(fiber.Map{
		"embedding": embedding,
		"model":     s.config.Embedder.Model(),
	})
}
