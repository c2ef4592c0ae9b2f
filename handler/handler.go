package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"academy-assistant/internal/domain"
	"academy-assistant/internal/fallback"
	"academy-assistant/internal/usecase"
)

const maxBodyBytes = 64 << 10

// Client-visible error messages.
const (
	msgMessageRequired = "Message is required"
	msgMessageTooLong  = "Message is too long"
	msgInvalidBody     = "Invalid request body"
	msgInvalidHistory  = "Invalid conversation history"
	msgInvalidConvID   = "Invalid conversation id"
	msgUpstreamFailure = "Failed to get response from AI service"
	msgInternal        = "Internal server error"
)

// ChatUseCase is the relay consumed by the HTTP surface.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type historyEntry struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

type chatRequest struct {
	Message             string         `json:"message" validate:"required"`
	ConversationHistory []historyEntry `json:"conversationHistory" validate:"omitempty,max=100,dive"`
	ConversationID      string         `json:"conversationId" validate:"omitempty,max=128"`
}

type chatResponse struct {
	Content        string `json:"content"`
	Success        bool   `json:"success"`
	ConversationID string `json:"conversationId,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Content string `json:"content,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Handler struct {
	uc             ChatUseCase
	validate       *validator.Validate
	logger         *slog.Logger
	metrics        http.Handler
	allowedOrigins []string
	generic        string
	router         http.Handler
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetricsHandler mounts a Prometheus exposition handler at /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.allowedOrigins = origins
	}
}

func NewHandler(uc ChatUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	h := &Handler{
		uc:       uc,
		validate: newValidator(),
		logger:   slog.Default(),
		generic:  fallback.GenericResponse,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.routes()
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Health reports liveness.
//
//	GET /api/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "OK", Message: "Server is running"})
}

// Chat relays a user message to the assistant.
//
//	POST /api/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("correlation_id", CorrelationID(r.Context()))

	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, msgMessageRequired, usecase.ErrorInvalidInput, "")
			return
		}
		logger.Info("rejected chat request", "reason", "invalid_body", "err", err)
		writeError(w, http.StatusBadRequest, msgInvalidBody, usecase.ErrorInvalidInput, "")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		msg := validationMessage(err)
		logger.Info("rejected chat request", "reason", msg)
		writeError(w, http.StatusBadRequest, msg, usecase.ErrorInvalidInput, "")
		return
	}

	history := make([]domain.ChatMessage, 0, len(req.ConversationHistory))
	for _, e := range req.ConversationHistory {
		history = append(history, domain.ChatMessage{Role: e.Role, Content: e.Content})
	}

	out, err := h.uc.Chat(r.Context(), usecase.ChatInput{
		Message:        req.Message,
		History:        history,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		h.writeUseCaseError(w, logger, out, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Content:        out.Content,
		Success:        true,
		ConversationID: out.ConversationID,
	})
}

func (h *Handler) writeUseCaseError(w http.ResponseWriter, logger *slog.Logger, out usecase.ChatOutput, err error) {
	content := out.Content
	if content == "" {
		content = h.generic
	}

	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.Error("chat failed", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal, usecase.ErrorInternal, content)
		return
	}

	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		writeError(w, http.StatusBadRequest, invalidInputMessage(ucErr.Reason), ucErr.Code, "")
	case usecase.ErrorUpstream, usecase.ErrorRateLimited:
		logger.Warn("chat answered from fallback", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
		writeError(w, http.StatusInternalServerError, msgUpstreamFailure, ucErr.Code, content)
	default:
		logger.Error("chat failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
		writeError(w, http.StatusInternalServerError, msgInternal, usecase.ErrorInternal, content)
	}
}

func invalidInputMessage(reason string) string {
	switch reason {
	case usecase.ReasonMessageTooLong:
		return msgMessageTooLong
	case usecase.ReasonInvalidHistory:
		return msgInvalidHistory
	default:
		return msgMessageRequired
	}
}

// newValidator reports field errors by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return msgInvalidBody
	}
	fe := verrs[0]
	switch {
	case strings.Contains(fe.Namespace(), "conversationHistory"):
		return msgInvalidHistory
	case fe.Field() == "conversationId":
		return msgInvalidConvID
	case fe.Field() == "message":
		return msgMessageRequired
	default:
		return msgInvalidBody
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, code usecase.ErrorCode, content string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: string(code), Content: content})
}
