package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"academy-assistant/internal/chat"
	"academy-assistant/internal/domain"
	"academy-assistant/internal/fallback"
)

const (
	defaultMaxContext    = 20
	defaultMaxMessageLen = 2000
)

// StateReadWriter persists conversation transcripts.
type StateReadWriter interface {
	GetConversationTurnCount(ctx context.Context, conversationID string) (int, error)
	GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	SaveCompletedTurn(ctx context.Context, conversationID, question, answer, status string, turns int) error
}

// Recorder observes chat outcomes.
type Recorder interface {
	ObserveChat(outcome string, elapsed time.Duration)
}

// Chat outcomes reported to the Recorder.
const (
	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"
	OutcomeInvalid  = "invalid"
)

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ChatService struct {
	llm             chat.Completer
	state           StateReadWriter
	fallback        *fallback.Responder
	recorder        Recorder
	logger          *slog.Logger
	systemPrompt    string
	maxContextItems int
	maxMessageLen   int
}

type ChatInput struct {
	Message        string
	History        []domain.ChatMessage
	ConversationID string
}

type ChatOutput struct {
	Content        string
	ConversationID string
	Fallback       bool
}

type Config struct {
	SystemPrompt    string
	MaxContextItems int
	MaxMessageLen   int
}

type Option func(*ChatService)

// WithState enables transcript persistence.
func WithState(s StateReadWriter) Option {
	return func(svc *ChatService) {
		svc.state = s
	}
}

func WithRecorder(r Recorder) Option {
	return func(svc *ChatService) {
		svc.recorder = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(svc *ChatService) {
		if l != nil {
			svc.logger = l
		}
	}
}

func WithFallback(r *fallback.Responder) Option {
	return func(svc *ChatService) {
		if r != nil {
			svc.fallback = r
		}
	}
}

func NewChatService(llm chat.Completer, cfg Config, opts ...Option) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if cfg.MaxContextItems <= 0 {
		cfg.MaxContextItems = defaultMaxContext
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = defaultMaxMessageLen
	}
	svc := &ChatService{
		llm:             llm,
		fallback:        fallback.Default(),
		logger:          slog.Default(),
		systemPrompt:    cfg.SystemPrompt,
		maxContextItems: cfg.MaxContextItems,
		maxMessageLen:   cfg.MaxMessageLen,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Chat relays one user message. Each call runs its own chat.Session seeded
// from the supplied or stored history. On upstream failure the output holds
// fallback content and the error is UPSTREAM_ERROR or RATE_LIMITED.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	start := time.Now()

	message := strings.TrimSpace(in.Message)
	if message == "" {
		s.observe(OutcomeInvalid, start)
		return ChatOutput{}, newError(ErrorInvalidInput, ReasonMessageRequired, nil)
	}
	if len(message) > s.maxMessageLen {
		s.observe(OutcomeInvalid, start)
		return ChatOutput{}, newError(ErrorInvalidInput, ReasonMessageTooLong, nil)
	}
	for _, m := range in.History {
		switch m.Role {
		case domain.RoleSystem, domain.RoleUser, domain.RoleAssistant:
		default:
			s.observe(OutcomeInvalid, start)
			return ChatOutput{}, newError(ErrorInvalidInput, ReasonInvalidHistory, nil)
		}
	}

	convID := strings.TrimSpace(in.ConversationID)
	stored := convID != ""
	if convID == "" {
		convID = newUUID()
	}

	history := in.History
	if len(history) == 0 && stored {
		history = s.loadHistory(ctx, convID)
	}

	session, err := chat.NewSession(s.llm,
		chat.WithSystemPrompt(s.systemPrompt),
		chat.WithFallback(s.fallback),
		chat.WithLogger(s.logger),
		chat.WithHistory(history),
	)
	if err != nil {
		s.observe(OutcomeFallback, start)
		return ChatOutput{Content: s.fallback.Respond(message), ConversationID: convID, Fallback: true},
			newError(ErrorInternal, "session_error", err)
	}

	reply := session.Send(ctx, message)
	out := ChatOutput{Content: reply.Content, ConversationID: convID, Fallback: reply.Fallback}

	status := domain.StatusComplete
	if reply.Fallback {
		status = domain.StatusFallback
	}
	s.saveTurn(ctx, convID, stored, message, reply.Content, status)

	if reply.Err != nil {
		s.observe(OutcomeFallback, start)
		s.logger.Error("chat completion failed", "conversation_id", convID, "err", reply.Err)
		if code, ok := upstreamStatusCode(reply.Err); ok && code == 429 {
			return out, newError(ErrorRateLimited, "completion_rate_limited", reply.Err)
		}
		return out, newError(ErrorUpstream, "completion_error", reply.Err)
	}

	s.observe(OutcomeAnswered, start)
	return out, nil
}

// loadHistory returns completed stored turns as chat messages. Store failures
// degrade to an empty history.
func (s *ChatService) loadHistory(ctx context.Context, convID string) []domain.ChatMessage {
	if s.state == nil {
		return nil
	}
	msgs, err := s.state.GetHistory(ctx, convID, s.maxContextItems)
	if err != nil {
		s.logger.Warn("failed to load conversation history", "conversation_id", convID, "err", err)
		return nil
	}
	var out []domain.ChatMessage
	for _, m := range msgs {
		out = append(out, historyToChatMessages(m)...)
	}
	return out
}

func (s *ChatService) saveTurn(ctx context.Context, convID string, existing bool, question, answer, status string) {
	if s.state == nil {
		return
	}
	turns := 0
	if existing {
		n, err := s.state.GetConversationTurnCount(ctx, convID)
		if err != nil {
			s.logger.Warn("failed to read turn count", "conversation_id", convID, "err", err)
		}
		turns = n
	}
	if err := s.state.SaveCompletedTurn(ctx, convID, question, answer, status, turns+1); err != nil {
		s.logger.Warn("failed to save conversation turn", "conversation_id", convID, "err", err)
	}
}

func (s *ChatService) observe(outcome string, start time.Time) {
	if s.recorder == nil {
		return
	}
	s.recorder.ObserveChat(outcome, time.Since(start))
}

func historyToChatMessages(m domain.Message) []domain.ChatMessage {
	if m.Status != domain.StatusComplete {
		return nil
	}
	question := strings.TrimSpace(m.Text)
	answer := strings.TrimSpace(m.Answer)
	if question == "" || answer == "" {
		return nil
	}
	return []domain.ChatMessage{
		{Role: domain.RoleUser, Content: question},
		{Role: domain.RoleAssistant, Content: answer},
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
