// Package chat holds the conversation proxy: a bounded window of turns that is
// relayed to a completion API, with rule-based answers when the API fails.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"academy-assistant/internal/domain"
	"academy-assistant/internal/fallback"
)

// MaxConversationTurns is the number of non-system turns kept in the window.
const MaxConversationTurns = 10

// DefaultSystemPrompt is the fixed first turn of every conversation.
const DefaultSystemPrompt = "You are a friendly assistant for a tech education academy. " +
	"Help visitors and students with questions about courses, registration, pricing, schedules, " +
	"certificates and career support. Keep answers concise and professional, and suggest " +
	"contacting the support team when you do not know the answer."

// ErrEmptyMessage is reported when Send is called with blank text.
var ErrEmptyMessage = errors.New("chat: message is empty")

// ErrEmptyCompletion is reported when the upstream returns no text.
var ErrEmptyCompletion = errors.New("chat: empty completion")

// Completer sends an ordered turn list upstream and returns the reply text.
type Completer interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// State is the session's position in the send cycle.
type State int

const (
	Idle State = iota
	AwaitingReply
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingReply:
		return "awaiting_reply"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Reply is the outcome of one Send. Content is never empty. Err carries the
// upstream failure, if any, for diagnostics only.
type Reply struct {
	Content  string
	Err      error
	Fallback bool
}

// Session is a single conversation. Send calls on one Session are serialized;
// separate sessions share nothing.
type Session struct {
	llm      Completer
	fallback *fallback.Responder
	logger   *slog.Logger
	system   domain.ChatMessage
	maxTurns int

	mu       sync.Mutex
	stateMu  sync.RWMutex
	state    State
	turns    []domain.ChatMessage
	seedWith []domain.ChatMessage
}

type Option func(*Session)

// WithSystemPrompt replaces the default system turn. Blank prompts are ignored.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) {
		if p := strings.TrimSpace(prompt); p != "" {
			s.system = domain.ChatMessage{Role: domain.RoleSystem, Content: p}
		}
	}
}

// WithFallback replaces the default fallback responder.
func WithFallback(r *fallback.Responder) Option {
	return func(s *Session) {
		if r != nil {
			s.fallback = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistory seeds the window with prior user and assistant turns.
func WithHistory(history []domain.ChatMessage) Option {
	return func(s *Session) {
		s.seedWith = history
	}
}

func NewSession(llm Completer, opts ...Option) (*Session, error) {
	if llm == nil {
		return nil, errors.New("chat: completer must not be nil")
	}
	s := &Session{
		llm:      llm,
		fallback: fallback.Default(),
		logger:   slog.Default(),
		system:   domain.ChatMessage{Role: domain.RoleSystem, Content: DefaultSystemPrompt},
		maxTurns: MaxConversationTurns,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.turns = []domain.ChatMessage{s.system}
	for _, m := range s.seedWith {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		s.append(m)
	}
	s.seedWith = nil
	return s, nil
}

// Send appends userText, relays the window upstream and returns the reply.
// It never fails: upstream errors produce a fallback reply.
func (s *Session) Send(ctx context.Context, userText string) Reply {
	text := strings.TrimSpace(userText)
	if text == "" {
		return Reply{Content: s.fallback.Generic(), Err: ErrEmptyMessage, Fallback: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.setState(AwaitingReply)
	defer s.setState(Idle)

	s.append(domain.ChatMessage{Role: domain.RoleUser, Content: text})

	content, err := s.complete(ctx)
	if err != nil {
		s.logger.Warn("completion failed, using fallback", "err", err)
		return Reply{Content: s.fallback.Respond(text), Err: err, Fallback: true}
	}

	s.append(domain.ChatMessage{Role: domain.RoleAssistant, Content: content})
	return Reply{Content: content}
}

func (s *Session) complete(ctx context.Context) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chat: completer panic: %v", r)
		}
	}()

	window := make([]domain.ChatMessage, len(s.turns))
	copy(window, s.turns)

	content, err = s.llm.Chat(ctx, window)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// Clear discards every turn except the system turn.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = []domain.ChatMessage{s.system}
}

// History returns a copy of the current turn list, system turn first.
func (s *Session) History() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// append adds m and trims the window to the system turn plus the most recent
// maxTurns turns. Callers hold s.mu or own s exclusively.
func (s *Session) append(m domain.ChatMessage) {
	s.turns = append(s.turns, m)
	if over := len(s.turns) - (s.maxTurns + 1); over > 0 {
		trimmed := make([]domain.ChatMessage, 0, s.maxTurns+1)
		trimmed = append(trimmed, s.turns[0])
		trimmed = append(trimmed, s.turns[1+over:]...)
		s.turns = trimmed
	}
}
