package domain

// Turn statuses persisted with every stored message.
const (
	StatusComplete = "complete"
	StatusFallback = "fallback"
)

// Message is a single persisted conversation turn: the user's text and the
// reply that was returned for it.
type Message struct {
	PK             string `json:"-"`
	SK             string `json:"-"`
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	Answer         string `json:"answer"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
	TTL            int64  `json:"-"`
}

// ConversationMeta stores aggregate conversation state.
type ConversationMeta struct {
	PK             string
	SK             string
	ConversationID string
	LastActivity   string
	Turns          int
	TTL            int64
}
