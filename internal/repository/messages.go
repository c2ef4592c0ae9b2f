// Package repository stores conversation transcripts in DynamoDB or Redis.
package repository

import (
	"time"

	"academy-assistant/internal/domain"
)

func newMessage(conversationID, question, answer, status string, now time.Time) domain.Message {
	return domain.Message{
		ConversationID: conversationID,
		Text:           question,
		Answer:         answer,
		Status:         status,
		CreatedAt:      now.UTC().Format(time.RFC3339Nano),
	}
}

func newConversationMeta(conversationID string, turns int, now time.Time) domain.ConversationMeta {
	return domain.ConversationMeta{
		ConversationID: conversationID,
		LastActivity:   now.UTC().Format(time.RFC3339),
		Turns:          turns,
	}
}

func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
