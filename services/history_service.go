package services

import (
	"context"
	"fmt"

	"chat-relay/contract"
	"chat-relay/domain"

	"github.com/samber/lo"
)

// HistoryService provides the bounded recent history of a room.
type HistoryService struct {
	store contract.MessageStore
	limit int
}

func NewHistoryService(store contract.MessageStore, limit int) *HistoryService {
	return &HistoryService{store: store, limit: limit}
}

// Recent fetches the last messages of the room newest first and returns them oldest first for display.
func (s *HistoryService) Recent(ctx context.Context, room domain.RoomName) ([]domain.Message, error) {
	messages, err := s.store.FindMessages(ctx, room, s.limit)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", room, err)
	}
	return lo.Reverse(messages), nil
}
