package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-relay/internal/apperror"
	"chat-relay/internal/models"
	"chat-relay/internal/repositories"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Identity is the caller bound to a realtime connection.
type Identity struct {
	UserID   int64
	Username string
}

// MessageService persists point-to-point messages.
type MessageService struct {
	users    repositories.UserRepository
	messages repositories.MessageRepository
}

// NewMessageService builds a MessageService.
func NewMessageService(users repositories.UserRepository, messages repositories.MessageRepository) *MessageService {
	return &MessageService{users: users, messages: messages}
}

// Send resolves the recipient, stores the message and returns the payload to
// deliver. Nothing is written when the recipient does not exist.
func (s *MessageService) Send(ctx context.Context, sender Identity, recipient, body string) (models.Delivery, error) {
	if recipient == "" || body == "" {
		return models.Delivery{}, apperror.Validation("recipient", "Recipient and message required")
	}

	to, err := s.users.GetByUsername(ctx, recipient)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.Delivery{}, apperror.NotFound("Recipient not found")
		}
		return models.Delivery{}, apperror.Internal("Error sending message", fmt.Errorf("resolve recipient: %w", err))
	}

	msg, err := s.messages.CreateMessage(ctx, sender.UserID, to.ID, body)
	if err != nil {
		return models.Delivery{}, apperror.Internal("Error sending message", fmt.Errorf("create message: %w", err))
	}

	sentAt := msg.CreatedAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	return models.Delivery{
		Sender:    sender.Username,
		Message:   body,
		Timestamp: sentAt.UTC().Format(TimestampLayout),
	}, nil
}
