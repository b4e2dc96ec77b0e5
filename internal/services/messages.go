package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"go.uber.org/zap"
)

const (
	defaultConversationLimit = 50
	maxConversationLimit     = 200
)

type MessageInput struct {
	RecipientID uint   `json:"recipientId" binding:"required"`
	Body        string `json:"body" binding:"required"`
	RideID      *uint  `json:"rideId"`
}

type MessageService struct {
	repos Repos
	bus   EventBus
	log   *zap.Logger
	now   func() time.Time
}

func NewMessageService(repos Repos, bus EventBus, log *zap.Logger) *MessageService {
	return &MessageService{repos: repos, bus: bus, log: log, now: time.Now}
}

func (s *MessageService) Send(ctx context.Context, senderID uint, in MessageInput) (*models.Message, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, invalid("message body is required")
	}
	if utf8.RuneCountInString(body) > models.MaxMessageLength {
		return nil, invalid("message is longer than %d characters", models.MaxMessageLength)
	}
	if in.RecipientID == senderID {
		return nil, invalid("You cannot message yourself")
	}
	if _, err := s.repos.Users.FindByID(ctx, in.RecipientID); err != nil {
		return nil, lookup(err, "Recipient")
	}
	if in.RideID != nil {
		if _, err := s.repos.Rides.FindByID(ctx, *in.RideID); err != nil {
			return nil, lookup(err, "Ride")
		}
	}

	msg := &models.Message{
		SenderID:    senderID,
		RecipientID: in.RecipientID,
		RideID:      in.RideID,
		Body:        body,
	}
	if err := s.repos.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	emit(ctx, s.bus, s.log, DomainEvent{
		Topic:      TopicMessageSent,
		Recipients: []uint{in.RecipientID},
		Title:      "New message",
		Body:       preview(body),
		Data:       map[string]interface{}{"message": msg},
	})
	return msg, nil
}

func preview(body string) string {
	const limit = 80
	if utf8.RuneCountInString(body) <= limit {
		return body
	}
	return string([]rune(body)[:limit]) + "..."
}

// Conversation pages backwards from before, newest first.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID uint, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultConversationLimit
	}
	if limit > maxConversationLimit {
		limit = maxConversationLimit
	}
	if before.IsZero() {
		before = s.now()
	}
	msgs, err := s.repos.Messages.Conversation(ctx, userID, otherID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return msgs, nil
}

// Conversations returns the latest message exchanged with each counterpart.
func (s *MessageService) Conversations(ctx context.Context, userID uint) ([]models.Message, error) {
	msgs, err := s.repos.Messages.LatestPerCounterpart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return msgs, nil
}

func (s *MessageService) MarkRead(ctx context.Context, userID, messageID uint) (*models.Message, error) {
	msg, err := s.repos.Messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, lookup(err, "Message")
	}
	if msg.RecipientID != userID {
		return nil, newError(ErrForbidden, "Only the recipient can mark a message as read")
	}
	if msg.ReadAt != nil {
		return msg, nil
	}
	now := s.now()
	if err := s.repos.Messages.MarkRead(ctx, messageID, now); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	msg.ReadAt = &now
	return msg, nil
}
