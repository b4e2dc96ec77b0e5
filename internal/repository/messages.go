package repository

import (
	"context"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(store *Store) *MessageRepository {
	return &MessageRepository{db: store.DB()}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return translate(conn(ctx, r.db).Create(msg).Error)
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := conn(ctx, r.db).First(&msg, id).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// Conversation pages through the messages exchanged by two users, newest
// first. A non-zero before restricts the page to older messages.
func (r *MessageRepository) Conversation(ctx context.Context, a, b uint, before time.Time, limit int) ([]models.Message, error) {
	q := conn(ctx, r.db).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}
	var msgs []models.Message
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&msgs).Error
	return msgs, translate(err)
}

// LatestPerCounterpart returns the newest message of each conversation the user is part of.
func (r *MessageRepository) LatestPerCounterpart(ctx context.Context, userID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := conn(ctx, r.db).Raw(`
		SELECT * FROM (
			SELECT DISTINCT ON (LEAST(sender_id, recipient_id), GREATEST(sender_id, recipient_id)) *
			FROM messages
			WHERE (sender_id = ? OR recipient_id = ?) AND deleted_at IS NULL
			ORDER BY LEAST(sender_id, recipient_id), GREATEST(sender_id, recipient_id), created_at DESC, id DESC
		) latest
		ORDER BY created_at DESC`, userID, userID).
		Scan(&msgs).Error
	return msgs, translate(err)
}

// MarkRead stamps the read time once; re-reading is a no-op.
func (r *MessageRepository) MarkRead(ctx context.Context, id uint, at time.Time) error {
	return translate(conn(ctx, r.db).Model(&models.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at).Error)
}
