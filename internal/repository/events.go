package repository

import (
	"context"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventFilter struct {
	Category string
	Query    string
	From     time.Time
}

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(store *Store) *EventRepository {
	return &EventRepository{db: store.DB()}
}

func (r *EventRepository) Create(ctx context.Context, event *models.CommunityEvent) error {
	return translate(conn(ctx, r.db).Create(event).Error)
}

func (r *EventRepository) FindByID(ctx context.Context, id uint) (*models.CommunityEvent, error) {
	var event models.CommunityEvent
	err := conn(ctx, r.db).Preload("Organizer").Preload("Attendees.User").First(&event, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (r *EventRepository) List(ctx context.Context, f EventFilter) ([]models.CommunityEvent, error) {
	q := conn(ctx, r.db).Preload("Organizer").Where("starts_at >= ?", f.From)
	if f.Category != "" {
		q = q.Where("LOWER(category) = LOWER(?)", f.Category)
	}
	if f.Query != "" {
		pattern := containsPattern(f.Query)
		q = q.Where("title ILIKE ? OR description ILIKE ? OR location ILIKE ?", pattern, pattern, pattern)
	}
	var events []models.CommunityEvent
	err := q.Order("starts_at ASC").Find(&events).Error
	return events, translate(err)
}

// AddAttendee registers a user while holding a row lock on the event so the
// capacity check cannot be raced. Must run inside a transaction.
func (r *EventRepository) AddAttendee(ctx context.Context, eventID, userID uint) error {
	db := conn(ctx, r.db)

	var event models.CommunityEvent
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, eventID).Error; err != nil {
		return translate(err)
	}

	if event.Capacity > 0 {
		var count int64
		if err := db.Model(&models.EventAttendee{}).Where("event_id = ?", eventID).Count(&count).Error; err != nil {
			return translate(err)
		}
		if count >= int64(event.Capacity) {
			return ErrCapacityReached
		}
	}

	return translate(db.Create(&models.EventAttendee{EventID: eventID, UserID: userID}).Error)
}

func (r *EventRepository) RemoveAttendee(ctx context.Context, eventID, userID uint) error {
	res := conn(ctx, r.db).Unscoped().
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&models.EventAttendee{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
