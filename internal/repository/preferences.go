package repository

import (
	"context"
	"errors"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
)

type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(store *Store) *PreferenceRepository {
	return &PreferenceRepository{db: store.DB()}
}

// Get returns the user's preferences, creating the defaults on first access.
func (r *PreferenceRepository) Get(ctx context.Context, userID uint) (*models.NotificationPreference, error) {
	db := conn(ctx, r.db)
	var prefs models.NotificationPreference
	err := db.Where("user_id = ?", userID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := models.DefaultPreferences(userID)
		if err := db.Create(defaults).Error; err != nil {
			return nil, translate(err)
		}
		return defaults, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &prefs, nil
}

func (r *PreferenceRepository) Save(ctx context.Context, prefs *models.NotificationPreference) error {
	return translate(conn(ctx, r.db).Save(prefs).Error)
}
