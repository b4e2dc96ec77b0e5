package repository

import (
	"context"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(store *Store) *ReviewRepository {
	return &ReviewRepository{db: store.DB()}
}

func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	return translate(conn(ctx, r.db).Create(review).Error)
}

func (r *ReviewRepository) ListByReviewee(ctx context.Context, revieweeID uint) ([]models.Review, error) {
	var reviews []models.Review
	err := conn(ctx, r.db).Preload("Reviewer").
		Where("reviewee_id = ?", revieweeID).
		Order("created_at DESC").
		Find(&reviews).Error
	return reviews, translate(err)
}
