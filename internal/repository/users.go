package repository

import (
	"context"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{db: store.DB()}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return translate(conn(ctx, r.db).Create(user).Error)
}

// UpdateFields writes only the given columns, so concurrent rating and
// verification updates on the same row survive.
func (r *UserRepository) UpdateFields(ctx context.Context, userID uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := conn(ctx, r.db).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDriver flags the user as a driver. Already being one is not an error.
func (r *UserRepository) MarkDriver(ctx context.Context, userID uint) error {
	return translate(conn(ctx, r.db).Model(&models.User{}).
		Where("id = ? AND is_driver = ?", userID, false).
		Update("is_driver", true).Error)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByAddress(ctx context.Context, address string) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).
		Where("wallet_address = ?", models.NormalizeAddress(address)).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// VerifiedDriverIDs lists drivers flagged as identity-checked.
func (r *UserRepository) VerifiedDriverIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := conn(ctx, r.db).Model(&models.User{}).
		Where("is_driver = ? AND is_verified = ?", true, true).
		Pluck("id", &ids).Error
	return ids, translate(err)
}

// ApplyRating folds one more review into the running average.
func (r *UserRepository) ApplyRating(ctx context.Context, userID uint, rating int) error {
	res := conn(ctx, r.db).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"rating":       gorm.Expr("(rating * review_count + ?) / (review_count + 1)", rating),
			"review_count": gorm.Expr("review_count + 1"),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetVerified(ctx context.Context, userID uint, verified bool) error {
	res := conn(ctx, r.db).Model(&models.User{}).Where("id = ?", userID).Update("is_verified", verified)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetFCMToken(ctx context.Context, userID uint, token string) error {
	return translate(conn(ctx, r.db).Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", token).Error)
}
