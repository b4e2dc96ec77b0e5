package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"go.uber.org/zap"
)

// ImageUploader stores an uploaded image and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, file *multipart.FileHeader, folder string) (string, error)
	DeleteImage(ctx context.Context, imageURL string) error
}

// PresenceChecker reports whether a user has a live websocket somewhere.
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID uint) (bool, error)
}

type ProfileInput struct {
	Name     *string `json:"name"`
	IsDriver *bool   `json:"isDriver"`
	Phone    *string `json:"phone"`
	Bio      *string `json:"bio"`
}

type UserService struct {
	users    UserStore
	uploader ImageUploader
	presence PresenceChecker
	log      *zap.Logger
}

func NewUserService(users UserStore, uploader ImageUploader, presence PresenceChecker, log *zap.Logger) *UserService {
	return &UserService{users: users, uploader: uploader, presence: presence, log: log}
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "User")
	}
	return user, nil
}

func (s *UserService) GetByAddress(ctx context.Context, address string) (*models.User, error) {
	user, err := s.users.FindByAddress(ctx, address)
	if err != nil {
		return nil, lookup(err, "User")
	}
	return user, nil
}

// UpdateProfile applies the fields present in the input. Absent fields are
// left alone.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) > 100 {
			return nil, invalid("name is too long")
		}
		fields["name"] = name
	}
	if in.IsDriver != nil {
		fields["is_driver"] = *in.IsDriver
	}
	if in.Phone != nil {
		fields["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Bio != nil {
		if len(*in.Bio) > 1000 {
			return nil, invalid("bio is too long")
		}
		fields["bio"] = *in.Bio
	}
	if len(fields) == 0 {
		return user, nil
	}

	if err := s.users.UpdateFields(ctx, userID, fields); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *UserService) UploadAvatar(ctx context.Context, userID uint, file *multipart.FileHeader) (*models.User, error) {
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		return nil, invalid("avatar must be an image")
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	url, err := s.uploader.UploadImage(ctx, file, "avatars")
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	previous := user.AvatarURL
	if err := s.users.UpdateFields(ctx, userID, map[string]interface{}{"avatar_url": url}); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	if previous != "" {
		if err := s.uploader.DeleteImage(ctx, previous); err != nil {
			s.log.Warn("failed to delete previous avatar", zap.Uint("userId", userID), zap.Error(err))
		}
	}
	return s.Get(ctx, userID)
}

func (s *UserService) SetVerified(ctx context.Context, userID uint, verified bool) (*models.User, error) {
	if err := s.users.SetVerified(ctx, userID, verified); err != nil {
		return nil, lookup(err, "User")
	}
	s.log.Info("driver verification changed", zap.Uint("userId", userID), zap.Bool("verified", verified))
	return s.Get(ctx, userID)
}

func (s *UserService) IsOnline(ctx context.Context, userID uint) (bool, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return false, err
	}
	if s.presence == nil {
		return false, nil
	}
	return s.presence.IsOnline(ctx, userID)
}
