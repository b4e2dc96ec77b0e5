package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"go.uber.org/zap"
)

type PreferenceInput struct {
	PushEnabled       *bool `json:"pushEnabled"`
	RideRequestAlerts *bool `json:"rideRequestAlerts"`
	BookingAlerts     *bool `json:"bookingAlerts"`
	MessageAlerts     *bool `json:"messageAlerts"`
	RideStatusAlerts  *bool `json:"rideStatusAlerts"`
}

// TopicSubscriber enrols device tokens in broadcast topics.
type TopicSubscriber interface {
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) error
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error
}

type NotificationService struct {
	users  UserStore
	prefs  PreferenceStore
	topics TopicSubscriber
	log    *zap.Logger
}

// NewNotificationService builds the service; topics may be nil.
func NewNotificationService(users UserStore, prefs PreferenceStore, topics TopicSubscriber, log *zap.Logger) *NotificationService {
	return &NotificationService{users: users, prefs: prefs, topics: topics, log: log}
}

func (s *NotificationService) Preferences(ctx context.Context, userID uint) (*models.NotificationPreference, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return prefs, nil
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID uint, in PreferenceInput) (*models.NotificationPreference, error) {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&prefs.PushEnabled, in.PushEnabled)
	set(&prefs.RideRequestAlerts, in.RideRequestAlerts)
	set(&prefs.BookingAlerts, in.BookingAlerts)
	set(&prefs.MessageAlerts, in.MessageAlerts)
	set(&prefs.RideStatusAlerts, in.RideStatusAlerts)

	if err := s.prefs.Save(ctx, prefs); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	return prefs, nil
}

func (s *NotificationService) RegisterToken(ctx context.Context, userID uint, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("token is required")
	}
	if err := s.users.SetFCMToken(ctx, userID, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if s.topics != nil {
		if err := s.topics.SubscribeToTopic(ctx, []string{token}, RidesTopic); err != nil {
			s.log.Warn("failed to subscribe device to rides topic", zap.Uint("userId", userID), zap.Error(err))
		}
	}
	return nil
}

func (s *NotificationService) RemoveToken(ctx context.Context, userID uint) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return lookup(err, "User")
	}
	if err := s.users.SetFCMToken(ctx, userID, ""); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if s.topics != nil && user.FCMToken != "" {
		if err := s.topics.UnsubscribeFromTopic(ctx, []string{user.FCMToken}, RidesTopic); err != nil {
			s.log.Warn("failed to unsubscribe device from rides topic", zap.Uint("userId", userID), zap.Error(err))
		}
	}
	return nil
}
