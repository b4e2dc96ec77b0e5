package services

import (
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// RidesTopic is the FCM topic every registered device follows for new rides.
const RidesTopic = "new-rides"

// NotificationPayload represents the notification data
type NotificationPayload struct {
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Image     string                 `json:"image,omitempty"`
	ChannelID string                 `json:"channelId,omitempty"` // Android notification channel
	Tag       string                 `json:"tag,omitempty"`       // Android notification tag
}

// FCMSender sends push notifications through Firebase Cloud Messaging. With
// no credentials configured it logs and skips every send.
type FCMSender struct {
	client *messaging.Client
	log    *zap.Logger
}

// InitFirebase initializes Firebase Admin SDK
func InitFirebase(ctx context.Context, serviceAccountPath string, log *zap.Logger) (*FCMSender, error) {
	if serviceAccountPath == "" {
		log.Warn("FIREBASE_SERVICE_ACCOUNT_PATH not set, push notifications are disabled")
		return &FCMSender{log: log}, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	log.Info("Firebase Cloud Messaging initialized")
	return &FCMSender{client: client, log: log}, nil
}

// Enabled reports whether sends reach Firebase.
func (s *FCMSender) Enabled() bool {
	return s.client != nil
}

func androidConfig(payload NotificationPayload) *messaging.AndroidConfig {
	channelID := payload.ChannelID
	if channelID == "" {
		channelID = "ridepool_default"
	}
	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Sound:                 "default",
			ChannelID:             channelID,
			Priority:              messaging.PriorityHigh,
			DefaultSound:          true,
			Icon:                  "ic_stat_logo",
			Color:                 "#3D5AFE",
			Tag:                   payload.Tag,
			DefaultVibrateTimings: true,
		},
	}
}

func apnsConfig() *messaging.APNSConfig {
	badge := 1
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Sound:            "default",
				Badge:            &badge,
				MutableContent:   true,
				ContentAvailable: true,
			},
		},
	}
}

// stringData flattens the payload data; FCM only carries string values.
func stringData(data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case string:
			out[key] = v
		case fmt.Stringer:
			out[key] = v.String()
		case int, int64, uint, float64, bool:
			out[key] = fmt.Sprintf("%v", v)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out[key] = string(raw)
		}
	}
	return out
}

func (s *FCMSender) message(payload NotificationPayload) *messaging.Message {
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title:    payload.Title,
			Body:     payload.Body,
			ImageURL: payload.Image,
		},
		Data:    stringData(payload.Data),
		Android: androidConfig(payload),
		APNS:    apnsConfig(),
	}
	return msg
}

// SendToToken sends a notification to a specific FCM token
func (s *FCMSender) SendToToken(ctx context.Context, token string, payload NotificationPayload) error {
	if s.client == nil {
		s.log.Debug("firebase not initialized, skipping notification")
		return nil
	}
	msg := s.message(payload)
	msg.Token = token
	response, err := s.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	s.log.Debug("notification sent", zap.String("response", response))
	return nil
}

// SendToTopic sends a notification to a topic
func (s *FCMSender) SendToTopic(ctx context.Context, topic string, payload NotificationPayload) error {
	if s.client == nil {
		s.log.Debug("firebase not initialized, skipping topic notification")
		return nil
	}
	msg := s.message(payload)
	msg.Topic = topic
	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("error sending topic message: %w", err)
	}
	return nil
}

// SubscribeToTopic subscribes tokens to a topic for targeted messaging
func (s *FCMSender) SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	if s.client == nil {
		return nil
	}
	response, err := s.client.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return fmt.Errorf("error subscribing to topic: %w", err)
	}
	if response.FailureCount > 0 {
		s.log.Warn("some tokens failed to subscribe", zap.String("topic", topic), zap.Int("failures", response.FailureCount))
	}
	return nil
}

// UnsubscribeFromTopic unsubscribes tokens from a topic
func (s *FCMSender) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error {
	if s.client == nil {
		return nil
	}
	if _, err := s.client.UnsubscribeFromTopic(ctx, tokens, topic); err != nil {
		return fmt.Errorf("error unsubscribing from topic: %w", err)
	}
	return nil
}
