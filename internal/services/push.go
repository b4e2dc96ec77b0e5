package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"go.uber.org/zap"
)

type PushSender interface {
	SendToToken(ctx context.Context, token string, payload NotificationPayload) error
	SendToTopic(ctx context.Context, topic string, payload NotificationPayload) error
}

// PushDispatcher turns domain events into device pushes, honouring each
// recipient's notification preferences.
type PushDispatcher struct {
	users  UserStore
	prefs  PreferenceStore
	sender PushSender
	log    *zap.Logger
}

func NewPushDispatcher(users UserStore, prefs PreferenceStore, sender PushSender, log *zap.Logger) *PushDispatcher {
	return &PushDispatcher{users: users, prefs: prefs, sender: sender, log: log}
}

func (d *PushDispatcher) Handle(ctx context.Context, ev DomainEvent) error {
	payload := NotificationPayload{
		Title: ev.Title,
		Body:  ev.Body,
		Data:  map[string]interface{}{"type": string(ev.Topic)},
		Tag:   string(ev.Topic),
	}
	for k, v := range ev.Data {
		payload.Data[k] = v
	}

	if ev.Broadcast {
		return d.sender.SendToTopic(ctx, RidesTopic, payload)
	}

	var errs []error
	for _, userID := range ev.Recipients {
		if err := d.sendTo(ctx, userID, ev.Topic, payload); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *PushDispatcher) sendTo(ctx context.Context, userID uint, topic Topic, payload NotificationPayload) error {
	prefs, err := d.prefs.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !wantsPush(prefs, topic) {
		return nil
	}
	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.FCMToken == "" {
		return nil
	}
	return d.sender.SendToToken(ctx, user.FCMToken, payload)
}

func wantsPush(p *models.NotificationPreference, topic Topic) bool {
	if !p.PushEnabled {
		return false
	}
	switch topic {
	case TopicRequestCreated, TopicRequestResponded:
		return p.RideRequestAlerts
	case TopicBookingConfirmed:
		return p.BookingAlerts
	case TopicMessageSent:
		return p.MessageAlerts
	case TopicRideStatusChanged:
		return p.RideStatusAlerts
	}
	return true
}

// RealtimeHandler forwards events to connected websockets.
func RealtimeHandler(n Notifier) EventHandler {
	return func(ctx context.Context, ev DomainEvent) error {
		if ev.Broadcast {
			return n.NotifyAll(ctx, string(ev.Topic), ev.Data)
		}
		var errs []error
		for _, userID := range ev.Recipients {
			if err := n.NotifyUser(ctx, userID, string(ev.Topic), ev.Data); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// Fanout runs every handler and reports all failures.
func Fanout(handlers ...EventHandler) EventHandler {
	return func(ctx context.Context, ev DomainEvent) error {
		var errs []error
		for _, h := range handlers {
			if err := h(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
