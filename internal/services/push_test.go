package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentPush struct {
	target  string
	payload NotificationPayload
}

type fakeSender struct {
	mu     sync.Mutex
	tokens []sentPush
	topics []sentPush
}

func (s *fakeSender) SendToToken(_ context.Context, token string, payload NotificationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, sentPush{token, payload})
	return nil
}

func (s *fakeSender) SendToTopic(_ context.Context, topic string, payload NotificationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, sentPush{topic, payload})
	return nil
}

func TestPushDispatcherHonoursPreferences(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	repos := db.repos()
	eager := db.addUser(models.User{FCMToken: "token-eager"})
	quiet := db.addUser(models.User{FCMToken: "token-quiet"})
	silent := db.addUser(models.User{})

	notifications := NewNotificationService(repos.Users, repos.Preferences, nil, testLogger())
	off := false
	_, err := notifications.UpdatePreferences(ctx, quiet.ID, PreferenceInput{BookingAlerts: &off})
	require.NoError(t, err)

	sender := &fakeSender{}
	d := NewPushDispatcher(repos.Users, repos.Preferences, sender, testLogger())

	err = d.Handle(ctx, DomainEvent{
		Topic:      TopicBookingConfirmed,
		Recipients: []uint{eager.ID, quiet.ID, silent.ID},
		Title:      "New booking",
		Data:       map[string]interface{}{"rideId": uint(7)},
	})
	require.NoError(t, err)

	require.Len(t, sender.tokens, 1)
	assert.Equal(t, "token-eager", sender.tokens[0].target)
	assert.Equal(t, "booking.confirmed", sender.tokens[0].payload.Data["type"])
	assert.Equal(t, uint(7), sender.tokens[0].payload.Data["rideId"])

	err = d.Handle(ctx, DomainEvent{Topic: TopicMessageSent, Recipients: []uint{quiet.ID}})
	require.NoError(t, err)
	assert.Len(t, sender.tokens, 2, "other alert kinds stay on")
}

func TestPushDispatcherBroadcastsToTopic(t *testing.T) {
	db := newMemDB()
	repos := db.repos()
	sender := &fakeSender{}
	d := NewPushDispatcher(repos.Users, repos.Preferences, sender, testLogger())

	require.NoError(t, d.Handle(context.Background(), DomainEvent{Topic: TopicRideCreated, Broadcast: true}))
	require.Len(t, sender.topics, 1)
	assert.Equal(t, RidesTopic, sender.topics[0].target)
	assert.Empty(t, sender.tokens)
}

type fakeTopics struct {
	subscribed   []string
	unsubscribed []string
}

func (f *fakeTopics) SubscribeToTopic(_ context.Context, tokens []string, _ string) error {
	f.subscribed = append(f.subscribed, tokens...)
	return nil
}

func (f *fakeTopics) UnsubscribeFromTopic(_ context.Context, tokens []string, _ string) error {
	f.unsubscribed = append(f.unsubscribed, tokens...)
	return nil
}

func TestRegisterAndRemoveToken(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	repos := db.repos()
	user := db.addUser(models.User{})
	topics := &fakeTopics{}
	svc := NewNotificationService(repos.Users, repos.Preferences, topics, testLogger())

	assert.ErrorIs(t, svc.RegisterToken(ctx, user.ID, "  "), ErrValidation)

	require.NoError(t, svc.RegisterToken(ctx, user.ID, "device-1"))
	assert.Equal(t, "device-1", db.user(user.ID).FCMToken)
	assert.Equal(t, []string{"device-1"}, topics.subscribed)

	require.NoError(t, svc.RemoveToken(ctx, user.ID))
	assert.Empty(t, db.user(user.ID).FCMToken)
	assert.Equal(t, []string{"device-1"}, topics.unsubscribed)
}

type recordingNotifier struct {
	mu    sync.Mutex
	users []uint
	all   int
}

func (n *recordingNotifier) NotifyUser(_ context.Context, userID uint, _ string, _ interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	return nil
}

func (n *recordingNotifier) NotifyAll(_ context.Context, _ string, _ interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all++
	return nil
}

func TestLocalBusFansOutAfterPublish(t *testing.T) {
	db := newMemDB()
	driver := db.addUser(models.User{IsDriver: true})
	rider := db.addUser(models.User{})
	ride := db.addRide(models.Ride{DriverID: driver.ID, SeatsTotal: 2})

	notifier := &recordingNotifier{}
	sender := &fakeSender{}
	bus := NewLocalBus(testLogger())
	bus.Subscribe(Fanout(
		RealtimeHandler(notifier),
		NewPushDispatcher(db.repos().Users, db.repos().Preferences, sender, testLogger()).Handle,
	))

	svc := NewBookingService(db.repos(), bus, testLogger())
	_, err := svc.Book(context.Background(), ride.ID, rider.ID, 1)
	require.NoError(t, err)
	bus.Wait()

	assert.Equal(t, []uint{driver.ID}, notifier.users)
	assert.Empty(t, sender.tokens, "driver has no device token")
}

func TestEmitSkipsEventsWithoutAudience(t *testing.T) {
	bus := &recordingBus{}
	emit(context.Background(), bus, testLogger(), DomainEvent{Topic: TopicRideStatusChanged})
	assert.Empty(t, bus.events)

	emit(context.Background(), bus, testLogger(), DomainEvent{Topic: TopicRideCreated, Broadcast: true})
	require.Len(t, bus.events, 1)
	assert.WithinDuration(t, time.Now(), bus.events[0].OccurredAt, time.Second)
}
