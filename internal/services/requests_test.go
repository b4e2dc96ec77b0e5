package services

import (
	"context"
	"testing"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRideRequestAcceptCreatesBooking(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	driver := db.addUser(models.User{IsDriver: true})
	rider := db.addUser(models.User{})
	ride := db.addRide(models.Ride{DriverID: driver.ID, SeatsTotal: 3, Price: 2})

	bus := &recordingBus{}
	svc := NewBookingService(db.repos(), bus, testLogger())

	req, err := svc.CreateRequest(ctx, rider.ID, ride.ID, 2, " see you there ")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, "see you there", req.Message)
	assert.Equal(t, 3, db.ride(ride.ID).SeatsAvailable, "requests do not hold seats")

	_, _, err = svc.RespondToRequest(ctx, rider.ID, req.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	answered, booking, err := svc.RespondToRequest(ctx, driver.ID, req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, answered.Status)
	assert.NotNil(t, answered.RespondedAt)
	require.NotNil(t, booking)
	require.NotNil(t, booking.RequestID)
	assert.Equal(t, req.ID, *booking.RequestID)
	assert.Equal(t, 4.0, booking.TotalPrice)
	assert.Equal(t, 1, db.ride(ride.ID).SeatsAvailable)

	_, _, err = svc.RespondToRequest(ctx, driver.ID, req.ID, true)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, db.ride(ride.ID).SeatsAvailable)

	assert.Equal(t, []Topic{TopicRequestCreated, TopicRequestResponded}, bus.topics())
}

func TestRideRequestAcceptWithoutSeatsStaysPending(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	driver := db.addUser(models.User{IsDriver: true})
	alice := db.addUser(models.User{})
	bob := db.addUser(models.User{})
	ride := db.addRide(models.Ride{DriverID: driver.ID, SeatsTotal: 2})
	svc := NewBookingService(db.repos(), nil, testLogger())

	req, err := svc.CreateRequest(ctx, alice.ID, ride.ID, 2, "")
	require.NoError(t, err)
	_, err = svc.Book(ctx, ride.ID, bob.ID, 1)
	require.NoError(t, err)

	_, _, err = svc.RespondToRequest(ctx, driver.ID, req.ID, true)
	assert.ErrorIs(t, err, ErrInsufficientSeats)

	got, err := db.repos().Requests.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, got.Status)
}

func TestRideRequestValidation(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	driver := db.addUser(models.User{IsDriver: true})
	rider := db.addUser(models.User{})
	ride := db.addRide(models.Ride{DriverID: driver.ID, SeatsTotal: 2})
	svc := NewBookingService(db.repos(), nil, testLogger())

	_, err := svc.CreateRequest(ctx, driver.ID, ride.ID, 1, "")
	assert.ErrorIs(t, err, ErrSelfBooking)

	_, err = svc.CreateRequest(ctx, rider.ID, ride.ID, 3, "")
	assert.ErrorIs(t, err, ErrInsufficientSeats)

	_, err = svc.CreateRequest(ctx, rider.ID, ride.ID, 1, "")
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, rider.ID, ride.ID, 1, "")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRejectAndCancelRequest(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	driver := db.addUser(models.User{IsDriver: true})
	rider := db.addUser(models.User{})
	ride := db.addRide(models.Ride{DriverID: driver.ID, SeatsTotal: 2})
	svc := NewBookingService(db.repos(), nil, testLogger())

	first, err := svc.CreateRequest(ctx, rider.ID, ride.ID, 1, "")
	require.NoError(t, err)
	rejected, booking, err := svc.RespondToRequest(ctx, driver.ID, first.ID, false)
	require.NoError(t, err)
	assert.Nil(t, booking)
	assert.Equal(t, models.RequestStatusRejected, rejected.Status)
	assert.Equal(t, 2, db.ride(ride.ID).SeatsAvailable)

	second, err := svc.CreateRequest(ctx, rider.ID, ride.ID, 1, "")
	require.NoError(t, err)
	cancelled, err := svc.CancelRequest(ctx, rider.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)

	_, err = svc.CancelRequest(ctx, rider.ID, second.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.RideRequests(ctx, rider.ID, ride.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	reqs, err := svc.RideRequests(ctx, driver.ID, ride.ID)
	require.NoError(t, err)
	assert.Len(t, reqs, 2)
}
