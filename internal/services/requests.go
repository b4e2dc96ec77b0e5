package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/repository"
	"go.uber.org/zap"
)

// CreateRequest asks the driver for seats. Seats are only taken when the
// driver accepts.
func (s *BookingService) CreateRequest(ctx context.Context, passengerID, rideID uint, seats int, message string) (*models.RideRequest, error) {
	ride, err := s.repos.Rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, lookup(err, "Ride")
	}
	if _, err := s.repos.Users.FindByID(ctx, passengerID); err != nil {
		return nil, lookup(err, "User")
	}
	if ride.DriverID == passengerID {
		return nil, newError(ErrSelfBooking, "Cannot request your own ride")
	}
	if seats < 1 {
		return nil, invalid("seats must be at least 1")
	}
	if ride.Status != models.RideStatusActive {
		return nil, invalid("Ride is not open for booking")
	}
	if seats > ride.SeatsAvailable {
		return nil, ErrInsufficientSeats
	}

	pending, err := s.repos.Requests.HasPending(ctx, rideID, passengerID)
	if err != nil {
		return nil, fmt.Errorf("check pending requests: %w", err)
	}
	if pending {
		return nil, newError(ErrAlreadyExists, "You already have a pending request for this ride")
	}

	req := &models.RideRequest{
		RideID:      rideID,
		PassengerID: passengerID,
		Seats:       seats,
		Message:     strings.TrimSpace(message),
		Status:      models.RequestStatusPending,
	}
	if err := s.repos.Requests.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrAlreadyExists, "You already have a pending request for this ride")
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	emit(ctx, s.bus, s.log, DomainEvent{
		Topic:      TopicRequestCreated,
		Recipients: []uint{ride.DriverID},
		Title:      "New ride request",
		Body:       fmt.Sprintf("Someone asked for %d seat(s) to %s", seats, ride.Destination),
		Data:       map[string]interface{}{"rideId": rideID, "requestId": req.ID},
	})
	return req, nil
}

// RespondToRequest lets the driver accept or reject a pending request.
// Accepting flips the status, takes the seats and writes the booking in one
// transaction; if the seats are gone the request stays pending.
func (s *BookingService) RespondToRequest(ctx context.Context, driverID, requestID uint, accept bool) (*models.RideRequest, *models.Booking, error) {
	req, err := s.repos.Requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, nil, lookup(err, "Request")
	}
	ride := req.Ride
	if ride == nil {
		if ride, err = s.repos.Rides.FindByID(ctx, req.RideID); err != nil {
			return nil, nil, lookup(err, "Ride")
		}
	}
	if ride.DriverID != driverID {
		return nil, nil, newError(ErrForbidden, "Only the driver can answer this request")
	}
	if req.Status != models.RequestStatusPending {
		return nil, nil, newError(ErrConflict, "Request has already been answered")
	}

	to := models.RequestStatusRejected
	if accept {
		to = models.RequestStatusAccepted
	}
	now := s.now()

	var booking *models.Booking
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Requests.TransitionStatus(ctx, req.ID, models.RequestStatusPending, to, now); err != nil {
			return err
		}
		if !accept {
			return nil
		}
		requestID := req.ID
		booking = &models.Booking{
			RideID:        req.RideID,
			PassengerID:   req.PassengerID,
			RequestID:     &requestID,
			Seats:         req.Seats,
			TotalPrice:    ride.Price * float64(req.Seats),
			Status:        models.BookingStatusConfirmed,
			PaymentStatus: models.PaymentStatusNone,
		}
		return s.allocate(ctx, booking)
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrConflict) && !accept:
		return nil, nil, newError(ErrConflict, "Request has already been answered")
	default:
		return nil, nil, s.requestError(err)
	}

	req.Status = to
	req.RespondedAt = &now
	s.log.Info("request answered", zap.Uint("requestId", req.ID), zap.String("status", string(to)))

	verb := "declined"
	if accept {
		verb = "accepted"
	}
	emit(ctx, s.bus, s.log, DomainEvent{
		Topic:      TopicRequestResponded,
		Recipients: []uint{req.PassengerID},
		Title:      "Ride request " + verb,
		Body:       fmt.Sprintf("Your request for the ride to %s was %s", ride.Destination, verb),
		Data:       map[string]interface{}{"rideId": req.RideID, "requestId": req.ID, "status": string(to)},
	})
	return req, booking, nil
}

// requestError tells a lost race on the request apart from a lost race on the
// ride. ReserveSeats reports a non-active ride as a conflict too.
func (s *BookingService) requestError(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return newError(ErrConflict, "Request or ride changed, reload and retry")
	}
	return s.seatError(err)
}

func (s *BookingService) CancelRequest(ctx context.Context, passengerID, requestID uint) (*models.RideRequest, error) {
	req, err := s.repos.Requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, lookup(err, "Request")
	}
	if req.PassengerID != passengerID {
		return nil, newError(ErrForbidden, "Not your request")
	}
	now := s.now()
	err = s.repos.Requests.TransitionStatus(ctx, requestID, models.RequestStatusPending, models.RequestStatusCancelled, now)
	if errors.Is(err, repository.ErrConflict) {
		return nil, newError(ErrConflict, "Only pending requests can be cancelled")
	}
	if err != nil {
		return nil, fmt.Errorf("cancel request: %w", err)
	}
	req.Status = models.RequestStatusCancelled
	req.RespondedAt = &now
	return req, nil
}

// RideRequests lists the requests on a ride; only its driver may see them.
func (s *BookingService) RideRequests(ctx context.Context, driverID, rideID uint) ([]models.RideRequest, error) {
	ride, err := s.repos.Rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, lookup(err, "Ride")
	}
	if ride.DriverID != driverID {
		return nil, newError(ErrForbidden, "Only the driver can view requests for this ride")
	}
	reqs, err := s.repos.Requests.ListByRide(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

func (s *BookingService) MyRequests(ctx context.Context, passengerID uint) ([]models.RideRequest, error) {
	reqs, err := s.repos.Requests.ListByPassenger(ctx, passengerID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}
