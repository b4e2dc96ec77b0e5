package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/repository"
	"go.uber.org/zap"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// BookingService owns seat allocation: direct bookings, ride requests and
// the payment mock.
type BookingService struct {
	repos Repos
	bus   EventBus
	log   *zap.Logger
	now   func() time.Time
}

func NewBookingService(repos Repos, bus EventBus, log *zap.Logger) *BookingService {
	return &BookingService{repos: repos, bus: bus, log: log, now: time.Now}
}

// Book reserves seats on a ride for userID. The seat check and decrement are a
// single conditional update, so concurrent bookings cannot oversell a ride.
func (s *BookingService) Book(ctx context.Context, rideID, userID uint, seats int) (*models.Booking, error) {
	ride, err := s.repos.Rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, lookup(err, "Ride")
	}
	if _, err := s.repos.Users.FindByID(ctx, userID); err != nil {
		return nil, lookup(err, "User")
	}
	if ride.DriverID == userID {
		return nil, ErrSelfBooking
	}
	if seats < 1 {
		return nil, invalid("seats must be at least 1")
	}
	if ride.Status != models.RideStatusActive {
		return nil, invalid("Ride is not open for booking")
	}

	booking := &models.Booking{
		RideID:        rideID,
		PassengerID:   userID,
		Seats:         seats,
		TotalPrice:    ride.Price * float64(seats),
		Status:        models.BookingStatusConfirmed,
		PaymentStatus: models.PaymentStatusNone,
	}
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.allocate(ctx, booking)
	})
	if err != nil {
		return nil, s.seatError(err)
	}

	s.log.Info("ride booked", zap.Uint("rideId", rideID), zap.Uint("userId", userID), zap.Int("seats", seats))
	emit(ctx, s.bus, s.log, DomainEvent{
		Topic:      TopicBookingConfirmed,
		Recipients: []uint{ride.DriverID},
		Title:      "New booking",
		Body:       fmt.Sprintf("%d seat(s) booked on your ride to %s", seats, ride.Destination),
		Data:       map[string]interface{}{"rideId": rideID, "bookingId": booking.ID},
	})

	if booking.Ride, err = s.repos.Rides.FindByID(ctx, rideID); err != nil {
		return nil, lookup(err, "Ride")
	}
	return booking, nil
}

// allocate takes the seats, records the passenger and writes the booking.
// Callers run it inside a transaction.
func (s *BookingService) allocate(ctx context.Context, booking *models.Booking) error {
	if err := s.repos.Rides.ReserveSeats(ctx, booking.RideID, booking.Seats); err != nil {
		return err
	}
	if err := s.repos.Rides.AddPassenger(ctx, booking.RideID, booking.PassengerID, booking.Seats); err != nil {
		return err
	}
	return s.repos.Bookings.Create(ctx, booking)
}

func (s *BookingService) seatError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientSeats):
		return ErrInsufficientSeats
	case errors.Is(err, repository.ErrConflict):
		return invalid("Ride is not open for booking")
	case errors.Is(err, repository.ErrNotFound):
		return notFound("Ride")
	}
	return fmt.Errorf("book ride: %w", err)
}

func (s *BookingService) MyBookings(ctx context.Context, passengerID uint) ([]models.Booking, error) {
	bookings, err := s.repos.Bookings.ListByPassenger(ctx, passengerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// DriverBookings lists bookings made on rides the user drives.
func (s *BookingService) DriverBookings(ctx context.Context, driverID uint) ([]models.Booking, error) {
	bookings, err := s.repos.Bookings.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) loadOwnBooking(ctx context.Context, passengerID, bookingID uint) (*models.Booking, error) {
	booking, err := s.repos.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, lookup(err, "Booking")
	}
	if booking.PassengerID != passengerID {
		return nil, newError(ErrForbidden, "Not your booking")
	}
	return booking, nil
}

// CancelBooking gives the seats back while the ride has not started.
func (s *BookingService) CancelBooking(ctx context.Context, passengerID, bookingID uint) (*models.Booking, error) {
	booking, err := s.loadOwnBooking(ctx, passengerID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusConfirmed {
		return nil, newError(ErrConflict, "Booking is already cancelled")
	}
	ride, err := s.repos.Rides.FindByID(ctx, booking.RideID)
	if err != nil {
		return nil, lookup(err, "Ride")
	}
	if ride.Status != models.RideStatusActive {
		return nil, invalid("Bookings can only be cancelled before the ride starts")
	}

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Bookings.Cancel(ctx, booking.ID); err != nil {
			return err
		}
		if err := s.repos.Rides.ReleaseSeats(ctx, booking.RideID, booking.Seats); err != nil {
			return err
		}
		return s.repos.Rides.RemovePassengerSeats(ctx, booking.RideID, passengerID, booking.Seats)
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, newError(ErrConflict, "Booking changed, reload and retry")
	}
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	booking.Status = models.BookingStatusCancelled
	return booking, nil
}

// PayBooking records a payment for a completed ride. The transaction hash is
// stored as given and not checked against any chain.
func (s *BookingService) PayBooking(ctx context.Context, passengerID, bookingID uint, txHash string) (*models.Booking, error) {
	if !txHashPattern.MatchString(txHash) {
		return nil, invalid("txHash must be a 0x-prefixed 32-byte hex string")
	}
	booking, err := s.loadOwnBooking(ctx, passengerID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus != models.PaymentStatusPending {
		return nil, invalid("Booking is not awaiting payment")
	}

	err = s.repos.Bookings.CompletePayment(ctx, bookingID, txHash)
	if errors.Is(err, repository.ErrConflict) {
		return nil, newError(ErrConflict, "Booking is already paid")
	}
	if err != nil {
		return nil, fmt.Errorf("complete payment: %w", err)
	}

	booking.PaymentStatus = models.PaymentStatusCompleted
	booking.PaymentTxHash = txHash
	return booking, nil
}
