package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/repository"
	"go.uber.org/zap"
)

// RideQuery is a parsed ride search. Rating is not a ride column, so that
// ordering happens after the fetch.
type RideQuery struct {
	Filter       repository.RideFilter
	VerifiedOnly bool
	SortByRating bool
	Desc         bool
}

// ParseRideQuery reads the flat search parameters. Dates are calendar days in loc.
func ParseRideQuery(values url.Values, loc *time.Location) (RideQuery, error) {
	q := RideQuery{Filter: repository.RideFilter{Status: models.RideStatusActive}}
	f := &q.Filter

	f.Origin = strings.TrimSpace(values.Get("from"))
	f.Destination = strings.TrimSpace(values.Get("to"))

	if v := values.Get("date"); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return q, invalid("date must be YYYY-MM-DD")
		}
		f.DepartFrom = day
		f.DepartTo = day.AddDate(0, 0, 1).Add(-time.Millisecond)
	}

	if v := values.Get("seats"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, invalid("seats must be a non-negative integer")
		}
		f.MinSeats = n
	}

	var err error
	if f.MinPrice, err = parsePrice(values, "minPrice"); err != nil {
		return q, err
	}
	if f.MaxPrice, err = parsePrice(values, "maxPrice"); err != nil {
		return q, err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return q, invalid("minPrice cannot exceed maxPrice")
	}

	if v := values.Get("status"); v != "" {
		status := models.RideStatus(v)
		switch status {
		case models.RideStatusActive, models.RideStatusInProgress, models.RideStatusCompleted, models.RideStatusCancelled:
			f.Status = status
		default:
			return q, invalid("unknown status %q", v)
		}
	}

	if v := values.Get("verifiedOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, invalid("verifiedOnly must be true or false")
		}
		q.VerifiedOnly = b
	}

	order := strings.ToLower(values.Get("sortOrder"))
	if order != "" && order != "asc" && order != "desc" {
		return q, invalid("sortOrder must be asc or desc")
	}

	switch values.Get("sortBy") {
	case "":
	case "price":
		f.Sort = repository.SortPrice
		f.Desc = order == "desc"
	case "date":
		f.Sort = repository.SortDate
		f.Desc = order == "desc"
	case "rating":
		q.SortByRating = true
		q.Desc = order != "asc"
	default:
		return q, invalid("sortBy must be one of price, date, rating")
	}

	return q, nil
}

func parsePrice(values url.Values, key string) (*float64, error) {
	v := values.Get(key)
	if v == "" {
		return nil, nil
	}
	p, err := strconv.ParseFloat(v, 64)
	if err != nil || p < 0 {
		return nil, invalid("%s must be a non-negative number", key)
	}
	return &p, nil
}

// sortByDriverRating keeps fetch order between drivers with equal ratings.
func sortByDriverRating(rides []models.Ride, desc bool) {
	rating := func(r models.Ride) float64 {
		if r.Driver == nil {
			return 0
		}
		return r.Driver.Rating
	}
	sort.SliceStable(rides, func(i, j int) bool {
		if desc {
			return rating(rides[i]) > rating(rides[j])
		}
		return rating(rides[i]) < rating(rides[j])
	})
}

type RideInput struct {
	Origin        string    `json:"origin" binding:"required"`
	Destination   string    `json:"destination" binding:"required"`
	DepartureTime time.Time `json:"departureTime" binding:"required"`
	Price         float64   `json:"price" binding:"gte=0"`
	Currency      string    `json:"currency"`
	Seats         int       `json:"seats" binding:"required,min=1"`
	Notes         string    `json:"notes"`
}

type RideService struct {
	repos Repos
	bus   EventBus
	log   *zap.Logger
	now   func() time.Time
}

func NewRideService(repos Repos, bus EventBus, log *zap.Logger) *RideService {
	return &RideService{repos: repos, bus: bus, log: log, now: time.Now}
}

func (s *RideService) ListRides(ctx context.Context, q RideQuery) ([]models.Ride, error) {
	filter := q.Filter
	if q.VerifiedOnly {
		ids, err := s.repos.Users.VerifiedDriverIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("load verified drivers: %w", err)
		}
		if len(ids) == 0 {
			return []models.Ride{}, nil
		}
		filter.RestrictDrivers = true
		filter.DriverIDs = ids
	}

	rides, err := s.repos.Rides.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	if q.SortByRating {
		sortByDriverRating(rides, q.Desc)
	}
	return rides, nil
}

func (s *RideService) GetRide(ctx context.Context, id uint) (*models.Ride, error) {
	ride, err := s.repos.Rides.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "Ride")
	}
	return ride, nil
}

// CreateRide offers a new ride. Offering a ride makes the user a driver.
func (s *RideService) CreateRide(ctx context.Context, driverID uint, in RideInput) (*models.Ride, error) {
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	if in.Origin == "" || in.Destination == "" {
		return nil, invalid("origin and destination are required")
	}
	if in.Seats < 1 {
		return nil, invalid("seats must be at least 1")
	}
	if in.Price < 0 {
		return nil, invalid("price cannot be negative")
	}
	if !in.DepartureTime.After(s.now()) {
		return nil, invalid("departureTime must be in the future")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = models.DefaultCurrency
	}

	driver, err := s.repos.Users.FindByID(ctx, driverID)
	if err != nil {
		return nil, lookup(err, "User")
	}

	ride := &models.Ride{
		DriverID:       driverID,
		Origin:         in.Origin,
		Destination:    in.Destination,
		DepartureTime:  in.DepartureTime,
		Price:          in.Price,
		Currency:       currency,
		SeatsTotal:     in.Seats,
		SeatsAvailable: in.Seats,
		Status:         models.RideStatusActive,
		Notes:          in.Notes,
	}

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if !driver.IsDriver {
			if err := s.repos.Users.MarkDriver(ctx, driverID); err != nil {
				return err
			}
		}
		return s.repos.Rides.Create(ctx, ride)
	})
	if err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}

	s.log.Info("ride created", zap.Uint("rideId", ride.ID), zap.Uint("driverId", driverID))
	emit(ctx, s.bus, s.log, DomainEvent{
		Topic:     TopicRideCreated,
		Broadcast: true,
		Title:     "New ride available",
		Body:      fmt.Sprintf("%s to %s, %d seats", ride.Origin, ride.Destination, ride.SeatsTotal),
		Data:      map[string]interface{}{"rideId": ride.ID},
	})
	return s.GetRide(ctx, ride.ID)
}

// UpdateRideStatus moves a ride through active, in_progress, completed, or
// cancels it. Completing opens payment on confirmed bookings; cancelling
// cancels them.
func (s *RideService) UpdateRideStatus(ctx context.Context, driverID, rideID uint, to models.RideStatus) (*models.Ride, error) {
	ride, err := s.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, newError(ErrForbidden, "Only the driver can change this ride")
	}
	if !models.CanTransition(ride.Status, to) {
		return nil, newError(ErrInvalidTransition, "Cannot move ride from %s to %s", ride.Status, to)
	}

	var passengers []uint
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Rides.TransitionStatus(ctx, rideID, ride.Status, to); err != nil {
			return err
		}
		ids, err := s.repos.Bookings.ListConfirmedPassengers(ctx, rideID)
		if err != nil {
			return err
		}
		passengers = ids

		switch to {
		case models.RideStatusCompleted:
			if err := s.repos.Bookings.OpenPayments(ctx, rideID); err != nil {
				return err
			}
		case models.RideStatusCancelled:
			if err := s.repos.Bookings.CancelAllForRide(ctx, rideID); err != nil {
				return err
			}
		default:
			return nil
		}
		waiting, err := s.repos.Requests.RejectPendingForRide(ctx, rideID, s.now())
		if err != nil {
			return err
		}
		passengers = append(passengers, waiting...)
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, newError(ErrConflict, "Ride status changed, reload and retry")
	}
	if err != nil {
		return nil, fmt.Errorf("update ride status: %w", err)
	}

	emit(ctx, s.bus, s.log, DomainEvent{
		Topic:      TopicRideStatusChanged,
		Recipients: passengers,
		Title:      "Ride update",
		Body:       fmt.Sprintf("Your ride from %s to %s is now %s", ride.Origin, ride.Destination, strings.ReplaceAll(string(to), "_", " ")),
		Data:       map[string]interface{}{"rideId": rideID, "status": string(to)},
	})

	ride.Status = to
	return ride, nil
}

// DeleteRide removes a ride nobody holds a confirmed booking on.
func (s *RideService) DeleteRide(ctx context.Context, driverID, rideID uint) error {
	ride, err := s.GetRide(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.DriverID != driverID {
		return newError(ErrForbidden, "Only the driver can delete this ride")
	}
	n, err := s.repos.Bookings.CountConfirmed(ctx, rideID)
	if err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}
	if n > 0 {
		return newError(ErrConflict, "Ride has confirmed bookings, cancel it instead")
	}
	if err := s.repos.Rides.Delete(ctx, rideID); err != nil {
		return fmt.Errorf("delete ride: %w", err)
	}
	return nil
}

// DriverProfile returns a driver with their rides, latest departure first.
func (s *RideService) DriverProfile(ctx context.Context, userID uint) (*models.User, []models.Ride, error) {
	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, lookup(err, "Driver")
	}
	if !user.IsDriver {
		return nil, nil, notFound("Driver")
	}
	rides, err := s.repos.Rides.ListByDriver(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list driver rides: %w", err)
	}
	return user, rides, nil
}
