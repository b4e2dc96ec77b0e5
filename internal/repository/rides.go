package repository

import (
	"context"
	"strings"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RideSort string

const (
	SortCreated RideSort = ""
	SortPrice   RideSort = "price"
	SortDate    RideSort = "date"
)

// RideFilter is the storage-level ride search. Zero values mean "no constraint".
type RideFilter struct {
	Origin      string
	Destination string
	DepartFrom  time.Time
	DepartTo    time.Time
	MinSeats    int
	MinPrice    *float64
	MaxPrice    *float64
	Status      models.RideStatus
	// RestrictDrivers limits results to DriverIDs, even when DriverIDs is empty.
	RestrictDrivers bool
	DriverIDs       []uint
	Sort            RideSort
	Desc            bool
}

// Scope applies the filter to a rides query.
func (f RideFilter) Scope(db *gorm.DB) *gorm.DB {
	if f.Origin != "" {
		db = db.Where("rides.origin ILIKE ?", containsPattern(f.Origin))
	}
	if f.Destination != "" {
		db = db.Where("rides.destination ILIKE ?", containsPattern(f.Destination))
	}
	if !f.DepartFrom.IsZero() {
		db = db.Where("rides.departure_time >= ?", f.DepartFrom)
	}
	if !f.DepartTo.IsZero() {
		db = db.Where("rides.departure_time <= ?", f.DepartTo)
	}
	if f.MinSeats > 0 {
		db = db.Where("rides.seats_available >= ?", f.MinSeats)
	}
	if f.MinPrice != nil {
		db = db.Where("rides.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		db = db.Where("rides.price <= ?", *f.MaxPrice)
	}
	if f.Status != "" {
		db = db.Where("rides.status = ?", f.Status)
	}
	if f.RestrictDrivers {
		db = db.Where("rides.driver_id IN ?", f.DriverIDs)
	}

	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	switch f.Sort {
	case SortPrice:
		db = db.Order("rides.price " + dir).Order("rides.id ASC")
	case SortDate:
		db = db.Order("rides.departure_time " + dir).Order("rides.id ASC")
	default:
		db = db.Order("rides.created_at DESC").Order("rides.id DESC")
	}
	return db
}

// containsPattern builds an ILIKE substring pattern with wildcards escaped.
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

type RideRepository struct {
	db *gorm.DB
}

func NewRideRepository(store *Store) *RideRepository {
	return &RideRepository{db: store.DB()}
}

func (r *RideRepository) Create(ctx context.Context, ride *models.Ride) error {
	return translate(conn(ctx, r.db).Create(ride).Error)
}

// FindByID loads a ride with its driver and passengers.
func (r *RideRepository) FindByID(ctx context.Context, id uint) (*models.Ride, error) {
	var ride models.Ride
	err := conn(ctx, r.db).
		Preload("Driver").
		Preload("Passengers.User").
		First(&ride, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ride, nil
}

func (r *RideRepository) List(ctx context.Context, filter RideFilter) ([]models.Ride, error) {
	if filter.RestrictDrivers && len(filter.DriverIDs) == 0 {
		return []models.Ride{}, nil
	}
	var rides []models.Ride
	err := conn(ctx, r.db).
		Preload("Driver").
		Scopes(filter.Scope).
		Find(&rides).Error
	return rides, translate(err)
}

// ListByDriver returns a driver's rides, latest departure first.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID uint) ([]models.Ride, error) {
	var rides []models.Ride
	err := conn(ctx, r.db).
		Where("driver_id = ?", driverID).
		Order("departure_time DESC").
		Find(&rides).Error
	return rides, translate(err)
}

// ReserveSeats decrements availability only if enough seats remain on an
// active ride. The check and the write are one statement.
func (r *RideRepository) ReserveSeats(ctx context.Context, rideID uint, seats int) error {
	db := conn(ctx, r.db)
	res := db.Model(&models.Ride{}).
		Where("id = ? AND status = ? AND seats_available >= ?", rideID, models.RideStatusActive, seats).
		Update("seats_available", gorm.Expr("seats_available - ?", seats))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var ride models.Ride
	if err := db.Select("id", "status").First(&ride, rideID).Error; err != nil {
		return translate(err)
	}
	if ride.Status != models.RideStatusActive {
		return ErrConflict
	}
	return ErrInsufficientSeats
}

// ReleaseSeats returns seats to a ride without exceeding its total.
func (r *RideRepository) ReleaseSeats(ctx context.Context, rideID uint, seats int) error {
	res := conn(ctx, r.db).Model(&models.Ride{}).
		Where("id = ? AND seats_available + ? <= seats_total", rideID, seats).
		Update("seats_available", gorm.Expr("seats_available + ?", seats))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// AddPassenger records seats for a user, adding to any seats already held.
func (r *RideRepository) AddPassenger(ctx context.Context, rideID, userID uint, seats int) error {
	passenger := models.RidePassenger{RideID: rideID, UserID: userID, Seats: seats}
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ride_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"seats":      gorm.Expr("ride_passengers.seats + excluded.seats"),
			"deleted_at": nil,
			"updated_at": time.Now(),
		}),
	}).Create(&passenger).Error
	return translate(err)
}

// RemovePassengerSeats gives up seats held by a user and drops the passenger
// row once nothing is left.
func (r *RideRepository) RemovePassengerSeats(ctx context.Context, rideID, userID uint, seats int) error {
	db := conn(ctx, r.db)
	res := db.Model(&models.RidePassenger{}).
		Where("ride_id = ? AND user_id = ? AND seats >= ?", rideID, userID, seats).
		Update("seats", gorm.Expr("seats - ?", seats))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return translate(db.Unscoped().
		Where("ride_id = ? AND user_id = ? AND seats <= 0", rideID, userID).
		Delete(&models.RidePassenger{}).Error)
}

// TransitionStatus moves a ride from one status to another, failing with
// ErrConflict when the ride is no longer in the expected status.
func (r *RideRepository) TransitionStatus(ctx context.Context, rideID uint, from, to models.RideStatus) error {
	res := conn(ctx, r.db).Model(&models.Ride{}).
		Where("id = ? AND status = ?", rideID, from).
		Update("status", to)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// Delete soft deletes a ride
func (r *RideRepository) Delete(ctx context.Context, rideID uint) error {
	return translate(conn(ctx, r.db).Delete(&models.Ride{}, rideID).Error)
}
