package repository

import (
	"context"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(store *Store) *BookingRepository {
	return &BookingRepository{db: store.DB()}
}

func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	return translate(conn(ctx, r.db).Create(booking).Error)
}

func (r *BookingRepository) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := conn(ctx, r.db).Preload("Ride").Preload("Passenger").First(&booking, id).Error; err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (r *BookingRepository) ListByPassenger(ctx context.Context, passengerID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := conn(ctx, r.db).Preload("Ride").Preload("Ride.Driver").
		Where("passenger_id = ?", passengerID).
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, translate(err)
}

// ListByDriver returns bookings on any ride the driver offers.
func (r *BookingRepository) ListByDriver(ctx context.Context, driverID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := conn(ctx, r.db).
		Joins("JOIN rides ON rides.id = bookings.ride_id AND rides.deleted_at IS NULL").
		Where("rides.driver_id = ?", driverID).
		Preload("Passenger").
		Preload("Ride").
		Order("bookings.created_at DESC").
		Find(&bookings).Error
	return bookings, translate(err)
}

func (r *BookingRepository) CountConfirmed(ctx context.Context, rideID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Booking{}).
		Where("ride_id = ? AND status = ?", rideID, models.BookingStatusConfirmed).
		Count(&count).Error
	return count, translate(err)
}

// ListConfirmedPassengers returns the passenger ids holding confirmed bookings.
func (r *BookingRepository) ListConfirmedPassengers(ctx context.Context, rideID uint) ([]uint, error) {
	var ids []uint
	err := conn(ctx, r.db).Model(&models.Booking{}).
		Where("ride_id = ? AND status = ?", rideID, models.BookingStatusConfirmed).
		Distinct().
		Pluck("passenger_id", &ids).Error
	return ids, translate(err)
}

// OpenPayments marks every confirmed booking of a finished ride as awaiting payment.
func (r *BookingRepository) OpenPayments(ctx context.Context, rideID uint) error {
	return translate(conn(ctx, r.db).Model(&models.Booking{}).
		Where("ride_id = ? AND status = ? AND payment_status = ?", rideID, models.BookingStatusConfirmed, models.PaymentStatusNone).
		Update("payment_status", models.PaymentStatusPending).Error)
}

// CancelAllForRide cancels every confirmed booking of a cancelled ride.
func (r *BookingRepository) CancelAllForRide(ctx context.Context, rideID uint) error {
	return translate(conn(ctx, r.db).Model(&models.Booking{}).
		Where("ride_id = ? AND status = ?", rideID, models.BookingStatusConfirmed).
		Update("status", models.BookingStatusCancelled).Error)
}

// Cancel cancels a single confirmed booking.
func (r *BookingRepository) Cancel(ctx context.Context, id uint) error {
	res := conn(ctx, r.db).Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, models.BookingStatusConfirmed).
		Update("status", models.BookingStatusCancelled)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// CompletePayment settles a pending payment and records the transaction hash.
func (r *BookingRepository) CompletePayment(ctx context.Context, id uint, txHash string) error {
	res := conn(ctx, r.db).Model(&models.Booking{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status":  models.PaymentStatusCompleted,
			"payment_tx_hash": txHash,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
