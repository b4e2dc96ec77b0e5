package repository

import (
	"context"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(store *Store) *RequestRepository {
	return &RequestRepository{db: store.DB()}
}

func (r *RequestRepository) Create(ctx context.Context, req *models.RideRequest) error {
	return translate(conn(ctx, r.db).Create(req).Error)
}

func (r *RequestRepository) FindByID(ctx context.Context, id uint) (*models.RideRequest, error) {
	var req models.RideRequest
	if err := conn(ctx, r.db).Preload("Ride").Preload("Passenger").First(&req, id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *RequestRepository) ListByRide(ctx context.Context, rideID uint) ([]models.RideRequest, error) {
	var reqs []models.RideRequest
	err := conn(ctx, r.db).Preload("Passenger").
		Where("ride_id = ?", rideID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, translate(err)
}

func (r *RequestRepository) ListByPassenger(ctx context.Context, passengerID uint) ([]models.RideRequest, error) {
	var reqs []models.RideRequest
	err := conn(ctx, r.db).Preload("Ride").Preload("Ride.Driver").
		Where("passenger_id = ?", passengerID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, translate(err)
}

func (r *RequestRepository) HasPending(ctx context.Context, rideID, passengerID uint) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.RideRequest{}).
		Where("ride_id = ? AND passenger_id = ? AND status = ?", rideID, passengerID, models.RequestStatusPending).
		Count(&count).Error
	return count > 0, translate(err)
}

// TransitionStatus answers a request only if it is still in the expected status.
func (r *RequestRepository) TransitionStatus(ctx context.Context, id uint, from, to models.RequestStatus, at time.Time) error {
	res := conn(ctx, r.db).Model(&models.RideRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "responded_at": at})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// RejectPendingForRide closes the open requests of a ride that can no longer
// take passengers and returns who was waiting.
func (r *RequestRepository) RejectPendingForRide(ctx context.Context, rideID uint, at time.Time) ([]uint, error) {
	db := conn(ctx, r.db)
	var passengers []uint
	err := db.Model(&models.RideRequest{}).
		Where("ride_id = ? AND status = ?", rideID, models.RequestStatusPending).
		Pluck("passenger_id", &passengers).Error
	if err != nil || len(passengers) == 0 {
		return passengers, translate(err)
	}
	err = db.Model(&models.RideRequest{}).
		Where("ride_id = ? AND status = ?", rideID, models.RequestStatusPending).
		Updates(map[string]interface{}{"status": models.RequestStatusRejected, "responded_at": at}).Error
	return passengers, translate(err)
}
