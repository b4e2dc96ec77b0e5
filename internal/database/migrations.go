package database

import (
	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Ride{},
		&models.RidePassenger{},
		&models.RideRequest{},
		&models.Booking{},
		&models.Review{},
		&models.Message{},
		&models.CommunityEvent{},
		&models.EventAttendee{},
		&models.Proposal{},
		&models.Vote{},
		&models.NotificationPreference{},
	)
	if err != nil {
		return err
	}

	// Seat counts are also guarded in the database so no code path can
	// oversell a ride.
	constraints := []string{
		`ALTER TABLE rides DROP CONSTRAINT IF EXISTS rides_seats_check`,
		`ALTER TABLE rides ADD CONSTRAINT rides_seats_check CHECK (seats_available >= 0 AND seats_available <= seats_total)`,
		`ALTER TABLE rides DROP CONSTRAINT IF EXISTS rides_status_check`,
		`ALTER TABLE rides ADD CONSTRAINT rides_status_check CHECK (status IN ('active', 'in_progress', 'completed', 'cancelled'))`,
		`ALTER TABLE ride_requests DROP CONSTRAINT IF EXISTS ride_requests_status_check`,
		`ALTER TABLE ride_requests ADD CONSTRAINT ride_requests_status_check CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled'))`,
	}
	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	// Only one pending request per passenger and ride.
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_ride_requests_one_pending
		ON ride_requests (ride_id, passenger_id) WHERE status = 'pending' AND deleted_at IS NULL`).Error
}
