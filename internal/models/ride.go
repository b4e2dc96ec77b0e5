package models

import (
	"time"

	"gorm.io/gorm"
)

type RideStatus string

const (
	RideStatusActive     RideStatus = "active"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// DefaultCurrency is used when a driver does not name one.
const DefaultCurrency = "ETH"

// Ride is a driver-offered trip with a fixed number of seats.
type Ride struct {
	gorm.Model
	DriverID       uint            `json:"driverId" gorm:"not null;index"`
	Driver         *User           `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	Origin         string          `json:"origin" gorm:"not null"`
	Destination    string          `json:"destination" gorm:"not null"`
	DepartureTime  time.Time       `json:"departureTime" gorm:"not null;index"`
	Price          float64         `json:"price" gorm:"not null"`
	Currency       string          `json:"currency" gorm:"not null;default:'ETH'"`
	SeatsTotal     int             `json:"seatsTotal" gorm:"not null"`
	SeatsAvailable int             `json:"seatsAvailable" gorm:"not null"`
	Status         RideStatus      `json:"status" gorm:"not null;default:'active';index"`
	Notes          string          `json:"notes,omitempty"`
	Passengers     []RidePassenger `json:"passengers,omitempty" gorm:"foreignKey:RideID"`
}

// TableName specifies the table name
func (Ride) TableName() string {
	return "rides"
}

// RidePassenger records the seats a user holds on a ride.
type RidePassenger struct {
	gorm.Model
	RideID uint  `json:"rideId" gorm:"not null;uniqueIndex:idx_ride_passenger"`
	UserID uint  `json:"userId" gorm:"not null;uniqueIndex:idx_ride_passenger"`
	Seats  int   `json:"seats" gorm:"not null"`
	User   *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name
func (RidePassenger) TableName() string {
	return "ride_passengers"
}

// CanTransition reports whether a ride may move from one status to another.
func CanTransition(from, to RideStatus) bool {
	switch from {
	case RideStatusActive:
		return to == RideStatusInProgress || to == RideStatusCancelled
	case RideStatusInProgress:
		return to == RideStatusCompleted
	}
	return false
}

// HasParticipant reports whether userID is the driver or a passenger.
func (r *Ride) HasParticipant(userID uint) bool {
	if r.DriverID == userID {
		return true
	}
	for _, p := range r.Passengers {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
