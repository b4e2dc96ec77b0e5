package models

import (
	"time"

	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// RideRequest is a passenger's ask to join a ride, answered by the driver.
type RideRequest struct {
	gorm.Model
	RideID      uint          `json:"rideId" gorm:"not null;index"`
	Ride        *Ride         `json:"ride,omitempty" gorm:"foreignKey:RideID"`
	PassengerID uint          `json:"passengerId" gorm:"not null;index"`
	Passenger   *User         `json:"passenger,omitempty" gorm:"foreignKey:PassengerID"`
	Seats       int           `json:"seats" gorm:"not null"`
	Message     string        `json:"message,omitempty"`
	Status      RequestStatus `json:"status" gorm:"not null;default:'pending'"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`
}

// TableName specifies the table name
func (RideRequest) TableName() string {
	return "ride_requests"
}

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusNone      PaymentStatus = "none"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Booking is a confirmed seat allocation.
type Booking struct {
	gorm.Model
	RideID        uint          `json:"rideId" gorm:"not null;index"`
	Ride          *Ride         `json:"ride,omitempty" gorm:"foreignKey:RideID"`
	PassengerID   uint          `json:"passengerId" gorm:"not null;index"`
	Passenger     *User         `json:"passenger,omitempty" gorm:"foreignKey:PassengerID"`
	RequestID     *uint         `json:"requestId,omitempty"`
	Seats         int           `json:"seats" gorm:"not null"`
	TotalPrice    float64       `json:"totalPrice" gorm:"not null"`
	Status        BookingStatus `json:"status" gorm:"not null;default:'confirmed'"`
	PaymentStatus PaymentStatus `json:"paymentStatus" gorm:"not null;default:'none'"`
	PaymentTxHash string        `json:"paymentTxHash,omitempty"`
}

// TableName specifies the table name
func (Booking) TableName() string {
	return "bookings"
}
