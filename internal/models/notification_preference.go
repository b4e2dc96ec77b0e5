package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationPreference represents user notification preferences
type NotificationPreference struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"uniqueIndex;not null" json:"userId"`
	User      User           `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// General push notification toggle
	PushEnabled bool `gorm:"column:push_enabled;default:true" json:"pushEnabled"`

	RideRequestAlerts bool `gorm:"column:ride_request_alerts;default:true" json:"rideRequestAlerts"`
	BookingAlerts     bool `gorm:"column:booking_alerts;default:true" json:"bookingAlerts"`
	MessageAlerts     bool `gorm:"column:message_alerts;default:true" json:"messageAlerts"`
	RideStatusAlerts  bool `gorm:"column:ride_status_alerts;default:true" json:"rideStatusAlerts"`
}

// TableName specifies the table name for NotificationPreference
func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

// DefaultPreferences returns default notification preferences for a new user
func DefaultPreferences(userID uint) *NotificationPreference {
	return &NotificationPreference{
		UserID:            userID,
		PushEnabled:       true,
		RideRequestAlerts: true,
		BookingAlerts:     true,
		MessageAlerts:     true,
		RideStatusAlerts:  true,
	}
}
