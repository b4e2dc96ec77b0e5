package models

import (
	"time"

	"gorm.io/gorm"
)

// CommunityEvent is a meetup users can coordinate rides around.
type CommunityEvent struct {
	gorm.Model
	OrganizerID uint            `json:"organizerId" gorm:"not null"`
	Organizer   *User           `json:"organizer,omitempty" gorm:"foreignKey:OrganizerID"`
	Title       string          `json:"title" gorm:"not null"`
	Description string          `json:"description"`
	Location    string          `json:"location" gorm:"not null"`
	Category    string          `json:"category" gorm:"index"`
	StartsAt    time.Time       `json:"startsAt" gorm:"not null;index"`
	Capacity    int             `json:"capacity" gorm:"not null;default:0"` // 0 means unlimited
	Attendees   []EventAttendee `json:"attendees,omitempty" gorm:"foreignKey:EventID"`
}

// TableName specifies the table name
func (CommunityEvent) TableName() string {
	return "community_events"
}

type EventAttendee struct {
	gorm.Model
	EventID uint  `json:"eventId" gorm:"not null;uniqueIndex:idx_event_attendee"`
	UserID  uint  `json:"userId" gorm:"not null;uniqueIndex:idx_event_attendee"`
	User    *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name
func (EventAttendee) TableName() string {
	return "event_attendees"
}
