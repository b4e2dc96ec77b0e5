package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxMessageLength bounds a single chat message body.
const MaxMessageLength = 2000

type Message struct {
	gorm.Model
	SenderID    uint       `json:"senderId" gorm:"not null;index:idx_message_pair"`
	RecipientID uint       `json:"recipientId" gorm:"not null;index:idx_message_pair"`
	RideID      *uint      `json:"rideId,omitempty"`
	Body        string     `json:"body" gorm:"not null"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// TableName specifies the table name
func (Message) TableName() string {
	return "messages"
}

// Counterpart returns the other side of the conversation for userID.
func (m *Message) Counterpart(userID uint) uint {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}
