package models

import "gorm.io/gorm"

// Review is one participant's rating of another after a completed ride.
type Review struct {
	gorm.Model
	RideID     uint   `json:"rideId" gorm:"not null;uniqueIndex:idx_review_once"`
	ReviewerID uint   `json:"reviewerId" gorm:"not null;uniqueIndex:idx_review_once"`
	RevieweeID uint   `json:"revieweeId" gorm:"not null;uniqueIndex:idx_review_once;index"`
	Rating     int    `json:"rating" gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Comment    string `json:"comment,omitempty"`
	Reviewer   *User  `json:"reviewer,omitempty" gorm:"foreignKey:ReviewerID"`
}

// TableName specifies the table name
func (Review) TableName() string {
	return "reviews"
}
