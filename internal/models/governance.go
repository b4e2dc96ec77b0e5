package models

import (
	"time"

	"gorm.io/gorm"
)

type ProposalStatus string

const (
	ProposalStatusOpen   ProposalStatus = "open"
	ProposalStatusClosed ProposalStatus = "closed"
)

// Proposal is a community governance item. Votes are tallied off-chain.
type Proposal struct {
	gorm.Model
	CreatorID    uint           `json:"creatorId" gorm:"not null"`
	Title        string         `json:"title" gorm:"not null"`
	Description  string         `json:"description"`
	Status       ProposalStatus `json:"status" gorm:"not null;default:'open'"`
	EndsAt       time.Time      `json:"endsAt" gorm:"not null"`
	VotesFor     int            `json:"votesFor" gorm:"not null;default:0"`
	VotesAgainst int            `json:"votesAgainst" gorm:"not null;default:0"`
}

// TableName specifies the table name
func (Proposal) TableName() string {
	return "proposals"
}

// AcceptsVotes reports whether the proposal is open and not past its deadline.
func (p *Proposal) AcceptsVotes(now time.Time) bool {
	return p.Status == ProposalStatusOpen && now.Before(p.EndsAt)
}

type Vote struct {
	gorm.Model
	ProposalID uint `json:"proposalId" gorm:"not null;uniqueIndex:idx_vote_once"`
	VoterID    uint `json:"voterId" gorm:"not null;uniqueIndex:idx_vote_once"`
	Support    bool `json:"support"`
	Weight     int  `json:"weight" gorm:"not null;default:1"`
}

// TableName specifies the table name
func (Vote) TableName() string {
	return "votes"
}
