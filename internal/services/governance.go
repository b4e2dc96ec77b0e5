package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/repository"
)

type ProposalInput struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	EndsAt      time.Time `json:"endsAt" binding:"required"`
}

// GovernanceService runs the off-chain proposal and voting mock. Every vote
// weighs 1.
type GovernanceService struct {
	repos Repos
	now   func() time.Time
}

func NewGovernanceService(repos Repos) *GovernanceService {
	return &GovernanceService{repos: repos, now: time.Now}
}

func (s *GovernanceService) List(ctx context.Context, status string) ([]models.Proposal, error) {
	st := models.ProposalStatus(status)
	switch st {
	case "", models.ProposalStatusOpen, models.ProposalStatusClosed:
	default:
		return nil, invalid("status must be open or closed")
	}
	proposals, err := s.repos.Proposals.List(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return proposals, nil
}

func (s *GovernanceService) Get(ctx context.Context, id uint) (*models.Proposal, error) {
	p, err := s.repos.Proposals.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "Proposal")
	}
	return p, nil
}

func (s *GovernanceService) Create(ctx context.Context, creatorID uint, in ProposalInput) (*models.Proposal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if !in.EndsAt.After(s.now()) {
		return nil, invalid("endsAt must be in the future")
	}
	p := &models.Proposal{
		CreatorID:   creatorID,
		Title:       title,
		Description: in.Description,
		Status:      models.ProposalStatusOpen,
		EndsAt:      in.EndsAt,
	}
	if err := s.repos.Proposals.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}
	return p, nil
}

// Vote casts the user's single vote; the tally moves with the vote row.
func (s *GovernanceService) Vote(ctx context.Context, voterID, proposalID uint, support bool) (*models.Proposal, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.AcceptsVotes(s.now()) {
		return nil, invalid("Voting is closed for this proposal")
	}

	vote := &models.Vote{ProposalID: proposalID, VoterID: voterID, Support: support, Weight: 1}
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repos.Proposals.AddVote(ctx, vote)
	})
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, newError(ErrAlreadyExists, "You already voted on this proposal")
	case errors.Is(err, repository.ErrConflict):
		return nil, newError(ErrConflict, "Voting is closed for this proposal")
	case err != nil:
		return nil, fmt.Errorf("vote: %w", err)
	}
	return s.Get(ctx, proposalID)
}

// Close ends voting. The creator may close early; anyone may close once the
// deadline has passed.
func (s *GovernanceService) Close(ctx context.Context, userID, proposalID uint) (*models.Proposal, error) {
	p, err := s.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.CreatorID != userID && s.now().Before(p.EndsAt) {
		return nil, newError(ErrForbidden, "Only the creator can close a proposal before it ends")
	}
	err = s.repos.Proposals.Close(ctx, proposalID)
	if errors.Is(err, repository.ErrConflict) {
		return nil, newError(ErrConflict, "Proposal is already closed")
	}
	if err != nil {
		return nil, fmt.Errorf("close proposal: %w", err)
	}
	p.Status = models.ProposalStatusClosed
	return p, nil
}
