package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/repository"
)

type ReviewInput struct {
	RevieweeID uint   `json:"revieweeId" binding:"required"`
	Rating     int    `json:"rating" binding:"required"`
	Comment    string `json:"comment"`
}

type ReviewService struct {
	repos Repos
}

func NewReviewService(repos Repos) *ReviewService {
	return &ReviewService{repos: repos}
}

// Create records a review between two participants of a completed ride and
// folds it into the reviewee's rating in the same transaction.
func (s *ReviewService) Create(ctx context.Context, reviewerID, rideID uint, in ReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, invalid("rating must be between 1 and 5")
	}
	if in.RevieweeID == reviewerID {
		return nil, invalid("You cannot review yourself")
	}

	ride, err := s.repos.Rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, lookup(err, "Ride")
	}
	if ride.Status != models.RideStatusCompleted {
		return nil, invalid("Only completed rides can be reviewed")
	}
	if !ride.HasParticipant(reviewerID) {
		return nil, newError(ErrForbidden, "Only participants can review this ride")
	}
	if !ride.HasParticipant(in.RevieweeID) {
		return nil, invalid("Reviewee did not take part in this ride")
	}

	review := &models.Review{
		RideID:     rideID,
		ReviewerID: reviewerID,
		RevieweeID: in.RevieweeID,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
	}
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Reviews.Create(ctx, review); err != nil {
			return err
		}
		return s.repos.Users.ApplyRating(ctx, in.RevieweeID, in.Rating)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, newError(ErrAlreadyExists, "You already reviewed this user for this ride")
	}
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

func (s *ReviewService) ListForUser(ctx context.Context, userID uint) ([]models.Review, error) {
	if _, err := s.repos.Users.FindByID(ctx, userID); err != nil {
		return nil, lookup(err, "User")
	}
	reviews, err := s.repos.Reviews.ListByReviewee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
