package repository

import (
	"context"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"gorm.io/gorm"
)

type ProposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(store *Store) *ProposalRepository {
	return &ProposalRepository{db: store.DB()}
}

func (r *ProposalRepository) Create(ctx context.Context, p *models.Proposal) error {
	return translate(conn(ctx, r.db).Create(p).Error)
}

func (r *ProposalRepository) FindByID(ctx context.Context, id uint) (*models.Proposal, error) {
	var p models.Proposal
	if err := conn(ctx, r.db).First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *ProposalRepository) List(ctx context.Context, status models.ProposalStatus) ([]models.Proposal, error) {
	q := conn(ctx, r.db)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var proposals []models.Proposal
	err := q.Order("created_at DESC").Find(&proposals).Error
	return proposals, translate(err)
}

// AddVote records a vote and bumps the matching tally. Must run inside a
// transaction so the vote row and the tally move together.
func (r *ProposalRepository) AddVote(ctx context.Context, vote *models.Vote) error {
	db := conn(ctx, r.db)
	if err := db.Create(vote).Error; err != nil {
		return translate(err)
	}
	column := "votes_against"
	if vote.Support {
		column = "votes_for"
	}
	res := db.Model(&models.Proposal{}).
		Where("id = ? AND status = ?", vote.ProposalID, models.ProposalStatusOpen).
		Update(column, gorm.Expr(column+" + ?", vote.Weight))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *ProposalRepository) Close(ctx context.Context, id uint) error {
	res := conn(ctx, r.db).Model(&models.Proposal{}).
		Where("id = ? AND status = ?", id, models.ProposalStatusOpen).
		Update("status", models.ProposalStatusClosed)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
