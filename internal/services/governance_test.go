package services

import (
	"context"
	"testing"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalVoting(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	creator := db.addUser(models.User{})
	alice := db.addUser(models.User{})
	bob := db.addUser(models.User{})
	svc := NewGovernanceService(db.repos())

	_, err := svc.Create(ctx, creator.ID, ProposalInput{Title: "Lower fees", EndsAt: time.Now().Add(-time.Minute)})
	assert.ErrorIs(t, err, ErrValidation)

	p, err := svc.Create(ctx, creator.ID, ProposalInput{Title: " Lower fees ", EndsAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "Lower fees", p.Title)
	assert.Equal(t, models.ProposalStatusOpen, p.Status)

	p, err = svc.Vote(ctx, alice.ID, p.ID, true)
	require.NoError(t, err)
	p, err = svc.Vote(ctx, bob.ID, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, p.VotesFor)
	assert.Equal(t, 1, p.VotesAgainst)

	_, err = svc.Vote(ctx, alice.ID, p.ID, false)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = svc.Close(ctx, alice.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	closed, err := svc.Close(ctx, creator.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusClosed, closed.Status)

	_, err = svc.Vote(ctx, creator.ID, p.ID, true)
	assert.ErrorIs(t, err, ErrValidation)

	open, err := svc.List(ctx, "open")
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = svc.List(ctx, "archived")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAnyoneMayCloseExpiredProposal(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	creator := db.addUser(models.User{})
	other := db.addUser(models.User{})
	svc := NewGovernanceService(db.repos())

	p, err := svc.Create(ctx, creator.ID, ProposalInput{Title: "Night rides", EndsAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = svc.Vote(ctx, other.ID, p.ID, true)
	assert.ErrorIs(t, err, ErrValidation)

	closed, err := svc.Close(ctx, other.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusClosed, closed.Status)

	_, err = svc.Close(ctx, other.ID, p.ID)
	assert.ErrorIs(t, err, ErrConflict)
}
