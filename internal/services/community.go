package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/repository"
)

type EventInput struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location" binding:"required"`
	Category    string    `json:"category"`
	StartsAt    time.Time `json:"startsAt" binding:"required"`
	Capacity    int       `json:"capacity" binding:"gte=0"`
}

type CommunityService struct {
	repos Repos
	now   func() time.Time
}

func NewCommunityService(repos Repos) *CommunityService {
	return &CommunityService{repos: repos, now: time.Now}
}

// ParseEventQuery reads category, q and from (RFC 3339 or YYYY-MM-DD in loc).
// Without from, only upcoming events are listed.
func (s *CommunityService) ParseEventQuery(values url.Values, loc *time.Location) (repository.EventFilter, error) {
	f := repository.EventFilter{
		Category: strings.TrimSpace(values.Get("category")),
		Query:    strings.TrimSpace(values.Get("q")),
		From:     s.now(),
	}
	if v := values.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			if t, err = time.ParseInLocation("2006-01-02", v, loc); err != nil {
				return f, invalid("from must be a date or RFC 3339 timestamp")
			}
		}
		f.From = t
	}
	return f, nil
}

func (s *CommunityService) List(ctx context.Context, f repository.EventFilter) ([]models.CommunityEvent, error) {
	events, err := s.repos.Community.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *CommunityService) Get(ctx context.Context, id uint) (*models.CommunityEvent, error) {
	event, err := s.repos.Community.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "Event")
	}
	return event, nil
}

func (s *CommunityService) Create(ctx context.Context, organizerID uint, in EventInput) (*models.CommunityEvent, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if in.Title == "" || in.Location == "" {
		return nil, invalid("title and location are required")
	}
	if !in.StartsAt.After(s.now()) {
		return nil, invalid("startsAt must be in the future")
	}
	if in.Capacity < 0 {
		return nil, invalid("capacity cannot be negative")
	}

	event := &models.CommunityEvent{
		OrganizerID: organizerID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		StartsAt:    in.StartsAt,
		Capacity:    in.Capacity,
	}
	if err := s.repos.Community.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return s.Get(ctx, event.ID)
}

// Attend registers the user. The capacity check runs under a row lock.
func (s *CommunityService) Attend(ctx context.Context, userID, eventID uint) (*models.CommunityEvent, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.StartsAt.After(s.now()) {
		return nil, invalid("Event has already started")
	}

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repos.Community.AddAttendee(ctx, eventID, userID)
	})
	switch {
	case errors.Is(err, repository.ErrCapacityReached):
		return nil, newError(ErrConflict, "Event is full")
	case errors.Is(err, repository.ErrDuplicate):
		return nil, newError(ErrAlreadyExists, "You are already attending this event")
	case err != nil:
		return nil, fmt.Errorf("attend event: %w", err)
	}
	return s.Get(ctx, eventID)
}

func (s *CommunityService) Leave(ctx context.Context, userID, eventID uint) error {
	err := s.repos.Community.RemoveAttendee(ctx, eventID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrNotFound, "You are not attending this event")
	}
	if err != nil {
		return fmt.Errorf("leave event: %w", err)
	}
	return nil
}
