package services

import (
	"context"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/repository"
)

// Transactor runs fn in one database transaction carried by ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	UpdateFields(ctx context.Context, userID uint, fields map[string]interface{}) error
	MarkDriver(ctx context.Context, userID uint) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByAddress(ctx context.Context, address string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	VerifiedDriverIDs(ctx context.Context) ([]uint, error)
	ApplyRating(ctx context.Context, userID uint, rating int) error
	SetVerified(ctx context.Context, userID uint, verified bool) error
	SetFCMToken(ctx context.Context, userID uint, token string) error
}

type RideStore interface {
	Create(ctx context.Context, ride *models.Ride) error
	FindByID(ctx context.Context, id uint) (*models.Ride, error)
	List(ctx context.Context, filter repository.RideFilter) ([]models.Ride, error)
	ListByDriver(ctx context.Context, driverID uint) ([]models.Ride, error)
	ReserveSeats(ctx context.Context, rideID uint, seats int) error
	ReleaseSeats(ctx context.Context, rideID uint, seats int) error
	AddPassenger(ctx context.Context, rideID, userID uint, seats int) error
	RemovePassengerSeats(ctx context.Context, rideID, userID uint, seats int) error
	TransitionStatus(ctx context.Context, rideID uint, from, to models.RideStatus) error
	Delete(ctx context.Context, rideID uint) error
}

type RequestStore interface {
	Create(ctx context.Context, req *models.RideRequest) error
	FindByID(ctx context.Context, id uint) (*models.RideRequest, error)
	ListByRide(ctx context.Context, rideID uint) ([]models.RideRequest, error)
	ListByPassenger(ctx context.Context, passengerID uint) ([]models.RideRequest, error)
	HasPending(ctx context.Context, rideID, passengerID uint) (bool, error)
	TransitionStatus(ctx context.Context, id uint, from, to models.RequestStatus, at time.Time) error
	RejectPendingForRide(ctx context.Context, rideID uint, at time.Time) ([]uint, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uint) (*models.Booking, error)
	ListByPassenger(ctx context.Context, passengerID uint) ([]models.Booking, error)
	ListByDriver(ctx context.Context, driverID uint) ([]models.Booking, error)
	CountConfirmed(ctx context.Context, rideID uint) (int64, error)
	ListConfirmedPassengers(ctx context.Context, rideID uint) ([]uint, error)
	OpenPayments(ctx context.Context, rideID uint) error
	CancelAllForRide(ctx context.Context, rideID uint) error
	Cancel(ctx context.Context, id uint) error
	CompletePayment(ctx context.Context, id uint, txHash string) error
}

type ReviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	ListByReviewee(ctx context.Context, revieweeID uint) ([]models.Review, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id uint) (*models.Message, error)
	Conversation(ctx context.Context, a, b uint, before time.Time, limit int) ([]models.Message, error)
	LatestPerCounterpart(ctx context.Context, userID uint) ([]models.Message, error)
	MarkRead(ctx context.Context, id uint, at time.Time) error
}

type CommunityStore interface {
	Create(ctx context.Context, event *models.CommunityEvent) error
	FindByID(ctx context.Context, id uint) (*models.CommunityEvent, error)
	List(ctx context.Context, f repository.EventFilter) ([]models.CommunityEvent, error)
	AddAttendee(ctx context.Context, eventID, userID uint) error
	RemoveAttendee(ctx context.Context, eventID, userID uint) error
}

type ProposalStore interface {
	Create(ctx context.Context, p *models.Proposal) error
	FindByID(ctx context.Context, id uint) (*models.Proposal, error)
	List(ctx context.Context, status models.ProposalStatus) ([]models.Proposal, error)
	AddVote(ctx context.Context, vote *models.Vote) error
	Close(ctx context.Context, id uint) error
}

type PreferenceStore interface {
	Get(ctx context.Context, userID uint) (*models.NotificationPreference, error)
	Save(ctx context.Context, prefs *models.NotificationPreference) error
}

// Repos bundles the storage dependencies shared by the domain services.
type Repos struct {
	Tx          Transactor
	Users       UserStore
	Rides       RideStore
	Requests    RequestStore
	Bookings    BookingStore
	Reviews     ReviewStore
	Messages    MessageStore
	Community   CommunityStore
	Proposals   ProposalStore
	Preferences PreferenceStore
}

// NewRepos wires the gorm repositories over one store.
func NewRepos(store *repository.Store) Repos {
	return Repos{
		Tx:          store,
		Users:       repository.NewUserRepository(store),
		Rides:       repository.NewRideRepository(store),
		Requests:    repository.NewRequestRepository(store),
		Bookings:    repository.NewBookingRepository(store),
		Reviews:     repository.NewReviewRepository(store),
		Messages:    repository.NewMessageRepository(store),
		Community:   repository.NewEventRepository(store),
		Proposals:   repository.NewProposalRepository(store),
		Preferences: repository.NewPreferenceRepository(store),
	}
}
