package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/repository"
	"go.uber.org/zap"
)

// memDB is an in-memory stand-in for the gorm repositories. Transactions are
// serialized and roll back to a snapshot when fn fails.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex
	seq  uint

	users     map[uint]models.User
	rides     map[uint]models.Ride
	requests  map[uint]models.RideRequest
	bookings  map[uint]models.Booking
	reviews   []models.Review
	proposals map[uint]models.Proposal
	votes     map[[2]uint]bool
	prefs     map[uint]models.NotificationPreference
	messages  map[uint]models.Message
	events    map[uint]models.CommunityEvent
}

func newMemDB() *memDB {
	return &memDB{
		users:     map[uint]models.User{},
		rides:     map[uint]models.Ride{},
		requests:  map[uint]models.RideRequest{},
		bookings:  map[uint]models.Booking{},
		proposals: map[uint]models.Proposal{},
		votes:     map[[2]uint]bool{},
		prefs:     map[uint]models.NotificationPreference{},
		messages:  map[uint]models.Message{},
		events:    map[uint]models.CommunityEvent{},
	}
}

func (db *memDB) repos() Repos {
	return Repos{
		Tx:          db,
		Users:       memUsers{db},
		Rides:       memRides{db},
		Requests:    memRequests{db},
		Bookings:    memBookings{db},
		Reviews:     memReviews{db},
		Messages:    memMessages{db},
		Community:   memCommunity{db},
		Proposals:   memProposals{db},
		Preferences: memPrefs{db},
	}
}

// nextID must be called with mu held.
func (db *memDB) nextID() uint {
	db.seq++
	return db.seq
}

type memSnapshot struct {
	users     map[uint]models.User
	rides     map[uint]models.Ride
	requests  map[uint]models.RideRequest
	bookings  map[uint]models.Booking
	reviews   []models.Review
	proposals map[uint]models.Proposal
	votes     map[[2]uint]bool
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	rides := make(map[uint]models.Ride, len(db.rides))
	for id, r := range db.rides {
		r.Passengers = append([]models.RidePassenger(nil), r.Passengers...)
		rides[id] = r
	}
	snap := memSnapshot{
		users:     cloneMap(db.users),
		rides:     rides,
		requests:  cloneMap(db.requests),
		bookings:  cloneMap(db.bookings),
		reviews:   append([]models.Review(nil), db.reviews...),
		proposals: cloneMap(db.proposals),
		votes:     cloneMap(db.votes),
	}
	db.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		db.mu.Lock()
		db.users, db.rides, db.requests, db.bookings = snap.users, snap.rides, snap.requests, snap.bookings
		db.reviews, db.proposals, db.votes = snap.reviews, snap.proposals, snap.votes
		db.mu.Unlock()
	}
	return err
}

// seed helpers

func (db *memDB) addUser(u models.User) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u.ID = db.nextID()
	db.users[u.ID] = u
	return &u
}

func (db *memDB) addRide(r models.Ride) *models.Ride {
	db.mu.Lock()
	defer db.mu.Unlock()
	r.ID = db.nextID()
	if r.Status == "" {
		r.Status = models.RideStatusActive
	}
	if r.SeatsAvailable == 0 && r.SeatsTotal > 0 {
		r.SeatsAvailable = r.SeatsTotal
	}
	db.rides[r.ID] = r
	return &r
}

func (db *memDB) ride(id uint) models.Ride {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rides[id]
}

func (db *memDB) user(id uint) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id]
}

func (db *memDB) bookingCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.bookings)
}

type memUsers struct{ db *memDB }

func (s memUsers) Create(_ context.Context, user *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if user.WalletAddress != nil && u.Address() == *user.WalletAddress {
			return repository.ErrDuplicate
		}
		if user.Email != nil && u.Email != nil && *u.Email == *user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = s.db.nextID()
	s.db.users[user.ID] = *user
	return nil
}

func (s memUsers) UpdateFields(_ context.Context, userID uint, fields map[string]interface{}) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for col, v := range fields {
		switch col {
		case "name":
			u.Name = v.(string)
		case "phone":
			u.Phone = v.(string)
		case "bio":
			u.Bio = v.(string)
		case "avatar_url":
			u.AvatarURL = v.(string)
		case "is_driver":
			u.IsDriver = v.(bool)
		default:
			panic("memUsers: unsupported column " + col)
		}
	}
	s.db.users[userID] = u
	return nil
}

func (s memUsers) MarkDriver(_ context.Context, userID uint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u := s.db.users[userID]
	u.IsDriver = true
	s.db.users[userID] = u
	return nil
}

func (s memUsers) FindByID(_ context.Context, id uint) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s memUsers) FindByAddress(_ context.Context, address string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Address() == models.NormalizeAddress(address) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email != nil && *u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memUsers) VerifiedDriverIDs(_ context.Context) ([]uint, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []uint
	for id, u := range s.db.users {
		if u.IsVerifiedDriver() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s memUsers) ApplyRating(_ context.Context, userID uint, rating int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Rating = (u.Rating*float64(u.ReviewCount) + float64(rating)) / float64(u.ReviewCount+1)
	u.ReviewCount++
	s.db.users[userID] = u
	return nil
}

func (s memUsers) SetVerified(_ context.Context, userID uint, verified bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsVerified = verified
	s.db.users[userID] = u
	return nil
}

func (s memUsers) SetFCMToken(_ context.Context, userID uint, token string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.FCMToken = token
	s.db.users[userID] = u
	return nil
}

type memRides struct{ db *memDB }

// withDriver must be called with mu held.
func (s memRides) withDriver(r models.Ride) models.Ride {
	if u, ok := s.db.users[r.DriverID]; ok {
		r.Driver = &u
	}
	r.Passengers = append([]models.RidePassenger(nil), r.Passengers...)
	return r
}

func (s memRides) Create(_ context.Context, ride *models.Ride) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	ride.ID = s.db.nextID()
	s.db.rides[ride.ID] = *ride
	return nil
}

func (s memRides) FindByID(_ context.Context, id uint) (*models.Ride, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r = s.withDriver(r)
	return &r, nil
}

func (s memRides) sorted(keep func(models.Ride) bool) []models.Ride {
	out := []models.Ride{}
	for _, r := range s.db.rides {
		if keep(r) {
			out = append(out, s.withDriver(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s memRides) List(_ context.Context, f repository.RideFilter) ([]models.Ride, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	allowed := map[uint]bool{}
	for _, id := range f.DriverIDs {
		allowed[id] = true
	}
	return s.sorted(func(r models.Ride) bool {
		if f.Status != "" && r.Status != f.Status {
			return false
		}
		if f.RestrictDrivers && !allowed[r.DriverID] {
			return false
		}
		return r.SeatsAvailable >= f.MinSeats
	}), nil
}

func (s memRides) ListByDriver(_ context.Context, driverID uint) ([]models.Ride, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.sorted(func(r models.Ride) bool { return r.DriverID == driverID }), nil
}

func (s memRides) ReserveSeats(_ context.Context, rideID uint, seats int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.rides[rideID]
	switch {
	case !ok:
		return repository.ErrNotFound
	case r.Status != models.RideStatusActive:
		return repository.ErrConflict
	case r.SeatsAvailable < seats:
		return repository.ErrInsufficientSeats
	}
	r.SeatsAvailable -= seats
	s.db.rides[rideID] = r
	return nil
}

func (s memRides) ReleaseSeats(_ context.Context, rideID uint, seats int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.rides[rideID]
	if !ok || r.SeatsAvailable+seats > r.SeatsTotal {
		return repository.ErrConflict
	}
	r.SeatsAvailable += seats
	s.db.rides[rideID] = r
	return nil
}

func (s memRides) AddPassenger(_ context.Context, rideID, userID uint, seats int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r := s.db.rides[rideID]
	passengers := append([]models.RidePassenger(nil), r.Passengers...)
	for i := range passengers {
		if passengers[i].UserID == userID {
			passengers[i].Seats += seats
			r.Passengers = passengers
			s.db.rides[rideID] = r
			return nil
		}
	}
	r.Passengers = append(passengers, models.RidePassenger{RideID: rideID, UserID: userID, Seats: seats})
	s.db.rides[rideID] = r
	return nil
}

func (s memRides) RemovePassengerSeats(_ context.Context, rideID, userID uint, seats int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r := s.db.rides[rideID]
	var kept []models.RidePassenger
	for _, p := range r.Passengers {
		if p.UserID == userID {
			p.Seats -= seats
			if p.Seats <= 0 {
				continue
			}
		}
		kept = append(kept, p)
	}
	r.Passengers = kept
	s.db.rides[rideID] = r
	return nil
}

func (s memRides) TransitionStatus(_ context.Context, rideID uint, from, to models.RideStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.rides[rideID]
	if !ok || r.Status != from {
		return repository.ErrConflict
	}
	r.Status = to
	s.db.rides[rideID] = r
	return nil
}

func (s memRides) Delete(_ context.Context, rideID uint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.rides, rideID)
	return nil
}

type memRequests struct{ db *memDB }

func (s memRequests) Create(_ context.Context, req *models.RideRequest) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	req.ID = s.db.nextID()
	s.db.requests[req.ID] = *req
	return nil
}

func (s memRequests) FindByID(_ context.Context, id uint) (*models.RideRequest, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s memRequests) list(keep func(models.RideRequest) bool) []models.RideRequest {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.RideRequest{}
	for _, r := range s.db.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s memRequests) ListByRide(_ context.Context, rideID uint) ([]models.RideRequest, error) {
	return s.list(func(r models.RideRequest) bool { return r.RideID == rideID }), nil
}

func (s memRequests) ListByPassenger(_ context.Context, passengerID uint) ([]models.RideRequest, error) {
	return s.list(func(r models.RideRequest) bool { return r.PassengerID == passengerID }), nil
}

func (s memRequests) HasPending(_ context.Context, rideID, passengerID uint) (bool, error) {
	pending := s.list(func(r models.RideRequest) bool {
		return r.RideID == rideID && r.PassengerID == passengerID && r.Status == models.RequestStatusPending
	})
	return len(pending) > 0, nil
}

func (s memRequests) RejectPendingForRide(_ context.Context, rideID uint, at time.Time) ([]uint, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var passengers []uint
	for id, r := range s.db.requests {
		if r.RideID == rideID && r.Status == models.RequestStatusPending {
			r.Status = models.RequestStatusRejected
			r.RespondedAt = &at
			s.db.requests[id] = r
			passengers = append(passengers, r.PassengerID)
		}
	}
	sort.Slice(passengers, func(i, j int) bool { return passengers[i] < passengers[j] })
	return passengers, nil
}

func (s memRequests) TransitionStatus(_ context.Context, id uint, from, to models.RequestStatus, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.requests[id]
	if !ok || r.Status != from {
		return repository.ErrConflict
	}
	r.Status = to
	r.RespondedAt = &at
	s.db.requests[id] = r
	return nil
}

type memBookings struct{ db *memDB }

func (s memBookings) Create(_ context.Context, booking *models.Booking) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	booking.ID = s.db.nextID()
	s.db.bookings[booking.ID] = *booking
	return nil
}

func (s memBookings) FindByID(_ context.Context, id uint) (*models.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (s memBookings) list(keep func(models.Booking) bool) []models.Booking {
	out := []models.Booking{}
	for _, b := range s.db.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s memBookings) ListByPassenger(_ context.Context, passengerID uint) ([]models.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.list(func(b models.Booking) bool { return b.PassengerID == passengerID }), nil
}

func (s memBookings) ListByDriver(_ context.Context, driverID uint) ([]models.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.list(func(b models.Booking) bool { return s.db.rides[b.RideID].DriverID == driverID }), nil
}

func (s memBookings) confirmed(rideID uint) []models.Booking {
	return s.list(func(b models.Booking) bool {
		return b.RideID == rideID && b.Status == models.BookingStatusConfirmed
	})
}

func (s memBookings) CountConfirmed(_ context.Context, rideID uint) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return int64(len(s.confirmed(rideID))), nil
}

func (s memBookings) ListConfirmedPassengers(_ context.Context, rideID uint) ([]uint, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var ids []uint
	for _, b := range s.confirmed(rideID) {
		ids = append(ids, b.PassengerID)
	}
	return ids, nil
}

func (s memBookings) OpenPayments(_ context.Context, rideID uint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.confirmed(rideID) {
		b.PaymentStatus = models.PaymentStatusPending
		s.db.bookings[b.ID] = b
	}
	return nil
}

func (s memBookings) CancelAllForRide(_ context.Context, rideID uint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.confirmed(rideID) {
		b.Status = models.BookingStatusCancelled
		s.db.bookings[b.ID] = b
	}
	return nil
}

func (s memBookings) Cancel(_ context.Context, id uint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok || b.Status != models.BookingStatusConfirmed {
		return repository.ErrConflict
	}
	b.Status = models.BookingStatusCancelled
	s.db.bookings[id] = b
	return nil
}

func (s memBookings) CompletePayment(_ context.Context, id uint, txHash string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok || b.PaymentStatus != models.PaymentStatusPending {
		return repository.ErrConflict
	}
	b.PaymentStatus = models.PaymentStatusCompleted
	b.PaymentTxHash = txHash
	s.db.bookings[id] = b
	return nil
}

type memReviews struct{ db *memDB }

func (s memReviews) Create(_ context.Context, review *models.Review) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, r := range s.db.reviews {
		if r.RideID == review.RideID && r.ReviewerID == review.ReviewerID && r.RevieweeID == review.RevieweeID {
			return repository.ErrDuplicate
		}
	}
	review.ID = s.db.nextID()
	s.db.reviews = append(s.db.reviews, *review)
	return nil
}

func (s memReviews) ListByReviewee(_ context.Context, revieweeID uint) ([]models.Review, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Review{}
	for i := len(s.db.reviews) - 1; i >= 0; i-- {
		if s.db.reviews[i].RevieweeID == revieweeID {
			out = append(out, s.db.reviews[i])
		}
	}
	return out, nil
}

type memProposals struct{ db *memDB }

func (s memProposals) Create(_ context.Context, p *models.Proposal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p.ID = s.db.nextID()
	s.db.proposals[p.ID] = *p
	return nil
}

func (s memProposals) FindByID(_ context.Context, id uint) (*models.Proposal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.proposals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s memProposals) List(_ context.Context, status models.ProposalStatus) ([]models.Proposal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Proposal{}
	for _, p := range s.db.proposals {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s memProposals) AddVote(_ context.Context, vote *models.Vote) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := [2]uint{vote.ProposalID, vote.VoterID}
	if s.db.votes[key] {
		return repository.ErrDuplicate
	}
	p, ok := s.db.proposals[vote.ProposalID]
	if !ok || p.Status != models.ProposalStatusOpen {
		return repository.ErrConflict
	}
	if vote.Support {
		p.VotesFor += vote.Weight
	} else {
		p.VotesAgainst += vote.Weight
	}
	s.db.votes[key] = true
	s.db.proposals[p.ID] = p
	return nil
}

func (s memProposals) Close(_ context.Context, id uint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.proposals[id]
	if !ok || p.Status != models.ProposalStatusOpen {
		return repository.ErrConflict
	}
	p.Status = models.ProposalStatusClosed
	s.db.proposals[id] = p
	return nil
}

type memPrefs struct{ db *memDB }

func (s memPrefs) Get(_ context.Context, userID uint) (*models.NotificationPreference, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.prefs[userID]
	if !ok {
		p = *models.DefaultPreferences(userID)
		s.db.prefs[userID] = p
	}
	return &p, nil
}

func (s memPrefs) Save(_ context.Context, prefs *models.NotificationPreference) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.prefs[prefs.UserID] = *prefs
	return nil
}

type memMessages struct{ db *memDB }

func (s memMessages) Create(_ context.Context, msg *models.Message) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	msg.ID = s.db.nextID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.db.messages[msg.ID] = *msg
	return nil
}

func (s memMessages) FindByID(_ context.Context, id uint) (*models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (s memMessages) Conversation(_ context.Context, a, b uint, before time.Time, limit int) ([]models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Message{}
	for _, m := range s.db.messages {
		pair := (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
		if pair && m.CreatedAt.Before(before) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memMessages) LatestPerCounterpart(_ context.Context, userID uint) ([]models.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	latest := map[uint]models.Message{}
	for _, m := range s.db.messages {
		if m.SenderID != userID && m.RecipientID != userID {
			continue
		}
		other := m.Counterpart(userID)
		if cur, ok := latest[other]; !ok || m.ID > cur.ID {
			latest[other] = m
		}
	}
	out := make([]models.Message, 0, len(latest))
	for _, m := range latest {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s memMessages) MarkRead(_ context.Context, id uint, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.messages[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.ReadAt = &at
	s.db.messages[id] = m
	return nil
}

type memCommunity struct{ db *memDB }

func (s memCommunity) Create(_ context.Context, event *models.CommunityEvent) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	event.ID = s.db.nextID()
	s.db.events[event.ID] = *event
	return nil
}

func (s memCommunity) FindByID(_ context.Context, id uint) (*models.CommunityEvent, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.Attendees = append([]models.EventAttendee(nil), e.Attendees...)
	return &e, nil
}

func (s memCommunity) List(_ context.Context, f repository.EventFilter) ([]models.CommunityEvent, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.CommunityEvent{}
	for _, e := range s.db.events {
		if e.StartsAt.Before(f.From) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s memCommunity) AddAttendee(_ context.Context, eventID, userID uint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e, ok := s.db.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, a := range e.Attendees {
		if a.UserID == userID {
			return repository.ErrDuplicate
		}
	}
	if e.Capacity > 0 && len(e.Attendees) >= e.Capacity {
		return repository.ErrCapacityReached
	}
	e.Attendees = append(append([]models.EventAttendee(nil), e.Attendees...), models.EventAttendee{EventID: eventID, UserID: userID})
	s.db.events[eventID] = e
	return nil
}

func (s memCommunity) RemoveAttendee(_ context.Context, eventID, userID uint) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	e := s.db.events[eventID]
	kept := []models.EventAttendee{}
	for _, a := range e.Attendees {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(e.Attendees) {
		return repository.ErrNotFound
	}
	e.Attendees = kept
	s.db.events[eventID] = e
	return nil
}

// recordingBus keeps published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []DomainEvent
}

func (b *recordingBus) Publish(_ context.Context, ev DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) topics() []Topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Topic
	for _, ev := range b.events {
		out = append(out, ev.Topic)
	}
	return out
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
