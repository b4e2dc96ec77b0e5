package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/repository"
	"github.com/chachabrian/ridepool-backend/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NonceStore keeps single-use sign-in nonces per wallet address.
type NonceStore interface {
	Put(ctx context.Context, address, nonce string, ttl time.Duration) error
	// Consume deletes the nonce and reports whether it was live.
	Consume(ctx context.Context, address, nonce string) (bool, error)
}

// TokenDenylist remembers revoked token ids until they would have expired.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// clockSkew tolerates wallets whose clocks run a little ahead.
const clockSkew = time.Minute

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type AuthService struct {
	users    UserStore
	nonces   NonceStore
	denylist TokenDenylist
	tokens   *utils.TokenManager
	nonceTTL time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthService(users UserStore, nonces NonceStore, denylist TokenDenylist, tokens *utils.TokenManager, nonceTTL time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		nonces:   nonces,
		denylist: denylist,
		tokens:   tokens,
		nonceTTL: nonceTTL,
		log:      log,
		now:      time.Now,
	}
}

// IssueNonce returns the sign-in message the wallet must sign.
func (s *AuthService) IssueNonce(ctx context.Context, address string) (utils.SignIn, error) {
	if !utils.IsHexAddress(address) {
		return utils.SignIn{}, invalid("address must be a 0x-prefixed hex wallet address")
	}
	challenge := utils.SignIn{
		Address:  models.NormalizeAddress(address),
		Nonce:    strings.ReplaceAll(uuid.NewString(), "-", ""),
		IssuedAt: s.now().UTC().Truncate(time.Second),
	}
	if err := s.nonces.Put(ctx, challenge.Address, challenge.Nonce, s.nonceTTL); err != nil {
		return utils.SignIn{}, fmt.Errorf("store nonce: %w", err)
	}
	return challenge, nil
}

// VerifyWallet checks a signed sign-in message and burns its nonce, so each
// signature is accepted once and only while fresh.
func (s *AuthService) VerifyWallet(ctx context.Context, address, message, signature string) (string, error) {
	if !utils.IsHexAddress(address) {
		return "", newError(ErrUnauthorized, "Invalid wallet address")
	}
	address = models.NormalizeAddress(address)

	challenge, err := utils.ParseSignIn(message)
	if err != nil {
		return "", newError(ErrUnauthorized, "Malformed sign-in message")
	}
	if models.NormalizeAddress(challenge.Address) != address {
		return "", newError(ErrUnauthorized, "Sign-in message is for another address")
	}
	now := s.now()
	if challenge.IssuedAt.After(now.Add(clockSkew)) || now.Sub(challenge.IssuedAt) > s.nonceTTL {
		return "", newError(ErrUnauthorized, "Sign-in message has expired")
	}
	if err := utils.VerifySignature(address, message, signature); err != nil {
		return "", newError(ErrUnauthorized, "Invalid signature")
	}

	ok, err := s.nonces.Consume(ctx, address, challenge.Nonce)
	if err != nil {
		return "", fmt.Errorf("consume nonce: %w", err)
	}
	if !ok {
		return "", newError(ErrUnauthorized, "Nonce is invalid or already used")
	}
	return address, nil
}

// UserForWallet fetches the account behind an address, creating it on first connect.
func (s *AuthService) UserForWallet(ctx context.Context, address string) (*models.User, error) {
	user, err := s.users.FindByAddress(ctx, address)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	addr := models.NormalizeAddress(address)
	user = &models.User{WalletAddress: &addr}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.users.FindByAddress(ctx, addr)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("wallet user created", zap.Uint("userId", user.ID), zap.String("address", addr))
	return user, nil
}

func (s *AuthService) WalletLogin(ctx context.Context, address, message, signature string) (*Session, error) {
	addr, err := s.VerifyWallet(ctx, address, message, signature)
	if err != nil {
		return nil, err
	}
	user, err := s.UserForWallet(ctx, addr)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalid("a valid email is required")
	}
	if len(password) < 8 {
		return nil, invalid("password must be at least 8 characters")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, newError(ErrAlreadyExists, "User already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	user := &models.User{Email: &email, Password: password, Name: strings.TrimSpace(name)}
	if err := user.HashPassword(); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrAlreadyExists, "User already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.PasswordHash == "" || user.CheckPassword(password) != nil {
		return nil, newError(ErrUnauthorized, "Invalid credentials")
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, claims, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

// Authenticate validates a bearer token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*utils.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, newError(ErrUnauthorized, "Invalid token")
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check token: %w", err)
	}
	if revoked {
		return nil, newError(ErrUnauthorized, "Session has ended")
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *utils.Claims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	until := s.now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.denylist.Revoke(ctx, claims.ID, until)
}
