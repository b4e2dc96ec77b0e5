package services

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/chachabrian/ridepool-backend/pkg/utils"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wallet struct {
	key     *secp256k1.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return wallet{key: key, address: utils.PublicKeyToAddress(key.PubKey())}
}

func (w wallet) sign(message string) string {
	compact := ecdsa.SignCompact(w.key, utils.PersonalMessageHash(message), false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return "0x" + hex.EncodeToString(sig)
}

func newTestAuth(db *memDB) *AuthService {
	tokens := utils.NewTokenManager("test-secret", time.Hour)
	return NewAuthService(db.repos().Users, NewMemoryNonceStore(), NewMemoryDenylist(), tokens, 5*time.Minute, testLogger())
}

func TestWalletLogin(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc := newTestAuth(db)
	w := newWallet(t)

	challenge, err := svc.IssueNonce(ctx, w.address)
	require.NoError(t, err)
	msg := challenge.String()

	session, err := svc.WalletLogin(ctx, w.address, msg, w.sign(msg))
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, w.address, session.User.Address())

	claims, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)

	_, err = svc.WalletLogin(ctx, w.address, msg, w.sign(msg))
	assert.ErrorIs(t, err, ErrUnauthorized, "nonce is single use")

	again, err := svc.IssueNonce(ctx, w.address)
	require.NoError(t, err)
	second, err := svc.WalletLogin(ctx, w.address, again.String(), w.sign(again.String()))
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, second.User.ID, "same wallet maps to the same account")
}

func TestWalletLoginRejectsForgedAndStaleMessages(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc := newTestAuth(db)
	w := newWallet(t)
	mallory := newWallet(t)

	challenge, err := svc.IssueNonce(ctx, w.address)
	require.NoError(t, err)
	msg := challenge.String()

	_, err = svc.WalletLogin(ctx, w.address, msg, mallory.sign(msg))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.WalletLogin(ctx, w.address, "hello", w.sign("hello"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	_, err = svc.WalletLogin(ctx, w.address, msg, w.sign(msg))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Sign-in message has expired", Message(err))
}

func TestIssueNonceValidatesAddress(t *testing.T) {
	_, err := newTestAuth(newMemDB()).IssueNonce(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEmailRegisterLoginLogout(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc := newTestAuth(db)

	_, err := svc.Register(ctx, "a@example.com", "short", "A")
	assert.ErrorIs(t, err, ErrValidation)

	session, err := svc.Register(ctx, " A@example.com ", "correct horse", "A")
	require.NoError(t, err)
	assert.NotEmpty(t, session.User.PasswordHash)

	_, err = svc.Register(ctx, "a@example.com", "another password", "B")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = svc.Login(ctx, "a@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrUnauthorized)

	login, err := svc.Login(ctx, "a@example.com", "correct horse")
	require.NoError(t, err)

	claims, err := svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims))

	_, err = svc.Authenticate(ctx, login.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate(ctx, session.Token)
	assert.NoError(t, err, "other sessions stay valid")
}
