package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/chachabrian/ridepool-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	gotMessage string
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*utils.Claims, error) {
	if token != "good" {
		return nil, &services.Error{Kind: services.ErrUnauthorized, Message: "Invalid token"}
	}
	return &utils.Claims{UserID: 7, Address: "0xabc"}, nil
}

func (f *fakeAuth) VerifyWallet(_ context.Context, address, message, _ string) (string, error) {
	f.gotMessage = message
	if address != "0xabc" {
		return "", &services.Error{Kind: services.ErrUnauthorized, Message: "Invalid signature"}
	}
	return address, nil
}

func (f *fakeAuth) UserForWallet(_ context.Context, address string) (*models.User, error) {
	u := &models.User{WalletAddress: &address}
	u.ID = 8
	return u, nil
}

func newAuthRouter(auth Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(auth), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetUint(ContextUserID), "address": c.GetString(ContextAddress)})
	})
	r.GET("/admin", AuthMiddleware(auth), AdminOnly(func(a string) bool { return a == "0xabc" }), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddlewareBearer(t *testing.T) {
	r := newAuthRouter(&fakeAuth{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"address":"0xabc"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"message":"Invalid token"}`, w.Body.String())
}

func TestAuthMiddlewareQueryToken(t *testing.T) {
	w := httptest.NewRecorder()
	newAuthRouter(&fakeAuth{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token=good", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareWalletHeaders(t *testing.T) {
	auth := &fakeAuth{}
	r := newAuthRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("address", "0xabc")
	req.Header.Set("message", `RidePool sign-in\nAddress: 0xabc`)
	req.Header.Set("signature", "0x01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":8,"address":"0xabc"}`, w.Body.String())
	assert.Equal(t, "RidePool sign-in\nAddress: 0xabc", auth.gotMessage)
}

func TestAuthMiddlewareMissingCredentials(t *testing.T) {
	w := httptest.NewRecorder()
	newAuthRouter(&fakeAuth{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminOnly(t *testing.T) {
	r := newAuthRouter(&fakeAuth{})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("address", "0xabc")
	req.Header.Set("message", "m")
	req.Header.Set("signature", "s")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
