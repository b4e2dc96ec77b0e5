package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/chachabrian/ridepool-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID  = "userId"
	ContextAddress = "walletAddress"
	ContextClaims  = "claims"
)

// Authenticator is what the middleware needs from the auth service.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*utils.Claims, error)
	VerifyWallet(ctx context.Context, address, message, signature string) (string, error)
	UserForWallet(ctx context.Context, address string) (*models.User, error)
}

// AuthMiddleware accepts a bearer token (or ?token= for websockets), or the
// signed header triple address/message/signature carrying a fresh nonce.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString != "" {
			claims, err := auth.Authenticate(c.Request.Context(), tokenString)
			if err != nil {
				abortAuth(c, err)
				return
			}
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextAddress, claims.Address)
			c.Set(ContextClaims, claims)
			c.Next()
			return
		}

		address := c.GetHeader("address")
		message := c.GetHeader("message")
		signature := c.GetHeader("signature")
		if address == "" || message == "" || signature == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header, token query parameter or signed wallet headers required"})
			return
		}

		// Headers cannot carry raw newlines, so clients send them escaped.
		message = strings.ReplaceAll(message, `\n`, "\n")
		addr, err := auth.VerifyWallet(c.Request.Context(), address, message, signature)
		if err != nil {
			abortAuth(c, err)
			return
		}
		user, err := auth.UserForWallet(c.Request.Context(), addr)
		if err != nil {
			abortAuth(c, err)
			return
		}
		c.Set(ContextUserID, user.ID)
		c.Set(ContextAddress, addr)
		c.Next()
	}
}

func abortAuth(c *gin.Context, err error) {
	if errors.Is(err, services.ErrUnauthorized) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": services.Message(err)})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error", "error": err.Error()})
}

// AdminOnly lets through wallets configured as administrators. Must run
// after AuthMiddleware.
func AdminOnly(isAdmin func(address string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c.GetString(ContextAddress)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}
		c.Next()
	}
}
