package handlers

import (
	"net/http"

	"github.com/chachabrian/ridepool-backend/internal/middleware"
	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/chachabrian/ridepool-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// GetNonce issues the sign-in message for a wallet
func GetNonce(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		challenge, err := auth.IssueNonce(c.Request.Context(), c.Query("address"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"address":  challenge.Address,
			"nonce":    challenge.Nonce,
			"issuedAt": challenge.IssuedAt,
			"message":  challenge.String(),
		})
	}
}

// WalletLogin exchanges a signed sign-in message for a session token
func WalletLogin(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Address   string `json:"address" binding:"required"`
			Message   string `json:"message" binding:"required"`
			Signature string `json:"signature" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		session, err := auth.WalletLogin(c.Request.Context(), input.Address, input.Message, input.Signature)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// Register creates an email account
func Register(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required,min=8"`
			Name     string `json:"name"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		session, err := auth.Register(c.Request.Context(), input.Email, input.Password, input.Name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

func Login(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		session, err := auth.Login(c.Request.Context(), input.Email, input.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// GetSession returns the account behind the current credentials
func GetSession(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.Get(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user, "address": c.GetString(middleware.ContextAddress)})
	}
}

// Logout revokes the bearer token. Signed-header requests carry no token.
func Logout(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := c.Get(middleware.ContextClaims)
		if cl, ok := claims.(*utils.Claims); ok {
			if err := auth.Logout(c.Request.Context(), cl); err != nil {
				respondError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}
