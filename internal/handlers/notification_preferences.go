package handlers

import (
	"net/http"

	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// GetNotificationPreferences retrieves the user's notification preferences
func GetNotificationPreferences(notifications *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		prefs, err := notifications.Preferences(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, prefs)
	}
}

// UpdateNotificationPreferences updates the toggles present in the body
func UpdateNotificationPreferences(notifications *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.PreferenceInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		prefs, err := notifications.UpdatePreferences(c.Request.Context(), c.GetUint("userId"), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":     "Notification preferences updated successfully",
			"preferences": prefs,
		})
	}
}

// RegisterFCMToken saves the device token used for push notifications
func RegisterFCMToken(notifications *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		if err := notifications.RegisterToken(c.Request.Context(), c.GetUint("userId"), input.Token); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "FCM token registered successfully"})
	}
}

func RemoveFCMToken(notifications *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := notifications.RemoveToken(c.Request.Context(), c.GetUint("userId")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "FCM token removed successfully"})
	}
}
