package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

func SendMessage(messages *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.MessageInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		msg, err := messages.Send(c.Request.Context(), c.GetUint("userId"), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// GetConversation pages through messages with another user, newest first.
// ?before= takes an RFC 3339 timestamp.
func GetConversation(messages *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		otherID, ok := paramID(c, "userId")
		if !ok {
			return
		}

		var before time.Time
		if v := c.Query("before"); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "before must be an RFC 3339 timestamp"})
				return
			}
			before = t
		}
		limit := 0
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		result, err := messages.Conversation(c.Request.Context(), c.GetUint("userId"), otherID, before, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func GetConversations(messages *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := messages.Conversations(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func MarkMessageRead(messages *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		msg, err := messages.MarkRead(c.Request.Context(), c.GetUint("userId"), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	}
}
