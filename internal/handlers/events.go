package handlers

import (
	"net/http"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// GetEvents lists upcoming community events
func GetEvents(community *services.CommunityService, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := community.ParseEventQuery(c.Request.URL.Query(), loc)
		if err != nil {
			respondError(c, err)
			return
		}
		events, err := community.List(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func GetEvent(community *services.CommunityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		event, err := community.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func CreateEvent(community *services.CommunityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.EventInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		event, err := community.Create(c.Request.Context(), c.GetUint("userId"), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, event)
	}
}

func AttendEvent(community *services.CommunityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		event, err := community.Attend(c.Request.Context(), c.GetUint("userId"), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func LeaveEvent(community *services.CommunityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := community.Leave(c.Request.Context(), c.GetUint("userId"), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "You are no longer attending this event"})
	}
}
