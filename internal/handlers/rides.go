package handlers

import (
	"net/http"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/models"
	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// GetRides lists rides matching the query filters
func GetRides(rides *services.RideService, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		query, err := services.ParseRideQuery(c.Request.URL.Query(), loc)
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := rides.ListRides(c.Request.Context(), query)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func GetRide(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ride, err := rides.GetRide(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ride)
	}
}

// CreateRide handles the creation of a new ride by the authenticated user
func CreateRide(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.RideInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		ride, err := rides.CreateRide(c.Request.Context(), c.GetUint("userId"), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, ride)
	}
}

// BookRide books seats directly on a ride
func BookRide(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input struct {
			Seats int `json:"seats" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		booking, err := bookings.Book(c.Request.Context(), id, c.GetUint("userId"), input.Seats)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, booking)
	}
}

func UpdateRideStatus(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input struct {
			Status models.RideStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		ride, err := rides.UpdateRideStatus(c.Request.Context(), c.GetUint("userId"), id, input.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ride)
	}
}

func DeleteRide(rides *services.RideService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := rides.DeleteRide(c.Request.Context(), c.GetUint("userId"), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Ride deleted successfully"})
	}
}
