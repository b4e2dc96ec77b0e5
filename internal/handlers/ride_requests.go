package handlers

import (
	"net/http"

	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// CreateRideRequest asks the driver of a ride for seats
func CreateRideRequest(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rideID, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input struct {
			Seats   int    `json:"seats" binding:"required"`
			Message string `json:"message"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		req, err := bookings.CreateRequest(c.Request.Context(), c.GetUint("userId"), rideID, input.Seats, input.Message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, req)
	}
}

// GetRideRequests lists requests on one of the driver's rides
func GetRideRequests(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		rideID, ok := paramID(c, "id")
		if !ok {
			return
		}
		reqs, err := bookings.RideRequests(c.Request.Context(), c.GetUint("userId"), rideID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}

func GetMyRequests(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqs, err := bookings.MyRequests(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}

// RespondToRideRequest accepts or rejects a pending request
func RespondToRideRequest(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input struct {
			Accept *bool `json:"accept" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		req, booking, err := bookings.RespondToRequest(c.Request.Context(), c.GetUint("userId"), id, *input.Accept)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"request": req, "booking": booking})
	}
}

func CancelRideRequest(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		req, err := bookings.CancelRequest(c.Request.Context(), c.GetUint("userId"), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, req)
	}
}
