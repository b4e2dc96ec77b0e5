package handlers

import (
	"net/http"

	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// GetMyBookings returns the bookings the user holds as a passenger
func GetMyBookings(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := bookings.MyBookings(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetDriverBookings returns bookings made on the user's rides
func GetDriverBookings(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := bookings.DriverBookings(c.Request.Context(), c.GetUint("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func CancelBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		booking, err := bookings.CancelBooking(c.Request.Context(), c.GetUint("userId"), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, booking)
	}
}

// PayBooking records the transaction hash of a payment for a completed ride
func PayBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input struct {
			TxHash string `json:"txHash" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		booking, err := bookings.PayBooking(c.Request.Context(), c.GetUint("userId"), id, input.TxHash)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, booking)
	}
}
