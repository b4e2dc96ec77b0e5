package handlers

import (
	"net/http"
	"time"

	"github.com/chachabrian/ridepool-backend/internal/middleware"
	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// Deps is everything the HTTP layer calls into.
type Deps struct {
	Auth          *services.AuthService
	Rides         *services.RideService
	Bookings      *services.BookingService
	Users         *services.UserService
	Reviews       *services.ReviewService
	Messages      *services.MessageService
	Community     *services.CommunityService
	Governance    *services.GovernanceService
	Notifications *services.NotificationService
	Hub           *services.Hub
	Location      *time.Location
	IsAdmin       func(address string) bool
	// NoncesPerMin limits nonce issuance per client IP; zero disables it.
	NoncesPerMin int
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireAuth := middleware.AuthMiddleware(d.Auth)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			if d.NoncesPerMin > 0 {
				auth.GET("/nonce", middleware.RateLimitPerMinute(d.NoncesPerMin), GetNonce(d.Auth))
			} else {
				auth.GET("/nonce", GetNonce(d.Auth))
			}
			auth.POST("/wallet", WalletLogin(d.Auth))
			auth.POST("/register", Register(d.Auth))
			auth.POST("/login", Login(d.Auth))
			auth.GET("/session", requireAuth, GetSession(d.Users))
			auth.POST("/logout", requireAuth, Logout(d.Auth))
		}

		api.GET("/ws", requireAuth, WebSocketHandler(d.Hub))

		// Public reads
		api.GET("/rides", GetRides(d.Rides, d.Location))
		api.GET("/rides/:id", GetRide(d.Rides))
		api.GET("/users/address/:address", GetUserByAddress(d.Users))
		api.GET("/users/driver/:id", GetDriverProfile(d.Rides))
		api.GET("/users/:id/reviews", GetUserReviews(d.Reviews))
		api.GET("/events", GetEvents(d.Community, d.Location))
		api.GET("/events/:id", GetEvent(d.Community))
		api.GET("/proposals", GetProposals(d.Governance))
		api.GET("/proposals/:id", GetProposal(d.Governance))

		protected := api.Group("/")
		protected.Use(requireAuth)
		{
			rides := protected.Group("/rides")
			{
				rides.POST("", CreateRide(d.Rides))
				rides.POST("/:id/book", BookRide(d.Bookings))
				rides.PATCH("/:id/status", UpdateRideStatus(d.Rides))
				rides.DELETE("/:id", DeleteRide(d.Rides))
				rides.POST("/:id/requests", CreateRideRequest(d.Bookings))
				rides.GET("/:id/requests", GetRideRequests(d.Bookings))
				rides.POST("/:id/reviews", CreateReview(d.Reviews))
			}

			requests := protected.Group("/requests")
			{
				requests.GET("/mine", GetMyRequests(d.Bookings))
				requests.POST("/:id/respond", RespondToRideRequest(d.Bookings))
				requests.POST("/:id/cancel", CancelRideRequest(d.Bookings))
			}

			bookings := protected.Group("/bookings")
			{
				bookings.GET("/mine", GetMyBookings(d.Bookings))
				bookings.GET("/driver", GetDriverBookings(d.Bookings))
				bookings.POST("/:id/cancel", CancelBooking(d.Bookings))
				bookings.POST("/:id/pay", PayBooking(d.Bookings))
			}

			users := protected.Group("/users")
			{
				users.GET("/me", GetProfile(d.Users))
				users.POST("/profile", UpdateProfile(d.Users))
				users.POST("/me/avatar", UploadAvatar(d.Users))
				users.GET("/:id/presence", GetPresence(d.Users))
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly(d.IsAdmin))
			{
				admin.PATCH("/users/:id/verify", VerifyUser(d.Users))
			}

			messages := protected.Group("/messages")
			{
				messages.POST("", SendMessage(d.Messages))
				messages.GET("/conversations", GetConversations(d.Messages))
				messages.GET("/with/:userId", GetConversation(d.Messages))
				messages.POST("/:id/read", MarkMessageRead(d.Messages))
			}

			events := protected.Group("/events")
			{
				events.POST("", CreateEvent(d.Community))
				events.POST("/:id/attend", AttendEvent(d.Community))
				events.DELETE("/:id/attend", LeaveEvent(d.Community))
			}

			proposals := protected.Group("/proposals")
			{
				proposals.POST("", CreateProposal(d.Governance))
				proposals.POST("/:id/votes", VoteOnProposal(d.Governance))
				proposals.POST("/:id/close", CloseProposal(d.Governance))
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("/preferences", GetNotificationPreferences(d.Notifications))
				notifications.PUT("/preferences", UpdateNotificationPreferences(d.Notifications))
				notifications.POST("/token", RegisterFCMToken(d.Notifications))
				notifications.DELETE("/token", RemoveFCMToken(d.Notifications))
			}
		}
	}
}
