package routes

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chez-meme/controllers"
	"chez-meme/middleware"
	"chez-meme/models"
	"chez-meme/services"
)

// Deps is everything the router wires to a URL.
type Deps struct {
	Pages        *controllers.PageController
	Reservations *controllers.ReservationController
	Admin        *controllers.AdminController
	Auth         *controllers.AuthController
	Activities   *controllers.ActivityController
	Media        *controllers.MediaController
	Photos       *controllers.GalleryController[models.Photo]
	Shame        *controllers.GalleryController[models.ShameEntry]
	Leaderboard  *controllers.GalleryController[models.LeaderboardEntry]

	Sessions    *services.SessionManager
	Templates   *template.Template
	CORSOrigins []string
	StaticDir   string
}

func parseCorsOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, part := range raw {
		origin := strings.TrimSpace(part)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// SetupRouter builds the gin engine.
func SetupRouter(d Deps) *gin.Engine {
	controllers.RegisterValidators()

	r := gin.New()
	r.Use(middleware.Logger(), middleware.Recovery())
	r.MaxMultipartMemory = 32 << 20
	if d.Templates != nil {
		r.SetHTMLTemplate(d.Templates)
	}
	if d.StaticDir != "" {
		r.Static("/static", d.StaticDir)
	}

	origins := parseCorsOrigins(d.CORSOrigins)
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.LoadSession(d.Sessions))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Pages
	r.GET("/", d.Pages.Index)
	r.GET("/appartement", d.Pages.Apartment)
	r.GET("/activites", d.Pages.Activities)
	r.GET("/calendrier", d.Pages.Calendar)
	r.GET("/reserver", d.Reservations.ReserveForm)
	r.POST("/reserver", d.Reservations.SubmitRequest)
	r.GET("/wall-of-shame", d.Pages.WallOfShame)
	r.GET("/leaderboard", d.Pages.Leaderboard)

	r.GET("/login", d.Auth.LoginForm)
	r.POST("/login", d.Auth.Login)
	r.GET("/logout", d.Auth.Logout)
	r.POST("/logout", d.Auth.Logout)

	// links sent to the hosts
	r.GET("/approve/:token", d.Reservations.ApproveByToken)
	r.GET("/reject/:token", d.Reservations.RejectByToken)

	r.GET("/images/:token", d.Media.ServeImage)

	api := r.Group("/api")
	{
		api.GET("/reservations", d.Reservations.ListApproved)
		api.POST("/reservations", d.Reservations.SubmitRequest)
		api.GET("/calendar", d.Reservations.Calendar)
		api.GET("/availability", d.Reservations.Availability)
		api.GET("/activities", d.Activities.List)
		api.GET("/activities/:id", d.Activities.Get)
		api.GET("/surf-spots", d.Activities.SurfSpots)
		api.GET("/forecast", d.Media.GetForecast)
		api.GET("/photos", d.Photos.List)
		api.GET("/wall-of-shame", d.Shame.List)
		api.GET("/leaderboard", controllers.Ranking(d.Leaderboard.Gallery))
	}

	admin := r.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("", d.Admin.Dashboard)
		admin.GET("/", d.Admin.Dashboard)
		admin.GET("/photos", d.Pages.AdminPhotos)

		// old email links
		admin.GET("/approve/:id", d.Admin.LegacyDecision(models.StatusApproved))
		admin.GET("/reject/:id", d.Admin.LegacyDecision(models.StatusRejected))

		adminAPI := admin.Group("/api")
		{
			adminAPI.GET("/stats", d.Admin.Stats)

			reservations := adminAPI.Group("/reservations")
			{
				reservations.GET("", d.Admin.ListReservations)
				reservations.POST("", d.Admin.CreateReservation)
				reservations.GET("/:id", d.Admin.GetReservation)
				reservations.PUT("/:id", d.Admin.UpdateReservation)
				reservations.DELETE("/:id", d.Admin.DeleteReservation)
				reservations.PATCH("/:id/status", d.Admin.SetReservationStatus)
				reservations.POST("/:id/approve", d.Admin.ApproveReservation)
				reservations.POST("/:id/reject", d.Admin.RejectReservation)
			}

			requests := adminAPI.Group("/requests")
			{
				requests.GET("", d.Admin.ListRequests)
				requests.POST("/:id/approve", d.Admin.ApproveRequest)
				requests.POST("/:id/reject", d.Admin.RejectRequest)
				requests.DELETE("/:id", d.Admin.DeleteRequest)
			}

			activities := adminAPI.Group("/activities")
			{
				activities.POST("", d.Activities.Create)
				activities.PUT("/:id", d.Activities.Update)
				activities.DELETE("/:id", d.Activities.Delete)
			}
			adminAPI.POST("/surf-spots/distances", d.Admin.RefreshDistances)

			photos := adminAPI.Group("/photos")
			{
				photos.GET("", d.Photos.List)
				photos.POST("", d.Photos.Upload)
				photos.PUT("/order", d.Photos.Reorder)
				photos.PUT("/:id/caption", d.Photos.UpdateCaption)
				photos.DELETE("/:id", d.Photos.Delete)
			}

			shame := adminAPI.Group("/wall-of-shame")
			{
				shame.GET("", d.Shame.List)
				shame.POST("", d.Shame.Upload)
				shame.PUT("/order", d.Shame.Reorder)
				shame.PUT("/:id", controllers.UpdateShame(d.Shame.Gallery))
				shame.PUT("/:id/caption", d.Shame.UpdateCaption)
				shame.DELETE("/:id", d.Shame.Delete)
			}

			board := adminAPI.Group("/leaderboard")
			{
				board.GET("", d.Leaderboard.List)
				board.POST("", d.Leaderboard.Upload)
				board.PUT("/order", d.Leaderboard.Reorder)
				board.PUT("/:id", controllers.UpdateLeaderboard(d.Leaderboard.Gallery))
				board.PUT("/:id/caption", d.Leaderboard.UpdateCaption)
				board.DELETE("/:id", d.Leaderboard.Delete)
			}
		}
	}

	return r
}
