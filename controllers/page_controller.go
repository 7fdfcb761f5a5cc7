package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chez-meme/models"
	"chez-meme/services"
	"chez-meme/utils"
)

// PageController renders the public HTML pages.
type PageController struct {
	Reservations *services.ReservationService
	ActivitySvc  *services.ActivityService
	Forecast     *services.ForecastService
	Photos       *services.GalleryService[models.Photo]
	Shame        *services.GalleryService[models.ShameEntry]
	Board        *services.GalleryService[models.LeaderboardEntry]
}

func (ctrl *PageController) Index(c *gin.Context) {
	photos, err := ctrl.Photos.List(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	render(c, http.StatusOK, "index.html", "Chez Mémé", gin.H{"Photos": photos})
}

func (ctrl *PageController) Apartment(c *gin.Context) {
	photos, err := ctrl.Photos.List(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	render(c, http.StatusOK, "appartement.html", "L'appartement", gin.H{"Photos": photos})
}

// Activities shows the activities and surf spots. The forecast is optional:
// the page renders without it when Open-Meteo is down and nothing is cached.
func (ctrl *PageController) Activities(c *gin.Context) {
	ctx := c.Request.Context()
	activityType := c.Query("type")
	activities, err := ctrl.ActivitySvc.List(ctx, activityType)
	if err != nil {
		renderError(c, err)
		return
	}
	types, err := ctrl.ActivitySvc.Types(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	spots, err := ctrl.ActivitySvc.SurfSpots(ctx)
	if err != nil {
		renderError(c, err)
		return
	}

	var forecast *services.Forecast
	if ctrl.Forecast != nil {
		fctx, cancel := contextWithTimeout(c, 5*time.Second)
		forecast, err = ctrl.Forecast.Get(fctx)
		cancel()
		if err != nil {
			utils.Log.Warn("activities page without forecast: %v", err)
		}
	}

	render(c, http.StatusOK, "activites.html", "Activités", gin.H{
		"Activities": activities,
		"Types":      types,
		"Selected":   activityType,
		"SurfSpots":  spots,
		"Forecast":   forecast,
	})
}

// Calendar shows the approved stays and the occupied nights of the next
// twelve months.
func (ctrl *PageController) Calendar(c *gin.Context) {
	ctx := c.Request.Context()
	reservations, err := ctrl.Reservations.ListApproved(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	from := utils.DateOnly(ctrl.Reservations.Now())
	days, err := ctrl.Reservations.CalendarDays(ctx, from, from.AddDate(1, 0, 0))
	if err != nil {
		renderError(c, err)
		return
	}
	render(c, http.StatusOK, "calendrier.html", "Calendrier", gin.H{
		"Reservations": reservations,
		"Days":         days,
		"Months":       buildMonths(from, 12, days),
	})
}

func (ctrl *PageController) WallOfShame(c *gin.Context) {
	entries, err := ctrl.Shame.List(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	render(c, http.StatusOK, "wall_of_shame.html", "Wall of Shame", gin.H{"Entries": entries})
}

func (ctrl *PageController) Leaderboard(c *gin.Context) {
	entries, err := ctrl.Board.List(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	render(c, http.StatusOK, "leaderboard.html", "Leaderboard", gin.H{"Entries": services.Ranking(entries)})
}

// AdminPhotos is the gallery management page.
func (ctrl *PageController) AdminPhotos(c *gin.Context) {
	ctx := c.Request.Context()
	photos, err := ctrl.Photos.List(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	shame, err := ctrl.Shame.List(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	board, err := ctrl.Board.List(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	render(c, http.StatusOK, "admin_photos.html", "Photos", gin.H{
		"Photos":      photos,
		"Shame":       shame,
		"Leaderboard": board,
	})
}

// ---------------------------
// Calendar grid
// ---------------------------

type CalendarDay struct {
	Date   string
	Day    int
	Guest  string
	Booked bool
}

type CalendarMonth struct {
	Label string
	// Blank is the number of empty cells before the 1st, weeks starting Monday.
	Blank int
	Days  []CalendarDay
}

var frMonths = [...]string{"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre"}

func buildMonths(from time.Time, count int, booked map[string]string) []CalendarMonth {
	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]CalendarMonth, 0, count)
	for m := 0; m < count; m++ {
		start := first.AddDate(0, m, 0)
		month := CalendarMonth{
			Label: frMonths[start.Month()-1] + " " + start.Format("2006"),
			Blank: (int(start.Weekday()) + 6) % 7,
		}
		for d := start; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
			key := utils.FormatDate(d)
			guest, ok := booked[key]
			month.Days = append(month.Days, CalendarDay{Date: key, Day: d.Day(), Guest: guest, Booked: ok})
		}
		months = append(months, month)
	}
	return months
}
