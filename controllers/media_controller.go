package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chez-meme/services"
	"chez-meme/utils"
)

// MediaController serves database-stored images and the forecast.
type MediaController struct {
	Images   *services.ImageService
	Forecast *services.ForecastService
}

func NewMediaController(images *services.ImageService, forecast *services.ForecastService) *MediaController {
	return &MediaController{Images: images, Forecast: forecast}
}

func (ctrl *MediaController) ServeImage(c *gin.Context) {
	img, err := ctrl.Images.Lookup(c.Request.Context(), c.Param("token"))
	if err != nil {
		e := classify(err)
		if e.Status >= http.StatusInternalServerError {
			utils.Log.Error("image %s: %v", c.Param("token"), err)
		}
		c.Status(e.Status)
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, img.MimeType, img.Data)
}

func (ctrl *MediaController) GetForecast(c *gin.Context) {
	f, err := ctrl.Forecast.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if f.Stale {
		c.Header("Warning", `110 - "stale forecast"`)
	}
	utils.JSONSuccess(c, http.StatusOK, f)
}
