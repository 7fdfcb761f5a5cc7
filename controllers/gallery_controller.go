package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"chez-meme/models"
	"chez-meme/services"
	"chez-meme/utils"
)

type captionPayload struct {
	Caption string `json:"caption" form:"caption" binding:"max=200"`
}

type reorderPayload struct {
	IDs []uint `json:"ids" form:"ids" binding:"required,min=1"`
}

type shamePayload struct {
	Title   string `json:"title" form:"title" binding:"max=120"`
	Caption string `json:"caption" form:"caption" binding:"max=200"`
}

type leaderboardPayload struct {
	Name    string `json:"name" form:"name" binding:"required,notblank,max=100"`
	Score   *int   `json:"score" form:"score" binding:"required,min=0"`
	Caption string `json:"caption" form:"caption" binding:"max=200"`
}

// GalleryController serves one picture table.
type GalleryController[T services.GalleryItem] struct {
	Gallery  *services.GalleryService[T]
	MaxBytes int64
}

func NewGalleryController[T services.GalleryItem](g *services.GalleryService[T], maxBytes int64) *GalleryController[T] {
	return &GalleryController[T]{Gallery: g, MaxBytes: maxBytes}
}

func (ctrl *GalleryController[T]) List(c *gin.Context) {
	list, err := ctrl.Gallery.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

// Upload accepts up to MaxFiles images in the "files" (or "file") field.
// Per-file metadata comes in parallel fields: captions, titles, names, scores.
func (ctrl *GalleryController[T]) Upload(c *gin.Context) {
	limit := int64(ctrl.Gallery.MaxFiles)*ctrl.MaxBytes + 1<<20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(c, services.ErrImageTooLarge)
			return
		}
		respondError(c, services.ErrNoFiles)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	captions := formList(form.Value, "captions", "caption")
	titles := formList(form.Value, "titles", "title")
	names := formList(form.Value, "names", "name")
	scores := formList(form.Value, "scores", "score")

	items := make([]services.UploadItem, 0, len(files))
	for i, fh := range files {
		item := services.UploadItem{
			File:    fh,
			Caption: at(captions, i),
			Title:   at(titles, i),
			Name:    at(names, i),
		}
		if s := at(scores, i); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n >= 0 {
				item.Score = n
			}
		}
		items = append(items, item)
	}

	res, err := ctrl.Gallery.Upload(c.Request.Context(), items)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(res.Created) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Aucune image valide.",
			"error":   gin.H{"code": "error.noValidImage", "message": "Aucune image valide."},
			"data":    res,
		})
		return
	}
	utils.JSONMessage(c, http.StatusCreated, strconv.Itoa(len(res.Created))+" image(s) ajoutée(s).", res)
}

func (ctrl *GalleryController[T]) UpdateCaption(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var payload captionPayload
	if err := c.ShouldBind(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := ctrl.Gallery.UpdateCaption(c.Request.Context(), id, payload.Caption); err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Légende mise à jour.")
}

func (ctrl *GalleryController[T]) Reorder(c *gin.Context) {
	var payload reorderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := ctrl.Gallery.Reorder(c.Request.Context(), payload.IDs); err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Ordre mis à jour.")
}

func (ctrl *GalleryController[T]) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Gallery.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Image supprimée.")
}

// UpdateShame edits a wall of shame entry.
func UpdateShame(g *services.GalleryService[models.ShameEntry]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var payload shamePayload
		if err := c.ShouldBind(&payload); err != nil {
			respondBadRequest(c, err)
			return
		}
		if err := services.UpdateShameTitle(c.Request.Context(), g, id, payload.Title, payload.Caption); err != nil {
			respondError(c, err)
			return
		}
		utils.JSONMessage(c, http.StatusOK, "Entrée mise à jour.")
	}
}

// UpdateLeaderboard edits a contestant.
func UpdateLeaderboard(g *services.GalleryService[models.LeaderboardEntry]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var payload leaderboardPayload
		if err := c.ShouldBind(&payload); err != nil {
			respondBadRequest(c, err)
			return
		}
		if err := services.UpdateLeaderboardEntry(c.Request.Context(), g, id, payload.Name, *payload.Score, payload.Caption); err != nil {
			respondError(c, err)
			return
		}
		utils.JSONMessage(c, http.StatusOK, "Classement mis à jour.")
	}
}

// Ranking is the public leaderboard with rank numbers.
func Ranking(g *services.GalleryService[models.LeaderboardEntry]) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := g.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		utils.JSONSuccess(c, http.StatusOK, services.Ranking(list))
	}
}

func formList(values map[string][]string, keys ...string) []string {
	for _, k := range keys {
		if v, ok := values[k]; ok && len(v) > 0 {
			return v
		}
		if v, ok := values[k+"[]"]; ok && len(v) > 0 {
			return v
		}
	}
	return nil
}

func at(list []string, i int) string {
	if i < len(list) {
		return strings.TrimSpace(list[i])
	}
	return ""
}
