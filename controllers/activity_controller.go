package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chez-meme/services"
	"chez-meme/utils"
)

type ActivityController struct {
	Activities *services.ActivityService
}

func NewActivityController(svc *services.ActivityService) *ActivityController {
	return &ActivityController{Activities: svc}
}

// List returns the activities, filtered by ?type= when given.
func (ctrl *ActivityController) List(c *gin.Context) {
	list, err := ctrl.Activities.List(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

func (ctrl *ActivityController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := ctrl.Activities.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, a)
}

func (ctrl *ActivityController) SurfSpots(c *gin.Context) {
	spots, err := ctrl.Activities.SurfSpots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, spots)
}

func (ctrl *ActivityController) Create(c *gin.Context) {
	var payload services.ActivityInput
	if err := c.ShouldBind(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	a, err := ctrl.Activities.Create(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusCreated, "Activité ajoutée.", a)
}

func (ctrl *ActivityController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var payload services.ActivityInput
	if err := c.ShouldBind(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	a, err := ctrl.Activities.Update(c.Request.Context(), id, payload)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Activité modifiée.", a)
}

func (ctrl *ActivityController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Activities.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Activité supprimée.")
}
