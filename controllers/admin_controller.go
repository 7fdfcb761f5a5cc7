package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chez-meme/models"
	"chez-meme/services"
	"chez-meme/utils"
)

type reservationPayload struct {
	GuestName string `json:"guest_name" form:"guest_name" binding:"required,notblank,max=100"`
	StartDate string `json:"start_date" form:"start_date" binding:"required,isodate"`
	EndDate   string `json:"end_date" form:"end_date" binding:"required,isodate"`
	Status    string `json:"status" form:"status" binding:"omitempty,oneof=pending approved rejected"`
}

func (p reservationPayload) input() services.ReservationInput {
	return services.ReservationInput{
		GuestName: p.GuestName,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Status:    p.Status,
	}
}

type statusPayload struct {
	Status string `json:"status" form:"status" binding:"required,oneof=pending approved rejected"`
}

// ---------------------------
// Controller
// ---------------------------

type AdminController struct {
	Reservations *services.ReservationService
	Activities   *services.ActivityService
	Distances    *services.DistanceService
}

func NewAdminController(res *services.ReservationService, act *services.ActivityService, dist *services.DistanceService) *AdminController {
	return &AdminController{Reservations: res, Activities: act, Distances: dist}
}

// Dashboard renders the admin home page.
func (ctrl *AdminController) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := ctrl.Reservations.Stats(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	pending, err := ctrl.Reservations.ListPending(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	reservations, err := ctrl.Reservations.ListReservations(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	activities, err := ctrl.Activities.List(ctx, "")
	if err != nil {
		renderError(c, err)
		return
	}
	render(c, http.StatusOK, "admin.html", "Administration", gin.H{
		"Stats":        stats,
		"Pending":      pending,
		"Reservations": reservations,
		"Activities":   activities,
		"Today":        utils.FormatDate(ctrl.Reservations.Now()),
	})
}

// LegacyDecision keeps the old /admin/approve/:id and /admin/reject/:id links
// working: the reservation's status is changed and the admin lands back on
// the dashboard. Callers asking for JSON get the error status instead.
func (ctrl *AdminController) LegacyDecision(status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		r, err := ctrl.Reservations.SetReservationStatus(c.Request.Context(), id, status)
		if err != nil {
			if wantsJSON(c) {
				respondError(c, err)
				return
			}
			redirectWithFlash(c, "/admin", "error", classify(err).Message)
			return
		}
		msg := "Réservation de " + r.GuestName + " approuvée."
		if status == models.StatusRejected {
			msg = "Réservation de " + r.GuestName + " refusée."
		}
		redirectWithFlash(c, "/admin", "success", msg)
	}
}

// ---------------------------
// Reservations API
// ---------------------------

func (ctrl *AdminController) Stats(c *gin.Context) {
	stats, err := ctrl.Reservations.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, stats)
}

func (ctrl *AdminController) ListReservations(c *gin.Context) {
	list, err := ctrl.Reservations.ListReservations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

func (ctrl *AdminController) GetReservation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	r, err := ctrl.Reservations.GetReservation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, r)
}

func (ctrl *AdminController) CreateReservation(c *gin.Context) {
	var payload reservationPayload
	if err := c.ShouldBind(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	r, err := ctrl.Reservations.CreateReservation(c.Request.Context(), payload.input())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusCreated, "Réservation ajoutée.", r)
}

func (ctrl *AdminController) UpdateReservation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var payload reservationPayload
	if err := c.ShouldBind(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	r, err := ctrl.Reservations.UpdateReservation(c.Request.Context(), id, payload.input())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Réservation modifiée.", r)
}

func (ctrl *AdminController) DeleteReservation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	r, err := ctrl.Reservations.DeleteReservation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Réservation de "+r.GuestName+" supprimée.")
}

func (ctrl *AdminController) SetReservationStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var payload statusPayload
	if err := c.ShouldBind(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	ctrl.setStatus(c, id, payload.Status)
}

func (ctrl *AdminController) ApproveReservation(c *gin.Context) {
	if id, ok := parseID(c, "id"); ok {
		ctrl.setStatus(c, id, models.StatusApproved)
	}
}

func (ctrl *AdminController) RejectReservation(c *gin.Context) {
	if id, ok := parseID(c, "id"); ok {
		ctrl.setStatus(c, id, models.StatusRejected)
	}
}

func (ctrl *AdminController) setStatus(c *gin.Context, id uint, status string) {
	r, err := ctrl.Reservations.SetReservationStatus(c.Request.Context(), id, status)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Statut mis à jour.", r)
}

// ---------------------------
// Stay requests API
// ---------------------------

func (ctrl *AdminController) ListRequests(c *gin.Context) {
	var (
		list []models.PendingReservation
		err  error
	)
	if c.Query("status") == models.StatusPending {
		list, err = ctrl.Reservations.ListPending(c.Request.Context())
	} else {
		list, err = ctrl.Reservations.ListRequests(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

func (ctrl *AdminController) ApproveRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	d, err := ctrl.Reservations.ApproveRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Demande de "+d.Request.GuestName+" acceptée.", d)
}

func (ctrl *AdminController) RejectRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	d, err := ctrl.Reservations.RejectRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Demande de "+d.Request.GuestName+" refusée.", d)
}

func (ctrl *AdminController) DeleteRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Reservations.DeleteRequest(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "Demande supprimée.")
}

// ---------------------------
// Surf spots
// ---------------------------

// RefreshDistances recomputes every surf spot's drive from the apartment.
func (ctrl *AdminController) RefreshDistances(c *gin.Context) {
	updated, err := ctrl.Distances.UpdateSurfSpots(c.Request.Context())
	if err != nil && updated == 0 {
		utils.Log.Error("distance refresh failed: %v", err)
		utils.JSONError(c, http.StatusBadGateway, "error.routingUnavailable", "Service d'itinéraire indisponible.")
		return
	}
	spots, lErr := ctrl.Activities.SurfSpots(c.Request.Context())
	if lErr != nil {
		respondError(c, lErr)
		return
	}
	body := gin.H{"updated": updated, "spots": spots}
	if err != nil {
		body["errors"] = err.Error()
	}
	utils.JSONMessage(c, http.StatusOK, "Distances mises à jour.", body)
}
