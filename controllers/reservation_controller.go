// controllers/reservation_controller.go
package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chez-meme/services"
	"chez-meme/utils"
)

type stayRequestPayload struct {
	GuestName string `json:"guest_name" form:"guest_name" binding:"required,notblank,max=100"`
	Email     string `json:"email" form:"email" binding:"omitempty,email,max=120"`
	Phone     string `json:"phone" form:"phone" binding:"max=30"`
	Message   string `json:"message" form:"message" binding:"max=2000"`
	StartDate string `json:"start_date" form:"start_date" binding:"required,isodate"`
	EndDate   string `json:"end_date" form:"end_date" binding:"required,isodate"`
	Captcha   string `json:"captcha_token" form:"g-recaptcha-response"`
}

// captchaToken accepts the field names of the supported widgets.
func (p stayRequestPayload) captchaToken(c *gin.Context) string {
	if p.Captcha != "" {
		return p.Captcha
	}
	for _, field := range []string{"h-captcha-response", "cf-turnstile-response"} {
		if v := c.PostForm(field); v != "" {
			return v
		}
	}
	return ""
}

// ---------------------------
// Controller
// ---------------------------

type ReservationController struct {
	Reservations *services.ReservationService
	Captcha      *services.CaptchaVerifier
}

func NewReservationController(svc *services.ReservationService, captcha *services.CaptchaVerifier) *ReservationController {
	return &ReservationController{Reservations: svc, Captcha: captcha}
}

func (ctrl *ReservationController) captchaSiteKey() string {
	if ctrl.Captcha.Enabled() {
		return ctrl.Captcha.SiteKey
	}
	return ""
}

// ReserveForm renders the stay request form. start/end query values prefill it.
func (ctrl *ReservationController) ReserveForm(c *gin.Context) {
	render(c, http.StatusOK, "reserver.html", "Réserver", gin.H{
		"Form": stayRequestPayload{
			StartDate: c.Query("start"),
			EndDate:   c.Query("end"),
		},
		"CaptchaSiteKey": ctrl.captchaSiteKey(),
		"Today":          utils.FormatDate(ctrl.Reservations.Now()),
	})
}

// SubmitRequest handles the public stay request, from the form or as JSON.
func (ctrl *ReservationController) SubmitRequest(c *gin.Context) {
	asJSON := wantsJSON(c)

	var payload stayRequestPayload
	if err := c.ShouldBind(&payload); err != nil {
		if asJSON {
			respondBadRequest(c, err)
			return
		}
		ctrl.formError(c, payload, http.StatusBadRequest, "Merci de remplir votre nom et des dates valides.")
		return
	}

	if err := ctrl.Captcha.Verify(c.Request.Context(), payload.captchaToken(c), c.ClientIP()); err != nil {
		if !errors.Is(err, services.ErrCaptchaFailed) {
			utils.Log.Warn("captcha verification unavailable: %v", err)
			if asJSON {
				utils.JSONError(c, http.StatusBadGateway, "error.captchaUnavailable", "Vérification anti-robot indisponible, réessayez plus tard.")
				return
			}
			ctrl.formError(c, payload, http.StatusBadGateway, "Vérification anti-robot indisponible, réessayez plus tard.")
			return
		}
		if asJSON {
			respondError(c, err)
			return
		}
		ctrl.formError(c, payload, http.StatusBadRequest, classify(err).Message)
		return
	}

	pending, err := ctrl.Reservations.SubmitRequest(c.Request.Context(), services.StayRequest{
		GuestName: payload.GuestName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Message:   payload.Message,
		StartDate: payload.StartDate,
		EndDate:   payload.EndDate,
	})
	switch {
	case err == nil:
		if asJSON {
			utils.JSONMessage(c, http.StatusCreated, "Demande de réservation envoyée !", pending)
			return
		}
		redirectWithFlash(c, "/calendrier", "success", "Demande de réservation envoyée ! Vous recevrez une réponse rapidement.")

	case errors.Is(err, services.ErrNotificationFailed) && pending != nil:
		// saved, but nobody was told
		if asJSON {
			c.JSON(http.StatusPartialContent, gin.H{
				"success": true,
				"message": "Demande enregistrée, mais la notification n'a pas pu être envoyée.",
				"data":    pending,
				"warning": gin.H{"code": "error.notificationFailed", "message": err.Error()},
			})
			return
		}
		redirectWithFlash(c, "/calendrier", "warning", "Demande enregistrée, mais l'email n'a pas pu être envoyé. Contactez-nous directement.")

	default:
		if asJSON {
			respondError(c, err)
			return
		}
		e := classify(err)
		ctrl.formError(c, payload, e.Status, e.Message)
	}
}

func (ctrl *ReservationController) formError(c *gin.Context, payload stayRequestPayload, status int, message string) {
	payload.Captcha = ""
	render(c, status, "reserver.html", "Réserver", gin.H{
		"Form":           payload,
		"CaptchaSiteKey": ctrl.captchaSiteKey(),
		"Today":          utils.FormatDate(ctrl.Reservations.Now()),
		"Flash":          &Flash{Kind: "error", Message: message},
	})
}

// ---------------------------
// Email links
// ---------------------------

func (ctrl *ReservationController) ApproveByToken(c *gin.Context) {
	ctrl.decideByToken(c, true)
}

func (ctrl *ReservationController) RejectByToken(c *gin.Context) {
	ctrl.decideByToken(c, false)
}

func (ctrl *ReservationController) decideByToken(c *gin.Context, approve bool) {
	token := c.Param("token")
	var (
		d   services.Decision
		err error
	)
	if approve {
		d, err = ctrl.Reservations.ApproveRequestByToken(c.Request.Context(), token)
	} else {
		d, err = ctrl.Reservations.RejectRequestByToken(c.Request.Context(), token)
	}
	if err != nil {
		renderError(c, err)
		return
	}
	render(c, http.StatusOK, "decision.html", "Demande traitée", gin.H{
		"Approved": approve,
		"Request":  d.Request,
	})
}

// ---------------------------
// Public API
// ---------------------------

func (ctrl *ReservationController) ListApproved(c *gin.Context) {
	list, err := ctrl.Reservations.ListApproved(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

// Calendar returns the occupied nights between from and to (YYYY-MM-DD),
// one year ahead from today by default.
func (ctrl *ReservationController) Calendar(c *gin.Context) {
	from, to, ok := calendarRange(c, ctrl.Reservations.Now())
	if !ok {
		return
	}
	days, err := ctrl.Reservations.CalendarDays(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"from": utils.FormatDate(from),
		"to":   utils.FormatDate(to),
		"days": days,
	})
}

const maxCalendarSpan = 2 * 366 * 24 * time.Hour

func calendarRange(c *gin.Context, now time.Time) (time.Time, time.Time, bool) {
	from := utils.DateOnly(now)
	to := from.AddDate(1, 0, 0)
	var err error
	if v := c.Query("from"); v != "" {
		if from, err = utils.ParseDate(v); err != nil {
			respondError(c, services.ErrInvalidRange)
			return from, to, false
		}
		if c.Query("to") == "" {
			to = from.AddDate(1, 0, 0)
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = utils.ParseDate(v); err != nil {
			respondError(c, services.ErrInvalidRange)
			return from, to, false
		}
	}
	if !from.Before(to) || to.Sub(from) > maxCalendarSpan {
		respondError(c, services.ErrInvalidRange)
		return from, to, false
	}
	return from, to, true
}

// Availability tells whether [start, end) is free.
func (ctrl *ReservationController) Availability(c *gin.Context) {
	conflict, err := ctrl.Reservations.CheckAvailability(c.Request.Context(), c.Query("start"), c.Query("end"))
	if err != nil {
		respondError(c, err)
		return
	}
	if conflict != nil {
		utils.JSONSuccess(c, http.StatusOK, gin.H{"available": false, "conflict": conflict})
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"available": true})
}
