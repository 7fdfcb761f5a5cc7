package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chez-meme/services"
	"chez-meme/utils"
)

// ContextAdminKey holds the *services.SessionClaims of a logged-in admin.
const ContextAdminKey = "admin"

const flashCookie = "chez_meme_flash"

// ---------------------------
// Error mapping
// ---------------------------

type apiError struct {
	Status  int
	Code    string
	Message string
}

// classify maps a service error to an HTTP status and a message the guests
// can read.
func classify(err error) apiError {
	var conflict *services.ConflictError
	switch {
	case errors.As(err, &conflict):
		return apiError{http.StatusConflict, "error.datesTaken", fmt.Sprintf(
			"Ces dates sont déjà réservées par %s du %s au %s.",
			conflict.Existing.GuestName,
			utils.FormatDateFR(conflict.Existing.StartDate),
			utils.FormatDateFR(conflict.Existing.EndDate))}
	case errors.Is(err, services.ErrInvalidRange):
		return apiError{http.StatusBadRequest, "error.invalidDateRange", "La date de départ doit être après la date d'arrivée."}
	case errors.Is(err, services.ErrPastDate):
		return apiError{http.StatusBadRequest, "error.dateInPast", "Impossible de réserver dans le passé."}
	case errors.Is(err, services.ErrInvalidGuestName):
		return apiError{http.StatusBadRequest, "error.invalidGuestName", "Merci d'indiquer votre nom (2 caractères minimum)."}
	case errors.Is(err, services.ErrInvalidStatus):
		return apiError{http.StatusBadRequest, "error.invalidStatus", "Statut inconnu."}
	case errors.Is(err, services.ErrAlreadyProcessed):
		return apiError{http.StatusConflict, "error.alreadyProcessed", "Cette demande a déjà été traitée."}
	case errors.Is(err, services.ErrRequestNotFound):
		return apiError{http.StatusNotFound, "error.requestNotFound", "Demande introuvable."}
	case errors.Is(err, services.ErrReservationNotFound):
		return apiError{http.StatusNotFound, "error.reservationNotFound", "Réservation introuvable."}
	case errors.Is(err, services.ErrCaptchaFailed):
		return apiError{http.StatusBadRequest, "error.captchaFailed", "La vérification anti-robot a échoué."}
	case errors.Is(err, services.ErrUnsupportedImage):
		return apiError{http.StatusBadRequest, "error.unsupportedImage", "Format d'image non supporté."}
	case errors.Is(err, services.ErrInvalidImage):
		return apiError{http.StatusBadRequest, "error.invalidImage", "Image illisible."}
	case errors.Is(err, services.ErrImageTooLarge):
		return apiError{http.StatusRequestEntityTooLarge, "error.imageTooLarge", "Image trop volumineuse (5 Mo maximum)."}
	case errors.Is(err, services.ErrNoFiles):
		return apiError{http.StatusBadRequest, "error.noFiles", "Aucun fichier sélectionné."}
	case errors.Is(err, services.ErrTooManyFiles):
		return apiError{http.StatusBadRequest, "error.tooManyFiles", "Trop de fichiers (10 maximum)."}
	case errors.Is(err, services.ErrPictureNotFound), errors.Is(err, services.ErrImageNotFound):
		return apiError{http.StatusNotFound, "error.pictureNotFound", "Photo introuvable."}
	case errors.Is(err, services.ErrInvalidScore):
		return apiError{http.StatusBadRequest, "error.invalidScore", "Le score doit être positif."}
	case errors.Is(err, services.ErrActivityNotFound):
		return apiError{http.StatusNotFound, "error.activityNotFound", "Activité introuvable."}
	case errors.Is(err, services.ErrInvalidActivity):
		return apiError{http.StatusBadRequest, "error.invalidActivity", "Le nom de l'activité est obligatoire."}
	case errors.Is(err, services.ErrForecastUnavailable):
		return apiError{http.StatusBadGateway, "error.forecastUnavailable", "Prévisions indisponibles pour le moment."}
	case errors.Is(err, services.ErrInvalidCredentials):
		return apiError{http.StatusUnauthorized, "error.invalidCredentials", "Identifiants incorrects."}
	case errors.Is(err, services.ErrWeakPassword):
		return apiError{http.StatusBadRequest, "error.weakPassword", "Mot de passe trop court (8 caractères minimum)."}
	case errors.Is(err, services.ErrUserNotFound):
		return apiError{http.StatusNotFound, "error.userNotFound", "Utilisateur introuvable."}
	}
	return apiError{http.StatusInternalServerError, "error.internal", "Une erreur interne est survenue."}
}

func respondError(c *gin.Context, err error) {
	e := classify(err)
	if e.Status >= http.StatusInternalServerError {
		utils.Log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	utils.JSONError(c, e.Status, e.Code, e.Message)
}

func respondBadRequest(c *gin.Context, err error) {
	utils.JSONError(c, http.StatusBadRequest, "error.invalidPayload", "Données invalides : "+err.Error())
}

// ---------------------------
// Request helpers
// ---------------------------

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.JSONError(c, http.StatusBadRequest, "error.invalidId", "Identifiant invalide.")
		return 0, false
	}
	return uint(id), true
}

// wantsJSON reports whether the caller is a script rather than a browser form.
func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return true
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

func contextWithTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

func isAdmin(c *gin.Context) bool {
	v, ok := c.Get(ContextAdminKey)
	if !ok {
		return false
	}
	claims, ok := v.(*services.SessionClaims)
	return ok && claims.IsAdmin
}

// ---------------------------
// Flash messages + rendering
// ---------------------------

type Flash struct {
	Kind    string `json:"k"` // success, error, warning, info
	Message string `json:"m"`
}

func setFlash(c *gin.Context, kind, message string) {
	b, _ := json.Marshal(Flash{Kind: kind, Message: message})
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, base64.RawURLEncoding.EncodeToString(b), 60, "/", "", false, true)
}

func popFlash(c *gin.Context) *Flash {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var f Flash
	if json.Unmarshal(b, &f) != nil {
		return nil
	}
	return &f
}

func redirectWithFlash(c *gin.Context, location, kind, message string) {
	setFlash(c, kind, message)
	c.Redirect(http.StatusSeeOther, location)
}

// render executes a page template with the values every page needs.
func render(c *gin.Context, code int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Path"] = c.Request.URL.Path
	data["IsAdmin"] = isAdmin(c)
	if _, ok := data["Flash"]; !ok {
		data["Flash"] = popFlash(c)
	}
	c.HTML(code, name, data)
}

func renderError(c *gin.Context, err error) {
	e := classify(err)
	if e.Status >= http.StatusInternalServerError {
		utils.Log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	render(c, e.Status, "error.html", "Oups", gin.H{"Status": e.Status, "Message": e.Message})
}
