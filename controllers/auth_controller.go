package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chez-meme/services"
	"chez-meme/utils"
)

type loginPayload struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type AuthController struct {
	Auth     *services.AuthService
	Sessions *services.SessionManager
	Secure   bool
}

func NewAuthController(auth *services.AuthService, sessions *services.SessionManager, secureCookie bool) *AuthController {
	return &AuthController{Auth: auth, Sessions: sessions, Secure: secureCookie}
}

func (ctrl *AuthController) LoginForm(c *gin.Context) {
	if isAdmin(c) {
		c.Redirect(http.StatusSeeOther, "/admin")
		return
	}
	render(c, http.StatusOK, "login.html", "Connexion", gin.H{"Next": safeNext(c.Query("next")), "Username": ""})
}

func (ctrl *AuthController) Login(c *gin.Context) {
	asJSON := wantsJSON(c)

	var payload loginPayload
	if err := c.ShouldBind(&payload); err != nil {
		if asJSON {
			utils.JSONError(c, http.StatusBadRequest, "error.invalidPayload", "Nom d'utilisateur et mot de passe requis.")
			return
		}
		render(c, http.StatusBadRequest, "login.html", "Connexion", gin.H{
			"Flash":    &Flash{Kind: "error", Message: "Nom d'utilisateur et mot de passe requis."},
			"Username": payload.Username,
			"Next":     safeNext(c.PostForm("next")),
		})
		return
	}

	user, err := ctrl.Auth.Authenticate(c.Request.Context(), payload.Username, payload.Password)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			utils.Log.Error("login of %s failed: %v", payload.Username, err)
		} else {
			utils.Log.Warn("invalid login for %q from %s", payload.Username, c.ClientIP())
		}
		if asJSON {
			respondError(c, err)
			return
		}
		e := classify(err)
		render(c, e.Status, "login.html", "Connexion", gin.H{
			"Flash":    &Flash{Kind: "error", Message: e.Message},
			"Username": payload.Username,
			"Next":     safeNext(c.PostForm("next")),
		})
		return
	}

	token, err := ctrl.Sessions.Issue(user)
	if err != nil {
		utils.Log.Error("failed to issue session for %s: %v", user.Username, err)
		utils.JSONError(c, http.StatusInternalServerError, "error.sessionFailed", "Impossible d'ouvrir la session.")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(services.SessionCookieName, token, int(ctrl.Sessions.TTL.Seconds()), "/", "", ctrl.Secure, true)
	utils.Log.Info("admin %s logged in from %s", user.Username, c.ClientIP())

	if asJSON {
		utils.JSONMessage(c, http.StatusOK, "Connexion réussie.", gin.H{
			"id":       user.ID,
			"username": user.Username,
			"is_admin": user.IsAdmin,
		})
		return
	}
	next := safeNext(c.PostForm("next"))
	if next == "" {
		next = "/admin"
	}
	redirectWithFlash(c, next, "success", "Connexion réussie !")
}

func (ctrl *AuthController) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(services.SessionCookieName, "", -1, "/", "", ctrl.Secure, true)
	if wantsJSON(c) {
		utils.JSONMessage(c, http.StatusOK, "Déconnecté.")
		return
	}
	redirectWithFlash(c, "/", "info", "Vous êtes déconnecté.")
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	return next
}
