package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chez-meme/models"
	"chez-meme/services"
)

func newEngine(sessions *services.SessionManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(), Recovery(), LoadSession(sessions))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })
	admin := r.Group("/admin", RequireAdmin())
	admin.GET("/page", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	admin.GET("/api/stats", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func get(r http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecovery(t *testing.T) {
	w := get(newEngine(services.NewSessionManager("s", 0)), "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error.internal")
}

func TestRequireAdmin(t *testing.T) {
	sessions := services.NewSessionManager("s", 0)
	r := newEngine(sessions)

	w := get(r, "/admin/page?tab=1", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?next=%2Fadmin%2Fpage%3Ftab%3D1", w.Header().Get("Location"))

	w = get(r, "/admin/api/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := sessions.Issue(&models.User{ID: 1, Username: "mamie", IsAdmin: true})
	require.NoError(t, err)
	w = get(r, "/admin/api/stats", &http.Cookie{Name: services.SessionCookieName, Value: token})
	assert.Equal(t, http.StatusOK, w.Code)

	// signed, but not an admin
	token, err = sessions.Issue(&models.User{ID: 2, Username: "invite"})
	require.NoError(t, err)
	w = get(r, "/admin/api/stats", &http.Cookie{Name: services.SessionCookieName, Value: token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// signed with another secret
	other, err := services.NewSessionManager("other", 0).Issue(&models.User{ID: 1, IsAdmin: true})
	require.NoError(t, err)
	w = get(r, "/admin/page", &http.Cookie{Name: services.SessionCookieName, Value: other})
	assert.Equal(t, http.StatusSeeOther, w.Code)
}
