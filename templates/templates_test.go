package templates

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpl, err := Load()
	require.NoError(t, err)
	for _, name := range []string{"index.html", "reserver.html", "calendrier.html", "admin.html", "decision.html", "error.html", "login.html"} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, "error.html", map[string]interface{}{
		"Title": "Oups", "Path": "/x", "Status": 404, "Message": "Demande <introuvable>",
	}))
	assert.Contains(t, buf.String(), "Demande &lt;introuvable&gt;")
}

func TestFuncs(t *testing.T) {
	start := time.Date(2030, 7, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2030-07-01", Funcs["isodate"].(func(time.Time) string)(start))
	assert.Equal(t, []int{0, 1, 2}, Funcs["seq"].(func(int) []int)(3))

	dict := Funcs["dict"].(func(...interface{}) map[string]interface{})
	assert.Equal(t, map[string]interface{}{"a": 1}, dict("a", 1, "orphan"))

	deref := Funcs["deref"].(func(*float64) float64)
	v := 1.5
	assert.Equal(t, 1.5, deref(&v))
	assert.Equal(t, 0.0, deref(nil))
}
