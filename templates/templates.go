// Package templates embeds the HTML pages.
package templates

import (
	"embed"
	"html/template"
	"time"

	"chez-meme/utils"
)

//go:embed *.html
var files embed.FS

// Funcs are the helpers available to every page.
var Funcs = template.FuncMap{
	"frdate":  func(t time.Time) string { return utils.FormatDateFR(t) },
	"isodate": func(t time.Time) string { return utils.FormatDate(t) },
	"seq": func(n int) []int {
		s := make([]int, n)
		for i := range s {
			s[i] = i
		}
		return s
	},
	"dict": func(kv ...interface{}) map[string]interface{} {
		m := make(map[string]interface{}, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			if k, ok := kv[i].(string); ok {
				m[k] = kv[i+1]
			}
		}
		return m
	},
	"deref": func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	},
}

// Load parses every page with the shared layout.
func Load() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(files, "*.html")
}
