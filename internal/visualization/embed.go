package visualization

import (
	"embed"
	"html/template"
)

// templates contains the HTML page templates.
//
//go:embed templates/*
var templates embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"short": shortID,
}).ParseFS(templates, "templates/*.tmpl"))

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
