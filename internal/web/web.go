// Package web renders the single-page UI shell.
package web

import (
	"embed"
	"html/template"
	"io"

	"github.com/PratikDhanave/empleaido-factory/internal/models"
)

//go:embed templates/index.html
var files embed.FS

var index = template.Must(template.ParseFS(files, "templates/index.html"))

// Page is the data the index template renders.
type Page struct {
	Records []models.Empleaido
	Sefirot []string
	Token   string
	Version string
}

// Render writes the index page. Sefirot and Version are filled in when empty.
func Render(w io.Writer, p Page) error {
	if p.Sefirot == nil {
		p.Sefirot = models.Sefirot
	}
	if p.Version == "" {
		p.Version = models.Version
	}
	return index.Execute(w, p)
}
