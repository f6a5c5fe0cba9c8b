// Package email provides the SMTP and HTTP API email senders and the shared HTML layout.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"helpdesk_backend/platform/sanitize"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type layoutData struct {
	Title string
	Body  template.HTML
}

// Layout wraps a rendered notification body in the HTML email layout. Plain
// text bodies get their line breaks converted; HTML bodies are sanitized.
func Layout(title, body string) (string, error) {
	var content string
	if sanitize.LooksLikeHTML(body) {
		content = sanitize.EmailHTML(body)
	} else {
		content = strings.ReplaceAll(template.HTMLEscapeString(body), "\n", "<br>\n")
	}
	return RenderTemplate("layout.html", layoutData{
		Title: title,
		Body:  template.HTML(content),
	})
}

// RenderTemplate executes one of the embedded templates.
func RenderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render email template %s: %w", name, err)
	}
	return buf.String(), nil
}
