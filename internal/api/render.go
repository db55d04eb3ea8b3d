package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/dgallion1/checkmate/internal/evaluate"
)

//go:embed templates/*.html
var templateFS embed.FS

// goldmark escapes raw HTML by default, so its output is safe to inline.
var md = goldmark.New()

func parsePages() *template.Template {
	return template.Must(template.New("pages").Funcs(template.FuncMap{
		"markdown":    renderMarkdown,
		"statusClass": statusClass,
		"join":        strings.Join,
	}).ParseFS(templateFS, "templates/*.html"))
}

func renderMarkdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}

func statusClass(st evaluate.Status) string {
	switch st {
	case evaluate.StatusMet:
		return "met"
	case evaluate.StatusUnmet:
		return "unmet"
	default:
		return "partial"
	}
}

func (s *Server) render(w http.ResponseWriter, code int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("render page", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}
