package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/chepyr/go-task-manager/internal/models"
)

var pageNames = []string{
	"index", "register", "login", "add_new_task", "remove_task",
	"pending_task", "completed_task", "about", "apology",
}

// Pages holds one parsed template set per page, each layered on base.html.
type Pages struct {
	templates map[string]*template.Template
	about     template.HTML
}

// LoadPages parses the embedded templates and renders the about page markdown.
func LoadPages() (*Pages, error) {
	p := &Pages{templates: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		p.templates[name] = tmpl
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(aboutMarkdown, &buf); err != nil {
		return nil, fmt.Errorf("rendering about page: %w", err)
	}
	p.about = template.HTML(buf.String())
	return p, nil
}

type pageData struct {
	Title    string
	User     *models.User
	Flashes  []string
	Tasks    []*models.Task
	Counts   models.StatusCounts
	Statuses []models.TaskStatus
	Content  template.HTML
	Message  string
	Code     int
}

// render executes a page and writes it with the given status. Pending flash
// messages are consumed by every rendered page.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	tmpl, ok := h.Pages.templates[name]
	if !ok {
		h.log(r).Error("unknown template", zap.String("template", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if data.User == nil {
		data.User = currentUser(r)
	}
	data.Flashes = h.Sessions.Flashes(w, r)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		h.log(r).Error("failed to render page", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// apology renders the generic rejection page.
func (h *Handler) apology(w http.ResponseWriter, r *http.Request, message string, code int) {
	h.log(r).Debug("apology", zap.String("message", message), zap.Int("code", code))
	h.render(w, r, code, "apology", pageData{Title: "Apology", Message: message, Code: code})
}
