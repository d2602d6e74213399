package page

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler renders the chat and prompt admin pages.
type Handler struct {
	templates  *template.Template
	backendURL string
	logger     *zap.SugaredLogger
}

type pageData struct {
	Title      string
	BackendURL string
}

// New parses the embedded templates.
func New(backendURL string, logger *zap.SugaredLogger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Handler{templates: tmpl, backendURL: backendURL, logger: logger}, nil
}

// RegisterRoutes mounts the pages at / and /admin.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.render("chat.html", "Visa AI Assistant"))
	r.Get("/admin", h.render("admin.html", "AI Prompt Editor"))
}

func (h *Handler) render(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := h.templates.ExecuteTemplate(w, name, pageData{Title: title, BackendURL: h.backendURL}); err != nil {
			h.logger.Errorw("failed to render page", "page", name, "error", err)
			http.Error(w, "failed to render page", http.StatusInternalServerError)
		}
	}
}
