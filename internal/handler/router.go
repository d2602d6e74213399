package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-assistant/client/internal/config"
	"github.com/zhouzirui/visa-assistant/client/internal/handler/admin"
	"github.com/zhouzirui/visa-assistant/client/internal/handler/chat"
	"github.com/zhouzirui/visa-assistant/client/internal/handler/page"
	"github.com/zhouzirui/visa-assistant/client/internal/middleware"
	chatService "github.com/zhouzirui/visa-assistant/client/internal/service/chat"
	promptService "github.com/zhouzirui/visa-assistant/client/internal/service/prompt"
	"github.com/zhouzirui/visa-assistant/client/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, chatSvc *chatService.Service, promptSvc *promptService.Service, logger *zap.SugaredLogger) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	pages, err := page.New(cfg.Backend.BaseURL, logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(chatSvc, cfg.Server.SecureCookie))

		pages.RegisterRoutes(r)

		r.Route("/api", func(api chi.Router) {
			chat.New(chatSvc, logger).RegisterRoutes(api)
			admin.New(promptSvc, logger).RegisterRoutes(api)
		})
	})

	return r, nil
}
