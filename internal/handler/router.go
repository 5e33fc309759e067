package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/medrag/backend/internal/handler/chat"
	"github.com/zhouzirui/medrag/backend/internal/handler/health"
	middlewarePkg "github.com/zhouzirui/medrag/backend/internal/middleware"
	chatService "github.com/zhouzirui/medrag/backend/internal/service/chat"
	"github.com/zhouzirui/medrag/backend/internal/web"
	"github.com/zhouzirui/medrag/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(serviceName string, sessions *middlewarePkg.Sessions, orchestrator *chatService.Orchestrator, renderer *web.Renderer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "not found")
	})

	// Probes must not mint session cookies.
	health.New(serviceName).RegisterRoutes(r)

	r.Group(func(page chi.Router) {
		page.Use(sessions.Handler)
		chat.New(orchestrator, renderer, serviceName).RegisterRoutes(page)
	})

	return r
}
