package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"screenai-backend/internal/handlers"
	"screenai-backend/internal/middleware"
)

type Handlers struct {
	Contexts  *handlers.ContextHandler
	Render    *handlers.RenderHandler
	Viewport  *handlers.ViewportHandler
	Health    *handlers.HealthHandler
	WebSocket http.HandlerFunc
}

func New(
	tokens *middleware.ContextTokens,
	contextLimiter *middleware.RateLimiter,
	h Handlers,
	allowedOrigin string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(allowedOrigin))

	r.Get("/health", h.Health.Health)

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Page Contexts (public, rate limited) ────
		r.With(contextLimiter.Middleware).Post("/contexts", h.Contexts.Create)

		// ──── Markdown preview ────
		r.Post("/render", h.Render.Render)

		// ──── Viewport upload ────
		r.Group(func(r chi.Router) {
			r.Use(tokens.Middleware)
			r.Post("/viewport", h.Viewport.Upload)
		})

		// ──── WebSocket (token in query) ────
		r.Get("/ws", h.WebSocket)
	})

	return r
}
