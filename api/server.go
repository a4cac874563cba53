/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/entries/*         Timer and manual entry operations
  /api/reconciliation/*  Monthly reconciliation
  /api/rules/*           Calculation rules
  /api/leave-settings/*  Auto-add leave settings
  /api/members           Workspace members
  /api/leaves            Approved leave ingestion
  /api/users/*           Per-user ledger

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Post("/", h.AddManualEntry)
			r.Post("/start", h.StartEntry)
			r.Post("/stop", h.StopEntry)
			r.Get("/current", h.CurrentEntry)
			r.Get("/day", h.DayEntries)
			r.Post("/{id}/resume", h.ResumeEntry)
			r.Put("/{id}", h.EditEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		// Reconciliation routes
		r.Route("/reconciliation", func(r chi.Router) {
			r.Get("/", h.GetReconciliation)
			r.Post("/generate", h.GenerateReconciliation)
			r.Post("/override", h.OverrideReconciliation)
			r.Post("/confirm", h.ConfirmReconciliation)
		})

		// Calculation rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.SaveRule)
			r.Post("/{id}/activate", h.ActivateRule)
		})

		// Leave setting routes
		r.Route("/leave-settings", func(r chi.Router) {
			r.Get("/", h.ListSettings)
			r.Post("/", h.CreateSetting)
			r.Post("/execute", h.ExecuteSettings)
			r.Get("/{id}", h.GetSetting)
			r.Put("/{id}", h.UpdateSetting)
			r.Delete("/{id}", h.DeleteSetting)
			r.Post("/{id}/enable", h.EnableSetting)
			r.Post("/{id}/disable", h.DisableSetting)
		})

		// Supporting data routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.SaveMember)
		})
		r.Post("/leaves", h.SaveLeave)
		r.Get("/users/{id}/ledger", h.UserLedger)
	})

	return r
}
