package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/clothai/clothai/internal/api/middleware"
	"github.com/clothai/clothai/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler      http.HandlerFunc
	ChangeClothHandler http.HandlerFunc
	StatusHandler      http.HandlerFunc
	ExecutionsHandler  http.HandlerFunc
	GetTryCountHandler http.HandlerFunc
	SetTryCountHandler http.HandlerFunc
	ListDevicesHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Logger runs outermost: it stamps the correlation id the rest of the
	// chain logs under, and its access line records the final status even
	// when Recovery rewrote it.
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/change-cloth", orNotImplemented(deps.ChangeClothHandler))
		r.Get("/status/{execution_id}", orNotImplemented(deps.StatusHandler))
		r.Get("/executions", orNotImplemented(deps.ExecutionsHandler))

		r.Get("/try-count/{device_id}", orNotImplemented(deps.GetTryCountHandler))
		r.Post("/try-count", orNotImplemented(deps.SetTryCountHandler))
		r.Get("/devices", orNotImplemented(deps.ListDevicesHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
