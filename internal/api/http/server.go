package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	appMaintenance "github.com/gameshelf/gameshelf/internal/application/maintenance"
	appTracking "github.com/gameshelf/gameshelf/internal/application/tracking"
	domainUser "github.com/gameshelf/gameshelf/internal/domain/user"
	"github.com/gameshelf/gameshelf/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	trackingSvc    *appTracking.Service
	maintenanceSvc *appMaintenance.Service
	userRepo       domainUser.Repository
	hub            *sse.Hub
}

func NewServer(
	trackingSvc *appTracking.Service,
	maintenanceSvc *appMaintenance.Service,
	userRepo domainUser.Repository,
	hub *sse.Hub,
) *Server {
	return &Server{
		trackingSvc:    trackingSvc,
		maintenanceSvc: maintenanceSvc,
		userRepo:       userRepo,
		hub:            hub,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.resolveIdentity)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/me", s.me)

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/activity", s.recentActivity)
			r.Get("/wishlist", s.listWishlist)
			r.Get("/collection", s.listCollection)
			r.Get("/progress", s.listProgress)

			r.Route("/games/{gameKey}", func(r chi.Router) {
				r.Post("/wishlist", s.addToWishlist)
				r.Post("/collection", s.addToCollection)
				r.Post("/progress/start", s.markStarted)
				r.Post("/progress/complete", s.markCompleted)
				r.Delete("/", s.removeGame)
				r.Get("/state", s.gameState)
				r.Get("/history", s.timeline)
			})
		})

		r.Route("/maintenance", func(r chi.Router) {
			r.Get("/audit", s.audit)
			r.Get("/enforcement", s.enforcement)
			r.Get("/conflict-log", s.conflictLog)
			r.Post("/snapshot", s.snapshot)
			r.Post("/resolve", s.resolve)
			r.Post("/pipeline", s.runPipeline)
			r.Post("/rollback/soft", s.softRollback)
			r.Post("/rollback/hard", s.hardRollback)
			r.Post("/reinstate", s.reinstate)
		})

		r.Get("/activity/stream", s.activityStream)
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}

func parseGameKeyParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "gameKey"), 10, 64)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
