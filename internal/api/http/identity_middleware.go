package httpapi

import (
	"context"
	"errors"
	"net/http"

	domainUser "github.com/gameshelf/gameshelf/internal/domain/user"
)

type contextKey string

const identityKey contextKey = "identity"

// resolveIdentity maps the external auth identity (X-Auth-ID, issued by the
// auth subsystem) to a directory user and stashes it in the request context.
// Requests without the header pass through; identity is informational here,
// authorization belongs to the surrounding application.
func (s *Server) resolveIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authID := r.Header.Get("X-Auth-ID")
		if authID == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := s.userRepo.GetByAuthID(r.Context(), authID)
		if err != nil {
			if errors.Is(err, domainUser.ErrNotFound) {
				respondError(w, http.StatusUnauthorized, "UNKNOWN_IDENTITY", "auth identity is not registered")
				return
			}
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) *domainUser.User {
	u, _ := ctx.Value(identityKey).(*domainUser.User)
	return u
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u := identityFromContext(r.Context())
	if u == nil {
		respondError(w, http.StatusUnauthorized, "UNKNOWN_IDENTITY", "missing X-Auth-ID")
		return
	}
	respondJSON(w, http.StatusOK, u)
}
