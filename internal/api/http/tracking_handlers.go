package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/gameshelf/gameshelf/internal/domain/catalog"
	"github.com/gameshelf/gameshelf/internal/domain/tracking"
)

type writeResult func(r *http.Request, userID uuid.UUID, gameKey int64, opts tracking.WriteOptions) (*tracking.Applied, error)

func (s *Server) addToWishlist(w http.ResponseWriter, r *http.Request) {
	s.guardedWrite(w, r, func(r *http.Request, userID uuid.UUID, gameKey int64, opts tracking.WriteOptions) (*tracking.Applied, error) {
		return s.trackingSvc.AddToWishlist(r.Context(), userID, gameKey, opts)
	})
}

func (s *Server) addToCollection(w http.ResponseWriter, r *http.Request) {
	s.guardedWrite(w, r, func(r *http.Request, userID uuid.UUID, gameKey int64, opts tracking.WriteOptions) (*tracking.Applied, error) {
		return s.trackingSvc.AddToCollection(r.Context(), userID, gameKey, opts)
	})
}

func (s *Server) markStarted(w http.ResponseWriter, r *http.Request) {
	s.guardedWrite(w, r, func(r *http.Request, userID uuid.UUID, gameKey int64, opts tracking.WriteOptions) (*tracking.Applied, error) {
		return s.trackingSvc.MarkStarted(r.Context(), userID, gameKey, opts)
	})
}

func (s *Server) markCompleted(w http.ResponseWriter, r *http.Request) {
	s.guardedWrite(w, r, func(r *http.Request, userID uuid.UUID, gameKey int64, opts tracking.WriteOptions) (*tracking.Applied, error) {
		return s.trackingSvc.MarkCompleted(r.Context(), userID, gameKey, opts)
	})
}

func (s *Server) guardedWrite(w http.ResponseWriter, r *http.Request, write writeResult) {
	userID, err := parseUUIDParam(r, "userId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid userId")
		return
	}
	gameKey, err := parseGameKeyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid gameKey")
		return
	}
	opts := tracking.WriteOptions{Bypass: r.URL.Query().Get("bypass") == "true"}

	applied, err := write(r, userID, gameKey, opts)
	if err != nil {
		var conflict *tracking.StateConflictError
		switch {
		case errors.As(err, &conflict):
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"error":    "STATE_CONFLICT",
				"message":  conflict.Error(),
				"blocking": conflict.Blocking.String(),
			})
		case errors.Is(err, catalog.ErrNotFound):
			respondError(w, http.StatusNotFound, "GAME_NOT_FOUND", "unknown game key")
		default:
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, applied)
}

func (s *Server) removeGame(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUUIDParam(r, "userId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid userId")
		return
	}
	gameKey, err := parseGameKeyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid gameKey")
		return
	}
	var kind *tracking.StateKind
	if v := r.URL.Query().Get("set"); v != "" {
		k, err := tracking.ParseStateKind(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
			return
		}
		kind = &k
	}

	removed, err := s.trackingSvc.Remove(r.Context(), userID, gameKey, kind)
	if err != nil {
		if errors.Is(err, tracking.ErrNotTracked) {
			respondError(w, http.StatusNotFound, "NOT_TRACKED", "game is not tracked")
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	names := make([]string, 0, len(removed))
	for _, k := range removed {
		names = append(names, k.String())
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"removed": names})
}

func (s *Server) gameState(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUUIDParam(r, "userId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid userId")
		return
	}
	gameKey, err := parseGameKeyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid gameKey")
		return
	}
	state, err := s.trackingSvc.State(r.Context(), userID, gameKey)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) timeline(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUUIDParam(r, "userId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid userId")
		return
	}
	gameKey, err := parseGameKeyParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid gameKey")
		return
	}
	entries, err := s.trackingSvc.Timeline(r.Context(), userID, gameKey)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"timeline": entries})
}

func (s *Server) recentActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUUIDParam(r, "userId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid userId")
		return
	}
	limit, offset := parseLimitOffset(r, 50, 200)
	entries, err := s.trackingSvc.RecentActivity(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"activity": entries})
}

func (s *Server) listWishlist(w http.ResponseWriter, r *http.Request) {
	s.listSet(w, r, tracking.KindWishlist)
}

func (s *Server) listCollection(w http.ResponseWriter, r *http.Request) {
	s.listSet(w, r, tracking.KindCollection)
}

func (s *Server) listProgress(w http.ResponseWriter, r *http.Request) {
	s.listSet(w, r, tracking.KindProgress)
}

func (s *Server) listSet(w http.ResponseWriter, r *http.Request, kind tracking.StateKind) {
	userID, err := parseUUIDParam(r, "userId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid userId")
		return
	}
	limit, offset := parseLimitOffset(r, 100, 500)
	records, err := s.trackingSvc.List(r.Context(), userID, kind, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}
