package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/gameshelf/gameshelf/internal/domain/resolution"
)

func (s *Server) audit(w http.ResponseWriter, r *http.Request) {
	report, err := s.maintenanceSvc.Audit(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.maintenanceSvc.Snapshot(r.Context())
	if err != nil {
		if errors.Is(err, resolution.ErrBackupFailed) {
			respondError(w, http.StatusInternalServerError, "BACKUP_FAILED", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type resolveRequest struct {
	SnapshotID string `json:"snapshot_id"`
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	snapshotID, err := uuid.Parse(req.SnapshotID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid snapshot_id")
		return
	}
	result, err := s.maintenanceSvc.Resolve(r.Context(), snapshotID)
	if err != nil {
		switch {
		case errors.Is(err, resolution.ErrSnapshotNotFound):
			respondError(w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", err.Error())
		case errors.Is(err, resolution.ErrSnapshotNotVerified):
			respondError(w, http.StatusConflict, "SNAPSHOT_NOT_VERIFIED", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request) {
	report, err := s.maintenanceSvc.RunPipeline(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "PIPELINE_FAILED",
			"message": err.Error(),
			"report":  report,
		})
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) softRollback(w http.ResponseWriter, r *http.Request) {
	changed, err := s.maintenanceSvc.SoftRollback(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"enforcementDisabled": true, "changed": changed})
}

func (s *Server) reinstate(w http.ResponseWriter, r *http.Request) {
	changed, err := s.maintenanceSvc.Reinstate(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"enforcementEnabled": true, "changed": changed})
}

type hardRollbackRequest struct {
	SnapshotID string `json:"snapshot_id"`
	Confirm    bool   `json:"confirm"`
}

func (s *Server) hardRollback(w http.ResponseWriter, r *http.Request) {
	var req hardRollbackRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if !req.Confirm {
		respondError(w, http.StatusBadRequest, "CONFIRM_REQUIRED",
			"hard rollback destroys writes made after the snapshot; set confirm=true")
		return
	}
	snapshotID, err := uuid.Parse(req.SnapshotID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid snapshot_id")
		return
	}
	snap, err := s.maintenanceSvc.HardRollback(r.Context(), snapshotID)
	if err != nil {
		if errors.Is(err, resolution.ErrSnapshotNotFound) {
			respondError(w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) enforcement(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.maintenanceSvc.Enforcement(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"enforcementEnabled": enabled})
}

func (s *Server) conflictLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 100, 500)
	entries, err := s.maintenanceSvc.ConflictLog(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
