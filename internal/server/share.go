package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/model"
	"github.com/sells-group/recipe-cli/internal/store"
)

const shareTTL = 365 * 24 * time.Hour

type shareRequest struct {
	Recipe    *model.Recipe `json:"recipe"`
	SourceURL string        `json:"sourceUrl"`
}

type shareResponse struct {
	Recipe    model.Recipe `json:"recipe"`
	SourceURL string       `json:"sourceUrl"`
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if req.Recipe == nil {
		writeError(w, http.StatusBadRequest, "Recipe data is required")
		return
	}
	if strings.TrimSpace(req.Recipe.Title) == "" || !req.Recipe.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid recipe data")
		return
	}

	now := s.now().UTC()
	share := store.Share{
		ID:        shareID(),
		Recipe:    *req.Recipe,
		SourceURL: req.SourceURL,
		CreatedAt: now,
		ExpiresAt: now.Add(shareTTL),
	}
	if err := s.store.PutShare(r.Context(), share); err != nil {
		zap.L().Error("server: store share", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to share recipe")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": share.ID})
}

func (s *Server) handleGetShare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "ID is required")
		return
	}

	share, err := s.store.GetShare(r.Context(), id, s.now().UTC())
	if err != nil {
		zap.L().Error("server: load share", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve recipe")
		return
	}
	if share == nil {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:   "Recipe not found",
			Message: "This shared recipe link is invalid or the recipe no longer exists.",
		})
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{Recipe: share.Recipe, SourceURL: share.SourceURL})
}

// shareID is a short URL-safe id.
func shareID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
