package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/events"
	"github.com/sells-group/recipe-cli/internal/extract"
	"github.com/sells-group/recipe-cli/internal/fetcher"
	"github.com/sells-group/recipe-cli/internal/pipeline"
)

// Synchronous endpoint messages.
const (
	msgInvalidJSON   = "Invalid JSON body"
	msgNoSchemaData  = "No recipe found on this page. The site may not use Schema.org markup."
	msgExtractFailed = "Failed to extract recipe. Please try another URL."
)

// handleExtractStream runs the full pipeline and streams events. URL
// problems are answered synchronously with a JSON error.
func (s *Server) handleExtractStream(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if _, err := extract.ValidateURL(target); err != nil {
		writeError(w, http.StatusBadRequest, extract.MessageOf(err))
		return
	}
	id := s.identify(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), streamTimeout)
	defer cancel()

	events.PrepareHTTP(w)
	em := events.NewEmitter(events.NewStreamWriter(w))
	s.orch.Run(ctx, pipeline.Request{URL: target, Identity: id}, em)
}

type extractRequest struct {
	URL string `json:"url"`
}

// handleExtract runs the web pipeline without cache or quota and answers
// with the recipe.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if _, err := extract.ValidateURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, extract.MessageOf(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	defer cancel()

	recipe, err := s.web.Extract(ctx, req.URL, nil)
	if err != nil {
		status, msg := syncFailure(err)
		zap.L().Warn("server: sync extraction failed",
			zap.String("url", req.URL),
			zap.String("kind", string(extract.KindOf(err))),
			zap.Error(err),
		)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func syncFailure(err error) (int, string) {
	switch extract.KindOf(err) {
	case extract.KindFetchFailed:
		if code := fetcher.StatusCode(err); code != 0 {
			return http.StatusBadRequest, fmt.Sprintf("Failed to fetch recipe: %d %s", code, http.StatusText(code))
		}
		return http.StatusBadRequest, "Failed to fetch recipe: " + extract.MessageOf(err)
	case extract.KindNoRecipeFound:
		return http.StatusBadRequest, msgNoSchemaData
	case extract.KindIncompleteRecipe:
		return http.StatusBadRequest, extract.MsgIncomplete
	default:
		return http.StatusInternalServerError, msgExtractFailed
	}
}
