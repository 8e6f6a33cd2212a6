package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fedimux/internal/httputil"
	"fedimux/internal/model"
	"fedimux/internal/service"
)

type RelationshipHandler struct {
	relationships *service.RelationshipService
}

func NewRelationshipHandler(relationships *service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{
		relationships: relationships,
	}
}

type toggleRequest struct {
	Target model.RemoteAccount `json:"target"`
}

// ToggleFollow flips the follow edge between a signed-in account and the
// target carried in the body.
func (h *RelationshipHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.relationships.ToggleFollow)
}

// ToggleShowReblogs flips whether the target's reblogs show up in timelines.
func (h *RelationshipHandler) ToggleShowReblogs(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.relationships.ToggleShowReblogs)
}

func (h *RelationshipHandler) toggle(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, domain, userID string, target model.RemoteAccount) (model.RelationshipEdge, error),
) {
	domain := chi.URLParam(r, "domain")
	userID := chi.URLParam(r, "userID")

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	edge, err := fn(r.Context(), domain, userID, req.Target)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidContext):
			httputil.WriteUnprocessable(w, err.Error())
		case errors.Is(err, model.ErrAccountNotFound):
			httputil.WriteNotFound(w, err.Error())
		default:
			log.Printf("[ERROR] Toggle handler: %v", err)
			httputil.WriteBadGateway(w, "Remote follow request failed")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, edge)
}

// Edge returns the cached relationship edge for rendering.
func (h *RelationshipHandler) Edge(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	userID := chi.URLParam(r, "userID")
	targetID := chi.URLParam(r, "targetID")

	edge, err := h.relationships.Edge(r.Context(), domain, userID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAccountNotFound):
			httputil.WriteNotFound(w, err.Error())
		default:
			log.Printf("[ERROR] Edge handler: %v", err)
			httputil.WriteInternalError(w, "Failed to read relationship")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, edge)
}
