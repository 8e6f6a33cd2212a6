package handler

import (
	"log"
	"net/http"

	"fedimux/internal/cache"
	"fedimux/internal/httputil"
	"fedimux/internal/service"
)

type BadgeHandler struct {
	counters   cache.CounterStore
	aggregator *service.BadgeAggregator
}

func NewBadgeHandler(counters cache.CounterStore, aggregator *service.BadgeAggregator) *BadgeHandler {
	return &BadgeHandler{
		counters:   counters,
		aggregator: aggregator,
	}
}

// Get returns the last persisted aggregate badge value.
func (h *BadgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	total, err := h.counters.BadgeTotal(r.Context())
	if err != nil {
		log.Printf("[ERROR] Badge handler: %v", err)
		httputil.WriteInternalError(w, "Failed to read badge")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"badge": total,
	})
}

// Recompute forces a synchronous recompute and returns the fresh outputs.
func (h *BadgeHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	total, items, err := h.aggregator.Recompute(r.Context())
	if err != nil {
		log.Printf("[ERROR] Badge recompute handler: %v", err)
		httputil.WriteInternalError(w, "Failed to recompute badge")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"badge":     total,
		"shortcuts": items,
	})
}

// DismissNotifications marks the active account's notifications as seen:
// its counter is zeroed and the badge is recomputed.
func (h *BadgeHandler) DismissNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.aggregator.ClearForActiveAccount(r.Context()); err != nil {
		log.Printf("[ERROR] Dismiss notifications handler: %v", err)
		httputil.WriteInternalError(w, "Failed to dismiss notifications")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Notifications dismissed",
	})
}
