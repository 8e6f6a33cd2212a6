package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fedimux/internal/cache"
	"fedimux/internal/httputil"
	"fedimux/internal/model"
	"fedimux/internal/repository"
	"fedimux/internal/service"
	"fedimux/internal/store"
)

// AccountPublisher publishes account-set change events.
type AccountPublisher interface {
	PublishAccountsChanged(ctx context.Context) (string, error)
}

type AccountHandler struct {
	accounts      repository.AccountRepository
	edges         *store.RelationshipStore
	registry      *service.NotificationRegistry
	subscriptions *service.SubscriptionService
	counters      cache.CounterStore
	publisher     AccountPublisher
}

func NewAccountHandler(
	accounts repository.AccountRepository,
	edges *store.RelationshipStore,
	registry *service.NotificationRegistry,
	subscriptions *service.SubscriptionService,
	counters cache.CounterStore,
	publisher AccountPublisher,
) *AccountHandler {
	return &AccountHandler{
		accounts:      accounts,
		edges:         edges,
		registry:      registry,
		subscriptions: subscriptions,
		counters:      counters,
		publisher:     publisher,
	}
}

type signInRequest struct {
	Domain      string `json:"domain"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	AppToken    string `json:"app_token"`
}

// SignIn registers an account whose tokens were already issued by the
// sign-in flow, then signals the badge aggregator via the account stream.
func (h *AccountHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Domain == "" || req.UserID == "" || req.AccessToken == "" {
		httputil.WriteBadRequest(w, "domain, user_id and access_token are required")
		return
	}

	account := &model.Account{
		Domain:      req.Domain,
		UserID:      req.UserID,
		Username:    req.Username,
		AccessToken: req.AccessToken,
		AppToken:    req.AppToken,
	}
	if err := h.accounts.Create(r.Context(), account); err != nil {
		switch {
		case errors.Is(err, model.ErrAccountExists):
			httputil.WriteConflict(w, err.Error())
		default:
			log.Printf("[ERROR] SignIn handler: %v", err)
			httputil.WriteInternalError(w, "Failed to sign in account")
		}
		return
	}

	if _, err := h.publisher.PublishAccountsChanged(r.Context()); err != nil {
		log.Printf("[ERROR] SignIn handler: publish accounts changed: %v", err)
	}

	httputil.WriteJSON(w, http.StatusCreated, account)
}

// SignOut removes an account and clears every piece of local state keyed by
// it: the cached relationship edges, the notification registry entry, the
// unread counter, and (best effort) the orphaned push subscription.
func (h *AccountHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	userID := chi.URLParam(r, "userID")

	account, err := h.accounts.Delete(r.Context(), domain, userID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAccountNotFound):
			httputil.WriteNotFound(w, err.Error())
		default:
			log.Printf("[ERROR] SignOut handler: %v", err)
			httputil.WriteInternalError(w, "Failed to sign out account")
		}
		return
	}

	h.edges.Delete(account.UserID)
	h.registry.Remove(account.Domain, account.UserID)

	if err := h.counters.Delete(r.Context(), account.AccessToken); err != nil {
		log.Printf("[ERROR] SignOut handler: delete counter: %v", err)
	}

	// Leftover subscriptions are also retried when a push for this token
	// arrives later, so a failure here is not fatal.
	if err := h.subscriptions.CancelIfDetached(r.Context(), account.AccessToken); err != nil {
		log.Printf("[ERROR] SignOut handler: cancel subscription: %v", err)
	}

	if _, err := h.publisher.PublishAccountsChanged(r.Context()); err != nil {
		log.Printf("[ERROR] SignOut handler: publish accounts changed: %v", err)
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Account signed out",
	})
}

// List returns the signed-in accounts in sign-in order. The first entry is
// the active account.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		log.Printf("[ERROR] List accounts handler: %v", err)
		httputil.WriteInternalError(w, "Failed to list accounts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
	})
}
