package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"fedimux/internal/model"
	"fedimux/internal/queue"
)

// EnvelopeRouter routes one inbound push envelope through the notification
// pipeline. Satisfied by service.PushRouter.
type EnvelopeRouter interface {
	Handle(ctx context.Context, envelope model.PushEnvelope) error
}

// BadgeNotifier receives account-set change signals.
// Satisfied by service.BadgeAggregator.
type BadgeNotifier interface {
	AccountsChanged()
}

// Handler processes push events from the queue.
type Handler struct {
	router EnvelopeRouter
	badge  BadgeNotifier
}

// NewHandler creates a new event handler.
func NewHandler(router EnvelopeRouter, badge BadgeNotifier) *Handler {
	return &Handler{
		router: router,
		badge:  badge,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.PushEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventPushReceived:
		err = h.handlePushReceived(ctx, event)
	case queue.EventAccountsChanged:
		h.badge.AccountsChanged()
	default:
		log.Printf("[Handler] Unknown event type: %s", event.Type)
		return nil
	}

	if err != nil {
		log.Printf("[Handler] HandleEvent FAILED: type=%s id=%s duration=%v err=%v",
			event.Type, event.ID, time.Since(startTime), err)
		return err
	}

	log.Printf("[Handler] HandleEvent OK: type=%s id=%s duration=%v",
		event.Type, event.ID, time.Since(startTime))
	return nil
}

func (h *Handler) handlePushReceived(ctx context.Context, event queue.PushEvent) error {
	if event.Envelope == nil {
		return fmt.Errorf("push event %s has no envelope", event.ID)
	}
	return h.router.Handle(ctx, *event.Envelope)
}
