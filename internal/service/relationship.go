package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fedimux/internal/mastodon"
	"fedimux/internal/model"
	"fedimux/internal/repository"
	"fedimux/internal/store"
)

// RelationshipClient is the remote follow/unfollow call. The real
// implementation is the mastodon client; tests swap in a mock.
type RelationshipClient interface {
	Follow(ctx context.Context, domain, accountID string, query mastodon.FollowQuery, accessToken string) (*mastodon.Relationship, time.Time, error)
}

// RelationshipService coordinates optimistic relationship mutations: it
// flips the cached edge before the network call, then commits the server's
// authoritative state or rolls back to the pre-mutation snapshot.
type RelationshipService struct {
	accounts repository.AccountRepository
	edges    *store.RelationshipStore
	client   RelationshipClient

	// One lock per touched edge. Two concurrent toggles on the same edge
	// would otherwise race their snapshot/rollback sequences; toggles on
	// different edges stay independent.
	mu        sync.Mutex
	edgeLocks map[store.EdgeKey]*sync.Mutex
}

func NewRelationshipService(
	accounts repository.AccountRepository,
	edges *store.RelationshipStore,
	client RelationshipClient,
) *RelationshipService {
	return &RelationshipService{
		accounts:  accounts,
		edges:     edges,
		client:    client,
		edgeLocks: make(map[store.EdgeKey]*sync.Mutex),
	}
}

// lockEdge serializes mutations on one edge for the whole toggle invocation.
// The store's own lock is never held across the network call; this one is.
func (s *RelationshipService) lockEdge(key store.EdgeKey) func() {
	s.mu.Lock()
	lock, ok := s.edgeLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.edgeLocks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// ToggleFollow flips the follow state between a signed-in account and a
// target: following or pending goes to unfollowed, unfollowed goes to
// following (or pending when the target is locked). The edge is readable in
// its optimistic state for the whole duration of the single remote call.
func (s *RelationshipService) ToggleFollow(ctx context.Context, domain, userID string, target model.RemoteAccount) (model.RelationshipEdge, error) {
	acct, err := s.resolve(ctx, domain, userID, target)
	if err != nil {
		return model.RelationshipEdge{}, err
	}

	key := store.EdgeKey{SourceUserID: acct.UserID, TargetUserID: target.ID}
	unlock := s.lockEdge(key)
	defer unlock()

	// Snapshot and optimistic write in one atomic step.
	var prev model.RelationshipEdge
	var snap model.MutationSnapshot
	s.edges.Update(acct.UserID, target.ID, func(edge model.RelationshipEdge) model.RelationshipEdge {
		prev = edge
		snap = edge.Snapshot()
		if snap.NeedsUnfollow {
			edge.IsFollowing = false
			edge.IsPending = false
		} else if target.Locked {
			edge.IsFollowing = false
			edge.IsPending = true
		} else {
			edge.IsFollowing = true
			edge.IsPending = false
		}
		return edge
	})

	query := mastodon.FollowQuery{Unfollow: snap.NeedsUnfollow}
	relationship, networkDate, err := s.client.Follow(ctx, acct.Domain, target.ID, query, acct.AccessToken)
	if err != nil {
		s.edges.Write(acct.UserID, target.ID, prev)
		log.Printf("[RelationshipService] ToggleFollow rolled back: source=%s target=%s err=%v",
			acct.UserID, target.ID, err)
		return model.RelationshipEdge{}, fmt.Errorf("follow request: %w", err)
	}

	return s.commit(acct.UserID, target.ID, relationship, networkDate), nil
}

// ToggleShowReblogs flips whether the target's reblogs appear in the
// account's timelines. Independent of the follow flags: the remote call is a
// follow request carrying the new reblogs preference, and only the reblogs
// flag is rolled back on failure.
func (s *RelationshipService) ToggleShowReblogs(ctx context.Context, domain, userID string, target model.RemoteAccount) (model.RelationshipEdge, error) {
	acct, err := s.resolve(ctx, domain, userID, target)
	if err != nil {
		return model.RelationshipEdge{}, err
	}

	key := store.EdgeKey{SourceUserID: acct.UserID, TargetUserID: target.ID}
	unlock := s.lockEdge(key)
	defer unlock()

	var oldShowReblogs bool
	s.edges.Update(acct.UserID, target.ID, func(edge model.RelationshipEdge) model.RelationshipEdge {
		oldShowReblogs = edge.ShowsReblogs
		edge.ShowsReblogs = !oldShowReblogs
		return edge
	})
	newShowReblogs := !oldShowReblogs

	query := mastodon.FollowQuery{Reblogs: &newShowReblogs}
	relationship, networkDate, err := s.client.Follow(ctx, acct.Domain, target.ID, query, acct.AccessToken)
	if err != nil {
		s.edges.Update(acct.UserID, target.ID, func(edge model.RelationshipEdge) model.RelationshipEdge {
			edge.ShowsReblogs = oldShowReblogs
			return edge
		})
		log.Printf("[RelationshipService] ToggleShowReblogs rolled back: source=%s target=%s err=%v",
			acct.UserID, target.ID, err)
		return model.RelationshipEdge{}, fmt.Errorf("follow request: %w", err)
	}

	return s.commit(acct.UserID, target.ID, relationship, networkDate), nil
}

// Edge returns the current cached edge for rendering.
func (s *RelationshipService) Edge(ctx context.Context, domain, userID, targetID string) (model.RelationshipEdge, error) {
	acct, err := s.accounts.GetByDomainUserID(ctx, domain, userID)
	if err != nil {
		return model.RelationshipEdge{}, err
	}
	edge, _ := s.edges.Read(acct.UserID, targetID)
	return edge, nil
}

// resolve looks up the mutation's local context. Failing here means no
// optimistic write has happened and no network call will be made.
func (s *RelationshipService) resolve(ctx context.Context, domain, userID string, target model.RemoteAccount) (*model.Account, error) {
	if target.ID == "" {
		return nil, fmt.Errorf("%w: missing target account", model.ErrInvalidContext)
	}
	acct, err := s.accounts.GetByDomainUserID(ctx, domain, userID)
	if errors.Is(err, model.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s@%s is not signed in", model.ErrInvalidContext, userID, domain)
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// commit overwrites the optimistic edge with the server's authoritative
// relationship, stamped with the server response time.
func (s *RelationshipService) commit(sourceUserID, targetID string, relationship *mastodon.Relationship, networkDate time.Time) model.RelationshipEdge {
	edge := model.RelationshipEdge{
		SourceUserID: sourceUserID,
		TargetUserID: targetID,
		IsFollowing:  relationship.Following,
		IsPending:    relationship.Requested,
		ShowsReblogs: relationship.ShowingReblogs,
		UpdatedAt:    networkDate,
	}
	s.edges.Write(sourceUserID, targetID, edge)
	return edge
}
