package store

import (
	"sync"
	"time"

	"fedimux/internal/model"
)

// EdgeKey identifies one relationship edge between a signed-in account and
// a target account.
type EdgeKey struct {
	SourceUserID string
	TargetUserID string
}

// RelationshipStore is the in-memory cache of relationship edges. Reads and
// writes of a single edge are atomic: a reader sees either the value before
// or after a write, never a half-applied edge. Edges are independent, so no
// cross-edge locking exists.
type RelationshipStore struct {
	mu    sync.RWMutex
	edges map[EdgeKey]model.RelationshipEdge
}

func NewRelationshipStore() *RelationshipStore {
	return &RelationshipStore{
		edges: make(map[EdgeKey]model.RelationshipEdge),
	}
}

// Read returns the cached edge for (source, target). A missing edge reads as
// the zero edge with found=false; callers treat that as "no relationship".
func (s *RelationshipStore) Read(sourceUserID, targetUserID string) (model.RelationshipEdge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edges[EdgeKey{SourceUserID: sourceUserID, TargetUserID: targetUserID}]
	if !ok {
		return model.RelationshipEdge{
			SourceUserID: sourceUserID,
			TargetUserID: targetUserID,
		}, false
	}
	return edge, true
}

// Write replaces the edge for (source, target) in one atomic step.
func (s *RelationshipStore) Write(sourceUserID, targetUserID string, edge model.RelationshipEdge) {
	edge.SourceUserID = sourceUserID
	edge.TargetUserID = targetUserID
	if edge.UpdatedAt.IsZero() {
		edge.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[EdgeKey{SourceUserID: sourceUserID, TargetUserID: targetUserID}] = edge
}

// Update applies fn to the current edge and stores the result atomically.
// fn must be pure; it runs with the store lock held.
func (s *RelationshipStore) Update(sourceUserID, targetUserID string, fn func(model.RelationshipEdge) model.RelationshipEdge) model.RelationshipEdge {
	key := EdgeKey{SourceUserID: sourceUserID, TargetUserID: targetUserID}

	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[key]
	if !ok {
		edge = model.RelationshipEdge{
			SourceUserID: sourceUserID,
			TargetUserID: targetUserID,
		}
	}

	edge = fn(edge)
	edge.SourceUserID = sourceUserID
	edge.TargetUserID = targetUserID
	edge.UpdatedAt = time.Now()
	s.edges[key] = edge
	return edge
}

// Delete drops every edge owned by the given source account. Called when the
// account signs out.
func (s *RelationshipStore) Delete(sourceUserID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.edges {
		if key.SourceUserID == sourceUserID {
			delete(s.edges, key)
		}
	}
}
