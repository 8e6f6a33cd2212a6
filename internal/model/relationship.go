package model

import "time"

// RelationshipEdge is the cached relationship state between a signed-in
// account and one target account. Invariant: IsFollowing and IsPending are
// never both true.
type RelationshipEdge struct {
	SourceUserID string    `json:"source_user_id"`
	TargetUserID string    `json:"target_user_id"`
	IsFollowing  bool      `json:"is_following"`
	IsPending    bool      `json:"is_pending"`
	ShowsReblogs bool      `json:"shows_reblogs"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MutationSnapshot captures an edge's pre-mutation flags so a failed remote
// call can roll the edge back. Lives for exactly one toggle invocation.
type MutationSnapshot struct {
	IsFollowing   bool
	IsPending     bool
	ShowsReblogs  bool
	NeedsUnfollow bool
}

// Snapshot captures the rollback state of an edge.
func (e RelationshipEdge) Snapshot() MutationSnapshot {
	return MutationSnapshot{
		IsFollowing:   e.IsFollowing,
		IsPending:     e.IsPending,
		ShowsReblogs:  e.ShowsReblogs,
		NeedsUnfollow: e.IsFollowing || e.IsPending,
	}
}
