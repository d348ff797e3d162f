package store

import (
	"context"
	"time"

	"github.com/halcyon-social/halcyon/appview/internal/model"
)

// Store exposes the batched read operations the hydration engine consumes.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
//
// Every lookup takes a list and returns a map keyed by the requested
// identifier. Missing entries are omitted from the map, never represented
// as nil placeholders, so callers can distinguish "not present" from
// "present but empty."
type Store interface {
	Posts() Posts
	Actors() Actors
	Aggregations() Aggregations
	Labels() Labels
	Graph() Graph
	Lists() Lists
	Feeds() Feeds
	Prefs() Prefs
}

type Posts interface {
	GetByURIs(ctx context.Context, uris []string) (map[string]*model.Post, error)
}

type Actors interface {
	GetByDIDs(ctx context.Context, dids []string) (map[string]*model.Actor, error)
	GetByHandle(ctx context.Context, handle string) (*model.Actor, error)
	Stats(ctx context.Context, dids []string) (map[string]*model.ActorStats, error)
}

type Aggregations interface {
	GetByURIs(ctx context.Context, uris []string) (map[string]*model.Aggregation, error)
}

type Labels interface {
	// ActiveForSubjects returns non-negated labels per subject. A negation
	// row retracts the matching (subject, src, val) label before return.
	ActiveForSubjects(ctx context.Context, subjects []string) (map[string][]model.Label, error)
}

type Graph interface {
	// Relationships summarizes (viewer, other) edges in one round trip.
	Relationships(ctx context.Context, viewer string, others []string) (map[string]*model.Relationship, error)
	// ViewerEdges returns the viewer's like/repost/bookmark/thread-mute
	// state for each post URI.
	ViewerEdges(ctx context.Context, viewer string, uris []string) (map[string]*model.ViewerEdges, error)
	// ListMutes and ListBlocks return the URIs of lists the viewer mutes
	// or blocks wholesale.
	ListMutes(ctx context.Context, viewer string) ([]string, error)
	ListBlocks(ctx context.Context, viewer string) ([]string, error)
	// ListMemberships maps each target DID to the subset of listURIs it
	// belongs to. Targets in none of the lists are omitted.
	ListMemberships(ctx context.Context, listURIs []string, targets []string) (map[string][]string, error)
	// KnownFollowers returns, per other, followers of other that the
	// viewer also follows.
	KnownFollowers(ctx context.Context, viewer string, others []string) (map[string]*model.KnownFollowers, error)
}

type Lists interface {
	GetByURIs(ctx context.Context, uris []string) (map[string]*model.List, error)
}

type Feeds interface {
	// Timeline returns the reverse-chronological slice of the viewer's
	// following feed older than before (zero time means "from the top").
	Timeline(ctx context.Context, viewer string, limit int, before time.Time) ([]model.FeedItem, error)
	// AuthorFeed returns an actor's own posts and reposts.
	AuthorFeed(ctx context.Context, did string, limit int, before time.Time) ([]model.FeedItem, error)
	// ThreadDescendants returns URIs of replies at or below root, oldest
	// first, bounded by limit.
	ThreadDescendants(ctx context.Context, rootURI string, limit int) ([]string, error)
}

type Prefs interface {
	Get(ctx context.Context, did string) (*model.Preferences, error)
	Put(ctx context.Context, prefs *model.Preferences) error
}
