package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/store"
)

// memStore is an in-memory store.Store for service tests. Only the reads
// the services exercise are filled in; viewer graph data stays empty.
type memStore struct {
	mu sync.Mutex

	posts       map[string]*model.Post
	actors      map[string]*model.Actor
	stats       map[string]*model.ActorStats
	aggs        map[string]*model.Aggregation
	timeline    []model.FeedItem
	authorFeeds map[string][]model.FeedItem
	prefs       map[string]*model.Preferences

	threadErr error
}

func newMemStore() *memStore {
	return &memStore{
		posts:       map[string]*model.Post{},
		actors:      map[string]*model.Actor{},
		stats:       map[string]*model.ActorStats{},
		aggs:        map[string]*model.Aggregation{},
		authorFeeds: map[string][]model.FeedItem{},
		prefs:       map[string]*model.Preferences{},
	}
}

func (m *memStore) Posts() store.Posts               { return m }
func (m *memStore) Actors() store.Actors             { return m }
func (m *memStore) Aggregations() store.Aggregations { return (*memAggs)(m) }
func (m *memStore) Labels() store.Labels             { return m }
func (m *memStore) Graph() store.Graph               { return m }
func (m *memStore) Lists() store.Lists               { return (*memLists)(m) }
func (m *memStore) Feeds() store.Feeds               { return m }
func (m *memStore) Prefs() store.Prefs               { return m }

func (m *memStore) GetByURIs(ctx context.Context, uris []string) (map[string]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]*model.Post{}
	for _, uri := range uris {
		if p, ok := m.posts[uri]; ok {
			out[uri] = p
		}
	}
	return out, nil
}

func (m *memStore) GetByDIDs(ctx context.Context, dids []string) (map[string]*model.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]*model.Actor{}
	for _, did := range dids {
		if a, ok := m.actors[did]; ok {
			out[did] = a
		}
	}
	return out, nil
}

func (m *memStore) GetByHandle(ctx context.Context, handle string) (*model.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actors {
		if a.Handle == handle {
			return a, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m *memStore) Stats(ctx context.Context, dids []string) (map[string]*model.ActorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]*model.ActorStats{}
	for _, did := range dids {
		if s, ok := m.stats[did]; ok {
			out[did] = s
		}
	}
	return out, nil
}

type memAggs memStore

func (m *memAggs) GetByURIs(ctx context.Context, uris []string) (map[string]*model.Aggregation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]*model.Aggregation{}
	for _, uri := range uris {
		if a, ok := m.aggs[uri]; ok {
			out[uri] = a
		}
	}
	return out, nil
}

func (m *memStore) ActiveForSubjects(ctx context.Context, subjects []string) (map[string][]model.Label, error) {
	return map[string][]model.Label{}, nil
}

func (m *memStore) Relationships(ctx context.Context, viewer string, others []string) (map[string]*model.Relationship, error) {
	return map[string]*model.Relationship{}, nil
}

func (m *memStore) ViewerEdges(ctx context.Context, viewer string, uris []string) (map[string]*model.ViewerEdges, error) {
	return map[string]*model.ViewerEdges{}, nil
}

func (m *memStore) ListMutes(ctx context.Context, viewer string) ([]string, error)  { return nil, nil }
func (m *memStore) ListBlocks(ctx context.Context, viewer string) ([]string, error) { return nil, nil }

func (m *memStore) ListMemberships(ctx context.Context, listURIs []string, targets []string) (map[string][]string, error) {
	return map[string][]string{}, nil
}

func (m *memStore) KnownFollowers(ctx context.Context, viewer string, others []string) (map[string]*model.KnownFollowers, error) {
	return map[string]*model.KnownFollowers{}, nil
}

type memLists memStore

func (m *memLists) GetByURIs(ctx context.Context, uris []string) (map[string]*model.List, error) {
	return map[string]*model.List{}, nil
}

func (m *memStore) Timeline(ctx context.Context, viewer string, limit int, before time.Time) ([]model.FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slicePage(m.timeline, limit, before), nil
}

func (m *memStore) AuthorFeed(ctx context.Context, did string, limit int, before time.Time) ([]model.FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slicePage(m.authorFeeds[did], limit, before), nil
}

func slicePage(items []model.FeedItem, limit int, before time.Time) []model.FeedItem {
	out := make([]model.FeedItem, 0, limit)
	for _, it := range items {
		if !before.IsZero() && !it.SortAt.Before(before) {
			continue
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}

// ThreadDescendants matches by thread root, like the real drivers do.
func (m *memStore) ThreadDescendants(ctx context.Context, rootURI string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.threadErr != nil {
		return nil, m.threadErr
	}
	var replies []*model.Post
	for _, p := range m.posts {
		if p.ReplyRootURI == rootURI {
			replies = append(replies, p)
		}
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].CreatedAt.Before(replies[j].CreatedAt) })
	out := make([]string, 0, len(replies))
	for _, p := range replies {
		if len(out) == limit {
			break
		}
		out = append(out, p.URI)
	}
	return out, nil
}

func (m *memStore) Get(ctx context.Context, did string) (*model.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prefs[did]; ok {
		return p, nil
	}
	return &model.Preferences{DID: did}, nil
}

func (m *memStore) Put(ctx context.Context, p *model.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[p.DID] = p
	return nil
}

func (m *memStore) addActor(did, handle string) *model.Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &model.Actor{DID: did, Handle: handle, CreatedAt: baseTime, IndexedAt: baseTime}
	m.actors[did] = a
	return a
}

func (m *memStore) addPost(uri, author string, at time.Time) *model.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &model.Post{URI: uri, CID: "bafy" + uri[len(uri)-2:], AuthorDID: author, Text: "post " + uri, CreatedAt: at, IndexedAt: at}
	m.posts[uri] = p
	return p
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
