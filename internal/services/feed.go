package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/halcyon-social/halcyon/appview/internal/feedgen"
	"github.com/halcyon-social/halcyon/appview/internal/hydration"
	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/store"
	"github.com/halcyon-social/halcyon/appview/internal/views"
)

const (
	// MaxPostBatch bounds one getPosts request.
	MaxPostBatch = 25
	// MaxPageSize bounds one feed page.
	MaxPageSize = 100
	// maxThreadAncestors caps the parent chain walked above a thread anchor.
	maxThreadAncestors = 80
	// maxThreadPosts caps the descendants pulled below a thread anchor.
	maxThreadPosts = 500
	// DefaultThreadDepth is the reply nesting served when unspecified.
	DefaultThreadDepth = 6
)

// Ranker reorders a feed page after its continuation cursor is taken, so
// ranking can never lose items between pages.
type Ranker interface {
	Rank(ctx context.Context, viewer string, items []model.FeedItem) []model.FeedItem
}

// ChronologicalRanker keeps storage order.
type ChronologicalRanker struct{}

func (ChronologicalRanker) Rank(_ context.Context, _ string, items []model.FeedItem) []model.FeedItem {
	return items
}

// FeedService orchestrates feed and post read use cases: slice, hydrate,
// rank, compose.
type FeedService struct {
	store    store.Store
	loader   *hydration.Loader
	composer *views.Composer
	feedgen  *feedgen.Client
	ranker   Ranker
	pageSize int
	log      zerolog.Logger
}

// NewFeedService constructs a FeedService. feedgen may be nil when custom
// feed proxying is disabled; ranker nil means chronological.
func NewFeedService(s store.Store, loader *hydration.Loader, composer *views.Composer, fg *feedgen.Client, ranker Ranker, pageSize int, log zerolog.Logger) *FeedService {
	if ranker == nil {
		ranker = ChronologicalRanker{}
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = 50
	}
	return &FeedService{store: s, loader: loader, composer: composer, feedgen: fg, ranker: ranker, pageSize: pageSize, log: log}
}

// ComposePostViews hydrates and renders the requested posts in input order.
// Unrenderable posts are absent from the result, not errors.
func (s *FeedService) ComposePostViews(ctx context.Context, uris []string, viewer string) ([]model.PostView, error) {
	if len(uris) == 0 {
		return nil, errors.Wrap(model.ErrValidation, "uris must not be empty")
	}
	if len(uris) > MaxPostBatch {
		return nil, errors.Wrapf(model.ErrValidation, "at most %d uris per request", MaxPostBatch)
	}
	state, err := s.loader.LoadPostState(ctx, uris, viewer, nil)
	if err != nil {
		return nil, err
	}
	return s.composer.PostViews(state, uris), nil
}

// GetTimeline serves a page of the viewer's following feed.
func (s *FeedService) GetTimeline(ctx context.Context, viewer string, limit int, cursor string) ([]model.FeedEntry, string, error) {
	if viewer == "" {
		return nil, "", errors.Wrap(model.ErrValidation, "timeline requires an authenticated viewer")
	}
	limit = s.clampLimit(limit)
	before, err := views.ParseCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	items, err := s.store.Feeds().Timeline(ctx, viewer, limit, before)
	if err != nil {
		return nil, "", err
	}
	return s.composePage(ctx, items, viewer, limit)
}

// GetAuthorFeed serves a page of an actor's posts and reposts. actorDID
// must already be resolved to a DID.
func (s *FeedService) GetAuthorFeed(ctx context.Context, actorDID, viewer string, limit int, cursor string) ([]model.FeedEntry, string, error) {
	if actorDID == "" {
		return nil, "", errors.Wrap(model.ErrValidation, "actor is required")
	}
	limit = s.clampLimit(limit)
	before, err := views.ParseCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	items, err := s.store.Feeds().AuthorFeed(ctx, actorDID, limit, before)
	if err != nil {
		return nil, "", err
	}
	return s.composePage(ctx, items, viewer, limit)
}

// ComposeFeed hydrates and renders a feed slice produced elsewhere (an
// ingestion-side ranker, a backfill job). requested is the page size the
// slice was cut to; it decides whether a continuation cursor is emitted.
func (s *FeedService) ComposeFeed(ctx context.Context, items []model.FeedItem, viewer string, requested int) ([]model.FeedEntry, string, error) {
	return s.composePage(ctx, items, viewer, s.clampLimit(requested))
}

// composePage takes the continuation cursor from the raw slice, then ranks,
// hydrates, and renders it.
func (s *FeedService) composePage(ctx context.Context, items []model.FeedItem, viewer string, limit int) ([]model.FeedEntry, string, error) {
	next := views.NextCursor(items, limit)
	items = s.ranker.Rank(ctx, viewer, items)

	state, err := s.loader.LoadFeedState(ctx, items, viewer)
	if err != nil {
		return nil, "", err
	}
	return s.composer.FeedEntries(state, items), next, nil
}

// GetFeed serves a page of a custom feed by proxying the generator for a
// skeleton and hydrating it locally. The generator's cursor passes through
// opaquely.
func (s *FeedService) GetFeed(ctx context.Context, feedURI, viewer string, limit int, cursor string) ([]model.FeedEntry, string, error) {
	if s.feedgen == nil {
		return nil, "", errors.Wrap(model.ErrUnavailable, "custom feeds are not configured")
	}
	if feedURI == "" {
		return nil, "", errors.Wrap(model.ErrValidation, "feed is required")
	}
	limit = s.clampLimit(limit)

	sk, err := s.feedgen.GetFeedSkeleton(ctx, feedURI, viewer, cursor, limit)
	if err != nil {
		return nil, "", err
	}

	uris := make([]string, 0, len(sk.Feed))
	for _, it := range sk.Feed {
		uris = append(uris, it.Post)
	}
	state, err := s.loader.LoadPostState(ctx, uris, viewer, nil)
	if err != nil {
		return nil, "", err
	}

	posts := s.composer.PostViews(state, uris)
	entries := make([]model.FeedEntry, 0, len(posts))
	for _, p := range posts {
		entries = append(entries, model.FeedEntry{Post: p})
	}
	return entries, sk.Cursor, nil
}

// GetPostThread returns the thread around uri: the parent chain toward the
// root and replies nested below, depth levels deep.
func (s *FeedService) GetPostThread(ctx context.Context, uri, viewer string, depth int) (*model.ThreadView, error) {
	if uri == "" {
		return nil, errors.Wrap(model.ErrValidation, "uri is required")
	}
	if depth < 0 {
		depth = DefaultThreadDepth
	}

	posts, err := s.store.Posts().GetByURIs(ctx, []string{uri})
	if err != nil {
		return nil, err
	}
	anchor, ok := posts[uri]
	if !ok {
		return nil, errors.Wrap(model.ErrNotFound, uri)
	}

	// Thread rows are keyed by root, so one query pulls the whole thread:
	// replies under a mid-thread anchor carry the root's uri, never the
	// anchor's, and the anchor's ancestors share the same root and ride
	// along in the same batch. Reply trees select the anchor's subtree.
	rootURI := anchor.ReplyRootURI
	if rootURI == "" {
		rootURI = uri
	}
	threadPosts, err := s.store.Feeds().ThreadDescendants(ctx, rootURI, maxThreadPosts)
	if err != nil {
		s.log.Warn().Str("uri", uri).Err(err).Msg("thread posts unavailable; serving anchor and ancestors only")
		threadPosts = s.ancestorWalk(ctx, anchor)
	}

	all := append([]string{uri, rootURI}, threadPosts...)
	state, err := s.loader.LoadPostState(ctx, all, viewer, nil)
	if err != nil {
		return nil, err
	}

	anchorView := s.composer.PostViews(state, []string{uri})
	if len(anchorView) == 0 {
		// The post row exists but its author cannot render.
		return nil, errors.Wrap(model.ErrNotFound, uri)
	}

	thread := &model.ThreadView{Post: anchorView[0]}
	thread.Parent = s.parentChain(state, anchor.ReplyParentURI, maxThreadAncestors)

	children := make(map[string][]string, len(threadPosts))
	for _, duri := range threadPosts {
		p, ok := state.Posts[duri]
		if !ok || duri == uri {
			continue
		}
		children[p.ReplyParentURI] = append(children[p.ReplyParentURI], duri)
	}
	thread.Replies = s.replyTrees(state, children, uri, depth)
	return thread, nil
}

// ancestorWalk recovers the parent chain one hop at a time when the thread
// query is unavailable, bounded by maxThreadAncestors. Errors truncate the
// chain; the anchor still renders.
func (s *FeedService) ancestorWalk(ctx context.Context, anchor *model.Post) []string {
	var chain []string
	next := anchor.ReplyParentURI
	for next != "" && len(chain) < maxThreadAncestors {
		chain = append(chain, next)
		batch, err := s.store.Posts().GetByURIs(ctx, []string{next})
		if err != nil {
			s.log.Warn().Str("uri", next).Err(err).Msg("ancestor walk truncated")
			break
		}
		p, ok := batch[next]
		if !ok {
			break
		}
		next = p.ReplyParentURI
	}
	return chain
}

// parentChain renders the ancestor chain as nested Parent links, at most
// hops levels up. A gap in the chain (deleted or unrenderable ancestor)
// truncates it silently.
func (s *FeedService) parentChain(state *hydration.State, parentURI string, hops int) *model.ThreadView {
	if parentURI == "" || hops <= 0 {
		return nil
	}
	post, ok := state.Posts[parentURI]
	if !ok {
		return nil
	}
	rendered := s.composer.PostViews(state, []string{parentURI})
	if len(rendered) == 0 {
		return nil
	}
	return &model.ThreadView{
		Post:   rendered[0],
		Parent: s.parentChain(state, post.ReplyParentURI, hops-1),
	}
}

func (s *FeedService) replyTrees(state *hydration.State, children map[string][]string, parentURI string, depth int) []*model.ThreadView {
	if depth <= 0 {
		return nil
	}
	var out []*model.ThreadView
	for _, uri := range children[parentURI] {
		rendered := s.composer.PostViews(state, []string{uri})
		if len(rendered) == 0 {
			continue
		}
		out = append(out, &model.ThreadView{
			Post:    rendered[0],
			Replies: s.replyTrees(state, children, uri, depth-1),
		})
	}
	return out
}

func (s *FeedService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.pageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
