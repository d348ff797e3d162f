// Package hydration fetches everything a view depends on. The Loader turns
// a set of entity identifiers into a State via deduplicated, parallel batch
// reads; the overlay methods on State expose viewer-relative slices of it.
package hydration

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/store"
)

// Metrics instruments loader fan-outs.
type Metrics struct {
	BatchSize    prometheus.Histogram
	Degradations prometheus.Counter
}

// NewMetrics registers loader instruments on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "appview_hydration_batch_size",
			Help:    "Entities requested per hydration batch.",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
		Degradations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appview_hydration_degradations_total",
			Help: "Enrichment datasets served empty after a fetch failure.",
		}),
	}
	if err := reg.Register(m.BatchSize); err != nil {
		return nil, err
	}
	if err := reg.Register(m.Degradations); err != nil {
		return nil, err
	}
	return m, nil
}

// Loader issues the batched reads behind view composition.
type Loader struct {
	store   store.Store
	log     zerolog.Logger
	timeout time.Duration
	metrics *Metrics
}

// NewLoader constructs a Loader. timeout bounds the enrichment fan-out;
// datasets past the deadline are served empty. metrics may be nil.
func NewLoader(s store.Store, log zerolog.Logger, timeout time.Duration, metrics *Metrics) *Loader {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Loader{store: s, log: log, timeout: timeout, metrics: metrics}
}

// LoadPostState hydrates everything needed to compose views for uris.
// extraActors names actors referenced outside the posts themselves (e.g.
// reposters on feed items) that must hydrate in the same pass.
//
// The posts themselves are essential: a storage failure there is the
// request's failure. Every other dataset degrades to empty on error.
func (l *Loader) LoadPostState(ctx context.Context, uris []string, viewer string, extraActors []string) (*State, error) {
	state := newState(viewer)
	uris = dedupe(uris)
	if l.metrics != nil {
		l.metrics.BatchSize.Observe(float64(len(uris)))
	}
	if len(uris) == 0 && len(extraActors) == 0 {
		return state, nil
	}

	posts, err := l.store.Posts().GetByURIs(ctx, uris)
	if err != nil {
		return nil, err
	}
	state.Posts = posts

	// Reply anchors ride along in the same post map so composition can
	// emit strong refs without a second pass.
	var anchorURIs []string
	actorDIDs := append([]string(nil), extraActors...)
	for _, p := range posts {
		actorDIDs = append(actorDIDs, p.AuthorDID)
		if p.IsReply() {
			if _, ok := posts[p.ReplyParentURI]; !ok {
				anchorURIs = append(anchorURIs, p.ReplyParentURI)
			}
			if _, ok := posts[p.ReplyRootURI]; !ok {
				anchorURIs = append(anchorURIs, p.ReplyRootURI)
			}
		}
	}
	actorDIDs = dedupe(actorDIDs)
	anchorURIs = dedupe(anchorURIs)

	subjects := make([]string, 0, len(uris)+len(actorDIDs))
	subjects = append(subjects, uris...)
	subjects = append(subjects, actorDIDs...)

	actors, err := l.loadActorsWithRetry(ctx, actorDIDs)
	if err != nil {
		return nil, err
	}
	state.Actors = actors

	// Enrichment fan-out: independent batches in parallel, joined before
	// composition starts. Failures downgrade to empty datasets.
	enrichCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(enrichCtx)

	g.Go(func() error {
		if len(anchorURIs) == 0 {
			return nil
		}
		anchors, err := l.store.Posts().GetByURIs(gctx, anchorURIs)
		if err != nil {
			l.degrade("reply_anchors", err)
			return nil
		}
		for uri, p := range anchors {
			state.Posts[uri] = p
		}
		return nil
	})
	g.Go(func() error {
		aggs, err := l.store.Aggregations().GetByURIs(gctx, uris)
		if err != nil {
			l.degrade("aggregations", err)
			return nil
		}
		state.Aggregations = aggs
		return nil
	})
	g.Go(func() error {
		labels, err := l.store.Labels().ActiveForSubjects(gctx, subjects)
		if err != nil {
			l.degrade("labels", err)
			return nil
		}
		state.Labels = labels
		return nil
	})
	if viewer != "" {
		g.Go(func() error {
			edges, err := l.store.Graph().ViewerEdges(gctx, viewer, uris)
			if err != nil {
				l.degrade("viewer_edges", err)
				return nil
			}
			state.ViewerEdges = edges
			return nil
		})
		g.Go(func() error {
			rels, err := l.store.Graph().Relationships(gctx, viewer, actorDIDs)
			if err != nil {
				l.degrade("relationships", err)
				return nil
			}
			state.Relationships = rels
			return nil
		})
		g.Go(func() error {
			l.loadListModeration(gctx, state, actorDIDs)
			return nil
		})
	}
	// The errgroup members never return errors; Wait only joins them.
	_ = g.Wait()

	return state, nil
}

// LoadFeedState hydrates a feed slice: the posts plus any reposting actors.
func (l *Loader) LoadFeedState(ctx context.Context, items []model.FeedItem, viewer string) (*State, error) {
	uris := make([]string, 0, len(items))
	var reposters []string
	for _, it := range items {
		uris = append(uris, it.PostURI)
		if it.IsRepost() {
			reposters = append(reposters, it.RepostedByDID)
		}
	}
	return l.LoadPostState(ctx, uris, viewer, reposters)
}

// LoadActorState hydrates everything needed to compose profile views.
func (l *Loader) LoadActorState(ctx context.Context, dids []string, viewer string) (*State, error) {
	state := newState(viewer)
	dids = dedupe(dids)
	if l.metrics != nil {
		l.metrics.BatchSize.Observe(float64(len(dids)))
	}
	if len(dids) == 0 {
		return state, nil
	}

	actors, err := l.loadActorsWithRetry(ctx, dids)
	if err != nil {
		return nil, err
	}
	state.Actors = actors

	enrichCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(enrichCtx)

	g.Go(func() error {
		stats, err := l.store.Actors().Stats(gctx, dids)
		if err != nil {
			l.degrade("actor_stats", err)
			return nil
		}
		state.ActorStats = stats
		return nil
	})
	g.Go(func() error {
		labels, err := l.store.Labels().ActiveForSubjects(gctx, dids)
		if err != nil {
			l.degrade("labels", err)
			return nil
		}
		state.Labels = labels
		return nil
	})
	if viewer != "" {
		g.Go(func() error {
			rels, err := l.store.Graph().Relationships(gctx, viewer, dids)
			if err != nil {
				l.degrade("relationships", err)
				return nil
			}
			state.Relationships = rels
			return nil
		})
		g.Go(func() error {
			kf, err := l.store.Graph().KnownFollowers(gctx, viewer, dids)
			if err != nil {
				l.degrade("known_followers", err)
				return nil
			}
			state.KnownFollowers = kf
			return nil
		})
		g.Go(func() error {
			l.loadListModeration(gctx, state, dids)
			return nil
		})
	}
	_ = g.Wait()

	// Known-follower samples render as basic profiles; pull any the batch
	// does not already hold. Best effort.
	var sampleDIDs []string
	for _, kf := range state.KnownFollowers {
		for _, did := range kf.DIDs {
			if _, ok := state.Actors[did]; !ok {
				sampleDIDs = append(sampleDIDs, did)
			}
		}
	}
	if sampleDIDs = dedupe(sampleDIDs); len(sampleDIDs) > 0 {
		if extra, err := l.store.Actors().GetByDIDs(ctx, sampleDIDs); err == nil {
			for did, a := range extra {
				state.Actors[did] = a
			}
		} else {
			l.degrade("known_follower_profiles", err)
		}
	}

	return state, nil
}

// loadActorsWithRetry fetches actors and, when some are absent from the
// first batch, performs one on-demand best-effort re-fetch before giving
// up. Entities still absent are left for composition to drop; a detached
// warm-up asks storage again off the request path so a later request can
// succeed.
func (l *Loader) loadActorsWithRetry(ctx context.Context, dids []string) (map[string]*model.Actor, error) {
	if len(dids) == 0 {
		return map[string]*model.Actor{}, nil
	}
	actors, err := l.store.Actors().GetByDIDs(ctx, dids)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, did := range dids {
		if _, ok := actors[did]; !ok {
			missing = append(missing, did)
		}
	}
	if len(missing) == 0 {
		return actors, nil
	}

	refetched, err := l.store.Actors().GetByDIDs(ctx, missing)
	if err == nil {
		for did, a := range refetched {
			actors[did] = a
		}
		missing = missing[:0]
		for _, did := range dids {
			if _, ok := actors[did]; !ok {
				missing = append(missing, did)
			}
		}
	}

	if len(missing) > 0 {
		l.log.Debug().Strs("dids", missing).Msg("authors missing after refetch; excluded from output")
		l.warmActors(ctx, missing)
	}
	return actors, nil
}

// warmActors populates missing profiles for future requests. It is detached
// from the request's cancellation scope and never awaited.
func (l *Loader) warmActors(ctx context.Context, dids []string) {
	warmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	go func() {
		defer cancel()
		if _, err := l.store.Actors().GetByDIDs(warmCtx, dids); err != nil {
			l.log.Debug().Err(err).Msg("actor warm-up failed")
		}
	}()
}

// loadListModeration resolves indirect mute/block state: collect the lists
// the viewer mutes/blocks, load the list records once, then test target
// membership. All best effort.
func (l *Loader) loadListModeration(ctx context.Context, state *State, targets []string) {
	graph := l.store.Graph()

	muteURIs, err := graph.ListMutes(ctx, state.Viewer)
	if err != nil {
		l.degrade("list_mutes", err)
		muteURIs = nil
	}
	blockURIs, err := graph.ListBlocks(ctx, state.Viewer)
	if err != nil {
		l.degrade("list_blocks", err)
		blockURIs = nil
	}
	allURIs := dedupe(append(append([]string(nil), muteURIs...), blockURIs...))
	if len(allURIs) == 0 {
		return
	}

	lists, err := l.store.Lists().GetByURIs(ctx, allURIs)
	if err != nil {
		l.degrade("lists", err)
		return
	}
	memberships, err := graph.ListMemberships(ctx, allURIs, targets)
	if err != nil {
		l.degrade("list_memberships", err)
		return
	}

	muted := make(map[string]bool, len(muteURIs))
	for _, uri := range muteURIs {
		muted[uri] = true
	}
	blocked := make(map[string]bool, len(blockURIs))
	for _, uri := range blockURIs {
		blocked[uri] = true
	}

	for target, listURIs := range memberships {
		for _, uri := range listURIs {
			list, ok := lists[uri]
			if !ok {
				continue
			}
			if muted[uri] && state.MutedByList[target] == nil {
				state.MutedByList[target] = list
			}
			if blocked[uri] && state.BlockedByList[target] == nil {
				state.BlockedByList[target] = list
			}
		}
	}
}

func (l *Loader) degrade(dataset string, err error) {
	if l.metrics != nil {
		l.metrics.Degradations.Inc()
	}
	l.log.Warn().Str("dataset", dataset).Err(err).Msg("enrichment fetch failed; serving empty dataset")
}
