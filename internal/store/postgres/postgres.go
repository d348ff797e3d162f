// Package postgres implements the batched store interface on PostgreSQL
// using the native pgx driver. Array parameters keep every lookup at one
// round trip regardless of batch size.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/store"
)

// Open connects a pgx pool and verifies connectivity.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// NewWithPool constructs a Postgres store backed by an existing pool.
func NewWithPool(pool *pgxpool.Pool) store.Store { return &pgStore{pool: pool} }

type pgStore struct{ pool *pgxpool.Pool }

func (s *pgStore) Posts() store.Posts               { return &posts{pool: s.pool} }
func (s *pgStore) Actors() store.Actors             { return &actors{pool: s.pool} }
func (s *pgStore) Aggregations() store.Aggregations { return &aggregations{pool: s.pool} }
func (s *pgStore) Labels() store.Labels             { return &labels{pool: s.pool} }
func (s *pgStore) Graph() store.Graph               { return &graph{pool: s.pool} }
func (s *pgStore) Lists() store.Lists               { return &lists{pool: s.pool} }
func (s *pgStore) Feeds() store.Feeds               { return &feeds{pool: s.pool} }
func (s *pgStore) Prefs() store.Prefs               { return &prefs{pool: s.pool} }

// HealthPing implements health.HealthPinger.
func (s *pgStore) HealthPing(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Posts ---

type posts struct{ pool *pgxpool.Pool }

func (p *posts) GetByURIs(ctx context.Context, uris []string) (map[string]*model.Post, error) {
	out := make(map[string]*model.Post, len(uris))
	if len(uris) == 0 {
		return out, nil
	}
	rows, err := p.pool.Query(ctx, `
        SELECT uri, cid, author_did, text, langs, embed_json,
               COALESCE(reply_parent_uri,''), COALESCE(reply_root_uri,''),
               created_at, indexed_at
        FROM posts WHERE uri = ANY($1)
    `, uris)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Post
		var embedJSON []byte
		if err := rows.Scan(&m.URI, &m.CID, &m.AuthorDID, &m.Text, &m.Langs, &embedJSON,
			&m.ReplyParentURI, &m.ReplyRootURI, &m.CreatedAt, &m.IndexedAt); err != nil {
			return nil, err
		}
		if len(embedJSON) > 0 {
			var e model.Embed
			if err := json.Unmarshal(embedJSON, &e); err == nil {
				m.Embed = &e
			}
			// Undecodable embeds stay nil; the composer drops them anyway.
		}
		out[m.URI] = &m
	}
	return out, rows.Err()
}

// --- Actors ---

type actors struct{ pool *pgxpool.Pool }

const actorColumns = `did, handle, display_name, description,
       avatar_cid, avatar_mime, banner_cid, banner_mime, created_at, indexed_at`

func scanActor(row pgx.CollectableRow) (*model.Actor, error) {
	var m model.Actor
	var avatarCID, avatarMime, bannerCID, bannerMime *string
	if err := row.Scan(&m.DID, &m.Handle, &m.DisplayName, &m.Description,
		&avatarCID, &avatarMime, &bannerCID, &bannerMime, &m.CreatedAt, &m.IndexedAt); err != nil {
		return nil, err
	}
	if avatarCID != nil {
		m.AvatarBlob = &model.BlobRef{CID: *avatarCID}
		if avatarMime != nil {
			m.AvatarBlob.MimeType = *avatarMime
		}
	}
	if bannerCID != nil {
		m.BannerBlob = &model.BlobRef{CID: *bannerCID}
		if bannerMime != nil {
			m.BannerBlob.MimeType = *bannerMime
		}
	}
	return &m, nil
}

func (a *actors) GetByDIDs(ctx context.Context, dids []string) (map[string]*model.Actor, error) {
	out := make(map[string]*model.Actor, len(dids))
	if len(dids) == 0 {
		return out, nil
	}
	rows, err := a.pool.Query(ctx, `SELECT `+actorColumns+` FROM actors WHERE did = ANY($1)`, dids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		out[m.DID] = m
	}
	return out, rows.Err()
}

func (a *actors) GetByHandle(ctx context.Context, handle string) (*model.Actor, error) {
	rows, err := a.pool.Query(ctx, `SELECT `+actorColumns+` FROM actors WHERE handle = $1`, handle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, model.ErrNotFound
	}
	return scanActor(rows)
}

func (a *actors) Stats(ctx context.Context, dids []string) (map[string]*model.ActorStats, error) {
	out := make(map[string]*model.ActorStats, len(dids))
	if len(dids) == 0 {
		return out, nil
	}
	rows, err := a.pool.Query(ctx, `
        SELECT did, followers_count, follows_count, posts_count, lists_count, feedgens_count
        FROM actor_stats WHERE did = ANY($1)
    `, dids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m model.ActorStats
		if err := rows.Scan(&m.DID, &m.FollowersCount, &m.FollowsCount,
			&m.PostsCount, &m.ListsCount, &m.FeedGensCount); err != nil {
			return nil, err
		}
		out[m.DID] = &m
	}
	return out, rows.Err()
}

// --- Aggregations ---

type aggregations struct{ pool *pgxpool.Pool }

func (g *aggregations) GetByURIs(ctx context.Context, uris []string) (map[string]*model.Aggregation, error) {
	out := make(map[string]*model.Aggregation, len(uris))
	if len(uris) == 0 {
		return out, nil
	}
	rows, err := g.pool.Query(ctx, `
        SELECT uri, like_count, repost_count, reply_count, quote_count, bookmark_count
        FROM post_aggregations WHERE uri = ANY($1)
    `, uris)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Aggregation
		if err := rows.Scan(&m.URI, &m.LikeCount, &m.RepostCount,
			&m.ReplyCount, &m.QuoteCount, &m.BookmarkCount); err != nil {
			return nil, err
		}
		out[m.URI] = &m
	}
	return out, rows.Err()
}

// --- Labels ---

type labels struct{ pool *pgxpool.Pool }

func (l *labels) ActiveForSubjects(ctx context.Context, subjects []string) (map[string][]model.Label, error) {
	out := make(map[string][]model.Label, len(subjects))
	if len(subjects) == 0 {
		return out, nil
	}
	// Negations are applied here so callers only ever see active labels.
	rows, err := l.pool.Query(ctx, `
        SELECT subject, src, val, neg, created_at
        FROM labels WHERE subject = ANY($1)
        ORDER BY created_at ASC
    `, subjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type key struct{ subject, src, val string }
	active := make(map[key]model.Label)
	for rows.Next() {
		var m model.Label
		if err := rows.Scan(&m.Subject, &m.Src, &m.Val, &m.Neg, &m.CreatedAt); err != nil {
			return nil, err
		}
		k := key{m.Subject, m.Src, m.Val}
		if m.Neg {
			delete(active, k)
		} else {
			active[k] = m
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, m := range active {
		out[m.Subject] = append(out[m.Subject], m)
	}
	return out, nil
}

// --- Graph ---

type graph struct{ pool *pgxpool.Pool }

func (g *graph) Relationships(ctx context.Context, viewer string, others []string) (map[string]*model.Relationship, error) {
	out := make(map[string]*model.Relationship, len(others))
	if viewer == "" || len(others) == 0 {
		return out, nil
	}
	rows, err := g.pool.Query(ctx, `
        SELECT o.did,
               COALESCE((SELECT uri FROM follows WHERE creator_did=$1 AND subject_did=o.did), ''),
               COALESCE((SELECT uri FROM follows WHERE creator_did=o.did AND subject_did=$1), ''),
               COALESCE((SELECT uri FROM blocks  WHERE creator_did=$1 AND subject_did=o.did), ''),
               EXISTS(SELECT 1 FROM blocks WHERE creator_did=o.did AND subject_did=$1),
               EXISTS(SELECT 1 FROM mutes  WHERE creator_did=$1 AND subject_did=o.did)
        FROM unnest($2::text[]) AS o(did)
    `, viewer, others)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Relationship
		if err := rows.Scan(&m.DID, &m.FollowingURI, &m.FollowedByURI,
			&m.BlockingURI, &m.BlockedBy, &m.Muted); err != nil {
			return nil, err
		}
		out[m.DID] = &m
	}
	return out, rows.Err()
}

func (g *graph) ViewerEdges(ctx context.Context, viewer string, uris []string) (map[string]*model.ViewerEdges, error) {
	out := make(map[string]*model.ViewerEdges, len(uris))
	if viewer == "" || len(uris) == 0 {
		return out, nil
	}
	rows, err := g.pool.Query(ctx, `
        SELECT u.uri,
               COALESCE((SELECT uri FROM likes   WHERE creator_did=$1 AND subject_uri=u.uri), ''),
               COALESCE((SELECT uri FROM reposts WHERE creator_did=$1 AND subject_uri=u.uri), ''),
               EXISTS(SELECT 1 FROM bookmarks    WHERE creator_did=$1 AND subject_uri=u.uri),
               EXISTS(SELECT 1 FROM thread_mutes WHERE creator_did=$1 AND root_uri=u.uri)
        FROM unnest($2::text[]) AS u(uri)
    `, viewer, uris)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var uri string
		var m model.ViewerEdges
		if err := rows.Scan(&uri, &m.LikeURI, &m.RepostURI, &m.Bookmarked, &m.ThreadMuted); err != nil {
			return nil, err
		}
		out[uri] = &m
	}
	return out, rows.Err()
}

func (g *graph) ListMutes(ctx context.Context, viewer string) ([]string, error) {
	return g.listEdges(ctx, `SELECT list_uri FROM list_mutes WHERE creator_did=$1`, viewer)
}

func (g *graph) ListBlocks(ctx context.Context, viewer string) ([]string, error) {
	return g.listEdges(ctx, `SELECT list_uri FROM list_blocks WHERE creator_did=$1`, viewer)
}

func (g *graph) listEdges(ctx context.Context, q, viewer string) ([]string, error) {
	if viewer == "" {
		return nil, nil
	}
	rows, err := g.pool.Query(ctx, q, viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		out = append(out, uri)
	}
	return out, rows.Err()
}

func (g *graph) ListMemberships(ctx context.Context, listURIs []string, targets []string) (map[string][]string, error) {
	out := make(map[string][]string, len(targets))
	if len(listURIs) == 0 || len(targets) == 0 {
		return out, nil
	}
	rows, err := g.pool.Query(ctx, `
        SELECT subject_did, list_uri FROM list_items
        WHERE list_uri = ANY($1) AND subject_did = ANY($2)
    `, listURIs, targets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var did, listURI string
		if err := rows.Scan(&did, &listURI); err != nil {
			return nil, err
		}
		out[did] = append(out[did], listURI)
	}
	return out, rows.Err()
}

func (g *graph) KnownFollowers(ctx context.Context, viewer string, others []string) (map[string]*model.KnownFollowers, error) {
	out := make(map[string]*model.KnownFollowers, len(others))
	if viewer == "" || len(others) == 0 {
		return out, nil
	}
	// Followers of each other-actor that the viewer follows. The sample is
	// capped; the count covers the full intersection.
	rows, err := g.pool.Query(ctx, `
        SELECT f.subject_did, f.creator_did
        FROM follows f
        WHERE f.subject_did = ANY($2)
          AND f.creator_did IN (SELECT subject_did FROM follows WHERE creator_did=$1)
    `, viewer, others)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	const sampleSize = 5
	for rows.Next() {
		var subject, follower string
		if err := rows.Scan(&subject, &follower); err != nil {
			return nil, err
		}
		kf := out[subject]
		if kf == nil {
			kf = &model.KnownFollowers{}
			out[subject] = kf
		}
		kf.Count++
		if len(kf.DIDs) < sampleSize {
			kf.DIDs = append(kf.DIDs, follower)
		}
	}
	return out, rows.Err()
}

// --- Lists ---

type lists struct{ pool *pgxpool.Pool }

func (l *lists) GetByURIs(ctx context.Context, uris []string) (map[string]*model.List, error) {
	out := make(map[string]*model.List, len(uris))
	if len(uris) == 0 {
		return out, nil
	}
	rows, err := l.pool.Query(ctx, `
        SELECT uri, cid, owner_did, name, purpose, indexed_at
        FROM lists WHERE uri = ANY($1)
    `, uris)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m model.List
		if err := rows.Scan(&m.URI, &m.CID, &m.OwnerDID, &m.Name, &m.Purpose, &m.IndexedAt); err != nil {
			return nil, err
		}
		out[m.URI] = &m
	}
	return out, rows.Err()
}

// --- Feeds ---

type feeds struct{ pool *pgxpool.Pool }

func (f *feeds) Timeline(ctx context.Context, viewer string, limit int, before time.Time) ([]model.FeedItem, error) {
	return f.slice(ctx, `
        SELECT fi.post_uri, COALESCE(fi.repost_uri,''), COALESCE(fi.actor_did,''), fi.sort_at
        FROM feed_items fi
        WHERE fi.actor_did IN (
            SELECT subject_did FROM follows WHERE creator_did=$1
            UNION SELECT $1
        )
          AND ($2::timestamptz IS NULL OR fi.sort_at < $2)
        ORDER BY fi.sort_at DESC
        LIMIT $3
    `, viewer, limit, before)
}

func (f *feeds) AuthorFeed(ctx context.Context, did string, limit int, before time.Time) ([]model.FeedItem, error) {
	return f.slice(ctx, `
        SELECT fi.post_uri, COALESCE(fi.repost_uri,''), COALESCE(fi.actor_did,''), fi.sort_at
        FROM feed_items fi
        WHERE fi.actor_did = $1
          AND ($2::timestamptz IS NULL OR fi.sort_at < $2)
        ORDER BY fi.sort_at DESC
        LIMIT $3
    `, did, limit, before)
}

func (f *feeds) slice(ctx context.Context, q, key string, limit int, before time.Time) ([]model.FeedItem, error) {
	var beforeArg *time.Time
	if !before.IsZero() {
		beforeArg = &before
	}
	rows, err := f.pool.Query(ctx, q, key, beforeArg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.FeedItem
	for rows.Next() {
		var m model.FeedItem
		if err := rows.Scan(&m.PostURI, &m.RepostURI, &m.RepostedByDID, &m.SortAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (f *feeds) ThreadDescendants(ctx context.Context, rootURI string, limit int) ([]string, error) {
	rows, err := f.pool.Query(ctx, `
        SELECT uri FROM posts WHERE reply_root_uri = $1
        ORDER BY created_at ASC LIMIT $2
    `, rootURI, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		out = append(out, uri)
	}
	return out, rows.Err()
}

// --- Prefs ---

type prefs struct{ pool *pgxpool.Pool }

func (p *prefs) Get(ctx context.Context, did string) (*model.Preferences, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT prefs_json FROM preferences WHERE did=$1`, did).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A viewer with no stored preferences gets an empty set.
			return &model.Preferences{DID: did}, nil
		}
		return nil, err
	}
	out := &model.Preferences{DID: did}
	if err := json.Unmarshal(raw, &out.Items); err != nil {
		return nil, fmt.Errorf("decode preferences for %s: %w", did, err)
	}
	return out, nil
}

func (p *prefs) Put(ctx context.Context, prefs *model.Preferences) error {
	raw, err := json.Marshal(prefs.Items)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
        INSERT INTO preferences (did, prefs_json) VALUES ($1, $2)
        ON CONFLICT (did) DO UPDATE SET prefs_json = EXCLUDED.prefs_json
    `, prefs.DID, raw)
	return err
}
