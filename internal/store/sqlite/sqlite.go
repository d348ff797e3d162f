// Package sqlite implements the batched store interface on SQLite for the
// local build target. Batch lookups expand to IN (...) placeholder lists,
// still one statement per dataset.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/store"
)

// New constructs a SQLite store backed by db.
func New(db *sql.DB) store.Store { return &liteStore{db: db} }

type liteStore struct{ db *sql.DB }

func (s *liteStore) Posts() store.Posts               { return &posts{db: s.db} }
func (s *liteStore) Actors() store.Actors             { return &actors{db: s.db} }
func (s *liteStore) Aggregations() store.Aggregations { return &aggregations{db: s.db} }
func (s *liteStore) Labels() store.Labels             { return &labels{db: s.db} }
func (s *liteStore) Graph() store.Graph               { return &graph{db: s.db} }
func (s *liteStore) Lists() store.Lists               { return &lists{db: s.db} }
func (s *liteStore) Feeds() store.Feeds               { return &feeds{db: s.db} }
func (s *liteStore) Prefs() store.Prefs               { return &prefs{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *liteStore) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// placeholders returns "?,?,?" for n values and the matching arg slice.
func placeholders(vals []string) (string, []any) {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(vals)), ","), args
}

// --- Posts ---

type posts struct{ db *sql.DB }

func (p *posts) GetByURIs(ctx context.Context, uris []string) (map[string]*model.Post, error) {
	out := make(map[string]*model.Post, len(uris))
	if len(uris) == 0 {
		return out, nil
	}
	ph, args := placeholders(uris)
	rows, err := p.db.QueryContext(ctx, `
        SELECT uri, cid, author_did, text, langs, embed_json,
               COALESCE(reply_parent_uri,''), COALESCE(reply_root_uri,''),
               created_at, indexed_at
        FROM posts WHERE uri IN (`+ph+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Post
		var langsJSON string
		var embedJSON *string
		if err := rows.Scan(&m.URI, &m.CID, &m.AuthorDID, &m.Text, &langsJSON, &embedJSON,
			&m.ReplyParentURI, &m.ReplyRootURI, &m.CreatedAt, &m.IndexedAt); err != nil {
			return nil, err
		}
		if langsJSON != "" {
			_ = json.Unmarshal([]byte(langsJSON), &m.Langs)
		}
		if embedJSON != nil && *embedJSON != "" {
			var e model.Embed
			if err := json.Unmarshal([]byte(*embedJSON), &e); err == nil {
				m.Embed = &e
			}
		}
		out[m.URI] = &m
	}
	return out, rows.Err()
}

// --- Actors ---

type actors struct{ db *sql.DB }

const actorColumns = `did, handle, display_name, description,
       avatar_cid, avatar_mime, banner_cid, banner_mime, created_at, indexed_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanActor(row rowScanner) (*model.Actor, error) {
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
	ph, args := placeholders(dids)
	rows, err := a.db.QueryContext(ctx, `SELECT `+actorColumns+` FROM actors WHERE did IN (`+ph+`)`, args...)
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
	row := a.db.QueryRowContext(ctx, `SELECT `+actorColumns+` FROM actors WHERE handle = ?`, handle)
	m, err := scanActor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (a *actors) Stats(ctx context.Context, dids []string) (map[string]*model.ActorStats, error) {
	out := make(map[string]*model.ActorStats, len(dids))
	if len(dids) == 0 {
		return out, nil
	}
	ph, args := placeholders(dids)
	rows, err := a.db.QueryContext(ctx, `
        SELECT did, followers_count, follows_count, posts_count, lists_count, feedgens_count
        FROM actor_stats WHERE did IN (`+ph+`)`, args...)
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

type aggregations struct{ db *sql.DB }

func (g *aggregations) GetByURIs(ctx context.Context, uris []string) (map[string]*model.Aggregation, error) {
	out := make(map[string]*model.Aggregation, len(uris))
	if len(uris) == 0 {
		return out, nil
	}
	ph, args := placeholders(uris)
	rows, err := g.db.QueryContext(ctx, `
        SELECT uri, like_count, repost_count, reply_count, quote_count, bookmark_count
        FROM post_aggregations WHERE uri IN (`+ph+`)`, args...)
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

type labels struct{ db *sql.DB }

func (l *labels) ActiveForSubjects(ctx context.Context, subjects []string) (map[string][]model.Label, error) {
	out := make(map[string][]model.Label, len(subjects))
	if len(subjects) == 0 {
		return out, nil
	}
	ph, args := placeholders(subjects)
	rows, err := l.db.QueryContext(ctx, `
        SELECT subject, src, val, neg, created_at
        FROM labels WHERE subject IN (`+ph+`)
        ORDER BY created_at ASC`, args...)
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

type graph struct{ db *sql.DB }

func (g *graph) Relationships(ctx context.Context, viewer string, others []string) (map[string]*model.Relationship, error) {
	out := make(map[string]*model.Relationship, len(others))
	if viewer == "" || len(others) == 0 {
		return out, nil
	}
	ph, args := placeholders(others)
	all := append([]any{viewer, viewer, viewer, viewer, viewer}, args...)
	rows, err := g.db.QueryContext(ctx, `
        SELECT a.did,
               COALESCE((SELECT uri FROM follows WHERE creator_did=? AND subject_did=a.did), ''),
               COALESCE((SELECT uri FROM follows WHERE creator_did=a.did AND subject_did=?), ''),
               COALESCE((SELECT uri FROM blocks  WHERE creator_did=? AND subject_did=a.did), ''),
               EXISTS(SELECT 1 FROM blocks WHERE creator_did=a.did AND subject_did=?),
               EXISTS(SELECT 1 FROM mutes  WHERE creator_did=? AND subject_did=a.did)
        FROM actors a WHERE a.did IN (`+ph+`)`, all...)
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
	ph, args := placeholders(uris)
	all := append([]any{viewer, viewer, viewer, viewer}, args...)
	rows, err := g.db.QueryContext(ctx, `
        SELECT p.uri,
               COALESCE((SELECT uri FROM likes   WHERE creator_did=? AND subject_uri=p.uri), ''),
               COALESCE((SELECT uri FROM reposts WHERE creator_did=? AND subject_uri=p.uri), ''),
               EXISTS(SELECT 1 FROM bookmarks    WHERE creator_did=? AND subject_uri=p.uri),
               EXISTS(SELECT 1 FROM thread_mutes WHERE creator_did=? AND root_uri=p.uri)
        FROM posts p WHERE p.uri IN (`+ph+`)`, all...)
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
	return g.listEdges(ctx, `SELECT list_uri FROM list_mutes WHERE creator_did=?`, viewer)
}

func (g *graph) ListBlocks(ctx context.Context, viewer string) ([]string, error) {
	return g.listEdges(ctx, `SELECT list_uri FROM list_blocks WHERE creator_did=?`, viewer)
}

func (g *graph) listEdges(ctx context.Context, q, viewer string) ([]string, error) {
	if viewer == "" {
		return nil, nil
	}
	rows, err := g.db.QueryContext(ctx, q, viewer)
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
	lph, largs := placeholders(listURIs)
	tph, targs := placeholders(targets)
	rows, err := g.db.QueryContext(ctx, `
        SELECT subject_did, list_uri FROM list_items
        WHERE list_uri IN (`+lph+`) AND subject_did IN (`+tph+`)`,
		append(largs, targs...)...)
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
	ph, args := placeholders(others)
	rows, err := g.db.QueryContext(ctx, `
        SELECT f.subject_did, f.creator_did
        FROM follows f
        WHERE f.subject_did IN (`+ph+`)
          AND f.creator_did IN (SELECT subject_did FROM follows WHERE creator_did=?)`,
		append(args, viewer)...)
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

type lists struct{ db *sql.DB }

func (l *lists) GetByURIs(ctx context.Context, uris []string) (map[string]*model.List, error) {
	out := make(map[string]*model.List, len(uris))
	if len(uris) == 0 {
		return out, nil
	}
	ph, args := placeholders(uris)
	rows, err := l.db.QueryContext(ctx, `
        SELECT uri, cid, owner_did, name, purpose, indexed_at
        FROM lists WHERE uri IN (`+ph+`)`, args...)
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

type feeds struct{ db *sql.DB }

func (f *feeds) Timeline(ctx context.Context, viewer string, limit int, before time.Time) ([]model.FeedItem, error) {
	q := `
        SELECT fi.post_uri, COALESCE(fi.repost_uri,''), fi.actor_did, fi.sort_at
        FROM feed_items fi
        WHERE fi.actor_did IN (
            SELECT subject_did FROM follows WHERE creator_did=?
            UNION SELECT ?
        )`
	args := []any{viewer, viewer}
	if !before.IsZero() {
		q += ` AND fi.sort_at < ?`
		args = append(args, before)
	}
	q += ` ORDER BY fi.sort_at DESC LIMIT ?`
	args = append(args, limit)
	return f.slice(ctx, q, args)
}

func (f *feeds) AuthorFeed(ctx context.Context, did string, limit int, before time.Time) ([]model.FeedItem, error) {
	q := `
        SELECT fi.post_uri, COALESCE(fi.repost_uri,''), fi.actor_did, fi.sort_at
        FROM feed_items fi
        WHERE fi.actor_did = ?`
	args := []any{did}
	if !before.IsZero() {
		q += ` AND fi.sort_at < ?`
		args = append(args, before)
	}
	q += ` ORDER BY fi.sort_at DESC LIMIT ?`
	args = append(args, limit)
	return f.slice(ctx, q, args)
}

func (f *feeds) slice(ctx context.Context, q string, args []any) ([]model.FeedItem, error) {
	rows, err := f.db.QueryContext(ctx, q, args...)
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
	rows, err := f.db.QueryContext(ctx, `
        SELECT uri FROM posts WHERE reply_root_uri = ?
        ORDER BY created_at ASC LIMIT ?`, rootURI, limit)
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

type prefs struct{ db *sql.DB }

func (p *prefs) Get(ctx context.Context, did string) (*model.Preferences, error) {
	var raw string
	err := p.db.QueryRowContext(ctx, `SELECT prefs_json FROM preferences WHERE did=?`, did).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &model.Preferences{DID: did}, nil
		}
		return nil, err
	}
	out := &model.Preferences{DID: did}
	if err := json.Unmarshal([]byte(raw), &out.Items); err != nil {
		return nil, fmt.Errorf("decode preferences for %s: %w", did, err)
	}
	return out, nil
}

func (p *prefs) Put(ctx context.Context, prefs *model.Preferences) error {
	raw, err := json.Marshal(prefs.Items)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
        INSERT INTO preferences (did, prefs_json) VALUES (?, ?)
        ON CONFLICT (did) DO UPDATE SET prefs_json = excluded.prefs_json
    `, prefs.DID, string(raw))
	return err
}
