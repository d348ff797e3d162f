package sqlite

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/store"
	"github.com/halcyon-social/halcyon/appview/internal/store/storetest"
)

type seeder struct{ db *sql.DB }

func (s *seeder) SeedActor(t *testing.T, a *model.Actor) {
	t.Helper()
	_, err := s.db.Exec(`
        INSERT INTO actors (did, handle, display_name, description, avatar_cid, avatar_mime,
                            banner_cid, banner_mime, created_at, indexed_at)
        VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.DID, a.Handle, a.DisplayName, a.Description,
		blobCID(a.AvatarBlob), blobMime(a.AvatarBlob),
		blobCID(a.BannerBlob), blobMime(a.BannerBlob),
		a.CreatedAt, a.IndexedAt)
	require.NoError(t, err)
}

func blobCID(b *model.BlobRef) any {
	if b == nil {
		return nil
	}
	return b.CID
}

func blobMime(b *model.BlobRef) any {
	if b == nil {
		return nil
	}
	return b.MimeType
}

func (s *seeder) SeedPost(t *testing.T, p *model.Post) {
	t.Helper()
	langs, _ := json.Marshal(p.Langs)
	var embed any
	if p.Embed != nil {
		raw, err := json.Marshal(p.Embed)
		require.NoError(t, err)
		embed = string(raw)
	}
	_, err := s.db.Exec(`
        INSERT INTO posts (uri, cid, author_did, text, langs, embed_json,
                           reply_parent_uri, reply_root_uri, created_at, indexed_at)
        VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.URI, p.CID, p.AuthorDID, p.Text, string(langs), embed,
		nullable(p.ReplyParentURI), nullable(p.ReplyRootURI), p.CreatedAt, p.IndexedAt)
	require.NoError(t, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *seeder) SeedAggregation(t *testing.T, g *model.Aggregation) {
	t.Helper()
	_, err := s.db.Exec(`
        INSERT INTO post_aggregations (uri, like_count, repost_count, reply_count, quote_count, bookmark_count)
        VALUES (?,?,?,?,?,?)`,
		g.URI, g.LikeCount, g.RepostCount, g.ReplyCount, g.QuoteCount, g.BookmarkCount)
	require.NoError(t, err)
}

func (s *seeder) SeedLabel(t *testing.T, l *model.Label) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO labels (subject, src, val, neg, created_at) VALUES (?,?,?,?,?)`,
		l.Subject, l.Src, l.Val, l.Neg, l.CreatedAt)
	require.NoError(t, err)
}

func (s *seeder) SeedFollow(t *testing.T, uri, creator, subject string) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO follows (uri, creator_did, subject_did) VALUES (?,?,?)`, uri, creator, subject)
	require.NoError(t, err)
}

func (s *seeder) SeedLike(t *testing.T, uri, creator, subject string) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO likes (uri, creator_did, subject_uri) VALUES (?,?,?)`, uri, creator, subject)
	require.NoError(t, err)
}

func (s *seeder) SeedList(t *testing.T, l *model.List, memberDIDs []string) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO lists (uri, cid, owner_did, name, purpose, indexed_at) VALUES (?,?,?,?,?,?)`,
		l.URI, l.CID, l.OwnerDID, l.Name, l.Purpose, l.IndexedAt)
	require.NoError(t, err)
	for _, did := range memberDIDs {
		_, err := s.db.Exec(`INSERT INTO list_items (list_uri, subject_did) VALUES (?,?)`, l.URI, did)
		require.NoError(t, err)
	}
}

func (s *seeder) SeedListMute(t *testing.T, viewer, listURI string) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO list_mutes (creator_did, list_uri) VALUES (?,?)`, viewer, listURI)
	require.NoError(t, err)
}

func (s *seeder) SeedFeedItem(t *testing.T, item model.FeedItem) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO feed_items (post_uri, repost_uri, actor_did, sort_at) VALUES (?,?,?,?)`,
		item.PostURI, nullable(item.RepostURI), item.RepostedByDID, item.SortAt)
	require.NoError(t, err)
}

func TestSQLiteStoreCompliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (store.Store, storetest.Seeder) {
		db, err := Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		require.NoError(t, EnsureSchema(db))
		return New(db), &seeder{db: db}
	})
}
