package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-social/halcyon/appview/internal/blob"
	"github.com/halcyon-social/halcyon/appview/internal/feedgen"
	"github.com/halcyon-social/halcyon/appview/internal/hydration"
	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/views"
)

const (
	alice  = "did:plc:alice"
	bob    = "did:plc:bob"
	viewer = "did:plc:viewer"
)

func newFeedService(m *memStore, fg *feedgen.Client, ranker Ranker) *FeedService {
	loader := hydration.NewLoader(m, zerolog.Nop(), time.Second, nil)
	composer := views.NewComposer(blob.NewResolver("https://cdn.test"))
	return NewFeedService(m, loader, composer, fg, ranker, 50, zerolog.Nop())
}

func seedTimeline(m *memStore, n int) {
	m.addActor(alice, "alice.test")
	for i := 0; i < n; i++ {
		uri := fmt.Sprintf("at://did:plc:alice/app.bsky.feed.post/%04d", i)
		at := baseTime.Add(-time.Duration(i) * time.Minute)
		m.addPost(uri, alice, at)
		m.timeline = append(m.timeline, model.FeedItem{PostURI: uri, SortAt: at})
	}
}

func TestComposePostViewsValidation(t *testing.T) {
	svc := newFeedService(newMemStore(), nil, nil)

	_, err := svc.ComposePostViews(context.Background(), nil, "")
	assert.ErrorIs(t, err, model.ErrValidation)

	big := make([]string, MaxPostBatch+1)
	for i := range big {
		big[i] = fmt.Sprintf("at://a/p/%d", i)
	}
	_, err = svc.ComposePostViews(context.Background(), big, "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestComposePostViewsOrderAndExclusion(t *testing.T) {
	m := newMemStore()
	m.addActor(alice, "alice.test")
	m.addPost("at://did:plc:alice/app.bsky.feed.post/01", alice, baseTime)
	m.addPost("at://did:plc:alice/app.bsky.feed.post/02", alice, baseTime)
	svc := newFeedService(m, nil, nil)

	got, err := svc.ComposePostViews(context.Background(), []string{
		"at://did:plc:alice/app.bsky.feed.post/02",
		"at://did:plc:alice/app.bsky.feed.post/missing",
		"at://did:plc:alice/app.bsky.feed.post/01",
	}, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "at://did:plc:alice/app.bsky.feed.post/02", got[0].URI)
	assert.Equal(t, "at://did:plc:alice/app.bsky.feed.post/01", got[1].URI)
}

func TestGetTimelineRequiresViewer(t *testing.T) {
	svc := newFeedService(newMemStore(), nil, nil)
	_, _, err := svc.GetTimeline(context.Background(), "", 10, "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestGetTimelinePagination(t *testing.T) {
	m := newMemStore()
	seedTimeline(m, 5)
	svc := newFeedService(m, nil, nil)

	entries, cursor, err := svc.GetTimeline(context.Background(), viewer, 3, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.NotEmpty(t, cursor, "full page carries a continuation cursor")

	entries2, cursor2, err := svc.GetTimeline(context.Background(), viewer, 3, cursor)
	require.NoError(t, err)
	require.Len(t, entries2, 2)
	assert.Empty(t, cursor2, "short page ends pagination")

	for _, e := range entries2 {
		assert.NotContains(t, []string{entries[0].Post.URI, entries[1].Post.URI, entries[2].Post.URI}, e.Post.URI,
			"pages must not overlap")
	}
}

func TestGetTimelineRejectsBadCursor(t *testing.T) {
	svc := newFeedService(newMemStore(), nil, nil)
	_, _, err := svc.GetTimeline(context.Background(), viewer, 10, "garbage")
	assert.ErrorIs(t, err, model.ErrInvalidCursor)
}

type reverseRanker struct{}

func (reverseRanker) Rank(_ context.Context, _ string, items []model.FeedItem) []model.FeedItem {
	out := make([]model.FeedItem, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return out
}

func TestGetTimelineCursorTakenBeforeRanking(t *testing.T) {
	m := newMemStore()
	seedTimeline(m, 3)
	svc := newFeedService(m, nil, reverseRanker{})

	entries, cursor, err := svc.GetTimeline(context.Background(), viewer, 3, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "at://did:plc:alice/app.bsky.feed.post/0002", entries[0].Post.URI, "ranker reordered the page")

	at, err := views.ParseCursor(cursor)
	require.NoError(t, err)
	assert.True(t, at.Equal(baseTime.Add(-2*time.Minute)), "cursor still marks the chronologically oldest item")
}

func TestComposeFeedEmitsCursorOnFullPage(t *testing.T) {
	m := newMemStore()
	m.addActor(alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/01"
	m.addPost(uri, alice, baseTime)
	items := []model.FeedItem{{PostURI: uri, SortAt: baseTime}}
	svc := newFeedService(m, nil, nil)

	entries, cursor, err := svc.ComposeFeed(context.Background(), items, "", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, cursor)

	_, cursor, err = svc.ComposeFeed(context.Background(), items, "", 10)
	require.NoError(t, err)
	assert.Empty(t, cursor)
}

func TestGetAuthorFeed(t *testing.T) {
	m := newMemStore()
	m.addActor(alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/01"
	m.addPost(uri, alice, baseTime)
	m.authorFeeds[alice] = []model.FeedItem{{PostURI: uri, SortAt: baseTime}}
	svc := newFeedService(m, nil, nil)

	entries, cursor, err := svc.GetAuthorFeed(context.Background(), alice, "", 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, cursor)
	assert.Equal(t, uri, entries[0].Post.URI)
}

func TestGetPostThread(t *testing.T) {
	m := newMemStore()
	m.addActor(alice, "alice.test")
	m.addActor(bob, "bob.test")

	root := m.addPost("at://did:plc:alice/app.bsky.feed.post/root", alice, baseTime)
	anchor := m.addPost("at://did:plc:bob/app.bsky.feed.post/anchor", bob, baseTime.Add(time.Minute))
	anchor.ReplyParentURI = root.URI
	anchor.ReplyRootURI = root.URI
	r1 := m.addPost("at://did:plc:alice/app.bsky.feed.post/r1", alice, baseTime.Add(2*time.Minute))
	r1.ReplyParentURI = anchor.URI
	r1.ReplyRootURI = root.URI
	r2 := m.addPost("at://did:plc:bob/app.bsky.feed.post/r2", bob, baseTime.Add(3*time.Minute))
	r2.ReplyParentURI = r1.URI
	r2.ReplyRootURI = root.URI
	// A sibling branch under the root must not leak into the anchor's subtree.
	sib := m.addPost("at://did:plc:alice/app.bsky.feed.post/sib", alice, baseTime.Add(time.Minute))
	sib.ReplyParentURI = root.URI
	sib.ReplyRootURI = root.URI

	svc := newFeedService(m, nil, nil)
	thread, err := svc.GetPostThread(context.Background(), anchor.URI, "", DefaultThreadDepth)
	require.NoError(t, err)

	assert.Equal(t, anchor.URI, thread.Post.URI)
	require.NotNil(t, thread.Parent)
	assert.Equal(t, root.URI, thread.Parent.Post.URI)
	assert.Nil(t, thread.Parent.Parent)

	require.Len(t, thread.Replies, 1, "mid-thread anchor serves its own replies, not its siblings")
	assert.Equal(t, r1.URI, thread.Replies[0].Post.URI)
	require.Len(t, thread.Replies[0].Replies, 1)
	assert.Equal(t, r2.URI, thread.Replies[0].Replies[0].Post.URI)
}

func TestGetPostThreadDescendantsUnavailable(t *testing.T) {
	m := newMemStore()
	m.addActor(alice, "alice.test")
	root := m.addPost("at://did:plc:alice/app.bsky.feed.post/root", alice, baseTime)
	anchor := m.addPost("at://did:plc:alice/app.bsky.feed.post/anchor", alice, baseTime.Add(time.Minute))
	anchor.ReplyParentURI = root.URI
	anchor.ReplyRootURI = root.URI
	m.threadErr = errors.New("thread index down")

	svc := newFeedService(m, nil, nil)
	thread, err := svc.GetPostThread(context.Background(), anchor.URI, "", DefaultThreadDepth)
	require.NoError(t, err, "thread query failure degrades instead of erroring")
	assert.Equal(t, anchor.URI, thread.Post.URI)
	require.NotNil(t, thread.Parent, "ancestors recovered by the fallback walk")
	assert.Equal(t, root.URI, thread.Parent.Post.URI)
	assert.Empty(t, thread.Replies)
}

func TestGetPostThreadDepthCap(t *testing.T) {
	m := newMemStore()
	m.addActor(alice, "alice.test")
	anchor := m.addPost("at://did:plc:alice/app.bsky.feed.post/anchor", alice, baseTime)
	r1 := m.addPost("at://did:plc:alice/app.bsky.feed.post/r1", alice, baseTime.Add(time.Minute))
	r1.ReplyParentURI = anchor.URI
	r1.ReplyRootURI = anchor.URI
	r2 := m.addPost("at://did:plc:alice/app.bsky.feed.post/r2", alice, baseTime.Add(2*time.Minute))
	r2.ReplyParentURI = r1.URI
	r2.ReplyRootURI = anchor.URI

	svc := newFeedService(m, nil, nil)
	thread, err := svc.GetPostThread(context.Background(), anchor.URI, "", 1)
	require.NoError(t, err)
	require.Len(t, thread.Replies, 1)
	assert.Empty(t, thread.Replies[0].Replies, "nesting stops at the requested depth")
}

func TestGetPostThreadNotFound(t *testing.T) {
	svc := newFeedService(newMemStore(), nil, nil)
	_, err := svc.GetPostThread(context.Background(), "at://x/p/missing", "", 0)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestGetFeedProxiesSkeleton(t *testing.T) {
	m := newMemStore()
	m.addActor(alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/01"
	m.addPost(uri, alice, baseTime)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"feed":[{"post":%q},{"post":"at://x/p/missing"}],"cursor":"gen-cursor"}`, uri)
	}))
	defer srv.Close()

	svc := newFeedService(m, feedgen.NewClient(srv.URL, zerolog.Nop()), nil)
	entries, cursor, err := svc.GetFeed(context.Background(), "at://did:plc:gen/app.bsky.feed.generator/hot", "", 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1, "unhydratable skeleton entries dropped")
	assert.Equal(t, uri, entries[0].Post.URI)
	assert.Equal(t, "gen-cursor", cursor, "generator cursor passes through opaquely")
}

func TestGetFeedDisabled(t *testing.T) {
	svc := newFeedService(newMemStore(), nil, nil)
	_, _, err := svc.GetFeed(context.Background(), "at://x/feed/1", "", 10, "")
	assert.ErrorIs(t, err, model.ErrUnavailable)
}
