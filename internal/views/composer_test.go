package views

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-social/halcyon/appview/internal/blob"
	"github.com/halcyon-social/halcyon/appview/internal/hydration"
	"github.com/halcyon-social/halcyon/appview/internal/model"
)

const (
	alice = "did:plc:alice"
	bob   = "did:plc:bob"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newComposer() *Composer {
	return NewComposer(blob.NewResolver("https://cdn.test"))
}

func emptyState(viewer string) *hydration.State {
	return &hydration.State{
		Viewer:         viewer,
		Posts:          map[string]*model.Post{},
		Actors:         map[string]*model.Actor{},
		ActorStats:     map[string]*model.ActorStats{},
		Aggregations:   map[string]*model.Aggregation{},
		Labels:         map[string][]model.Label{},
		ViewerEdges:    map[string]*model.ViewerEdges{},
		Relationships:  map[string]*model.Relationship{},
		KnownFollowers: map[string]*model.KnownFollowers{},
		MutedByList:    map[string]*model.List{},
		BlockedByList:  map[string]*model.List{},
	}
}

func addPost(st *hydration.State, uri, author, text string) *model.Post {
	p := &model.Post{
		URI:       uri,
		CID:       "bafypost",
		AuthorDID: author,
		Text:      text,
		CreatedAt: testTime,
		IndexedAt: testTime,
	}
	st.Posts[uri] = p
	return p
}

func addActor(st *hydration.State, did, handle string) *model.Actor {
	a := &model.Actor{DID: did, Handle: handle, CreatedAt: testTime, IndexedAt: testTime}
	st.Actors[did] = a
	return a
}

func TestPostViewDefaultsAndAnonymousViewer(t *testing.T) {
	st := emptyState("")
	addActor(st, alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	addPost(st, uri, alice, "hello")

	got := newComposer().PostViews(st, []string{uri})
	require.Len(t, got, 1)

	assert.Equal(t, "hello", got[0].Record.Text)
	assert.EqualValues(t, 0, got[0].LikeCount, "no aggregation row means zero, not omitted")
	assert.EqualValues(t, 0, got[0].ReplyCount)

	raw, err := json.Marshal(got[0])
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.JSONEq(t, `{}`, string(decoded["viewer"]), "anonymous viewer state renders as an empty object")
	assert.JSONEq(t, `[]`, string(decoded["labels"]))
}

func TestPostViewMissingAuthorExcludesPost(t *testing.T) {
	st := emptyState("")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	addPost(st, uri, alice, "orphaned")

	got := newComposer().PostViews(st, []string{uri})
	assert.Empty(t, got, "post without a loadable author must be excluded, not errored")
}

func TestPostViewInvalidHandleExcludesPost(t *testing.T) {
	st := emptyState("")
	addActor(st, alice, model.InvalidHandle)
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	addPost(st, uri, alice, "x")

	assert.Empty(t, newComposer().PostViews(st, []string{uri}))
}

func TestPostViewAggregationCounts(t *testing.T) {
	st := emptyState("")
	addActor(st, alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	addPost(st, uri, alice, "x")
	st.Aggregations[uri] = &model.Aggregation{URI: uri, LikeCount: 9, RepostCount: 3, ReplyCount: 2, QuoteCount: 1, BookmarkCount: 4}

	got := newComposer().PostViews(st, []string{uri})
	require.Len(t, got, 1)
	assert.EqualValues(t, 9, got[0].LikeCount)
	assert.EqualValues(t, 3, got[0].RepostCount)
	assert.EqualValues(t, 2, got[0].ReplyCount)
	assert.EqualValues(t, 1, got[0].QuoteCount)
	assert.EqualValues(t, 4, got[0].BookmarkCount)
}

func TestReplyRefsRequireBothAnchors(t *testing.T) {
	st := emptyState("")
	addActor(st, alice, "alice.test")
	root := addPost(st, "at://did:plc:alice/app.bsky.feed.post/root", alice, "root")
	root.CID = "bafyroot"
	reply := addPost(st, "at://did:plc:alice/app.bsky.feed.post/reply", alice, "reply")
	reply.ReplyParentURI = "at://did:plc:alice/app.bsky.feed.post/gone"
	reply.ReplyRootURI = root.URI

	c := newComposer()
	got := c.PostViews(st, []string{reply.URI})
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Record.Reply, "one missing anchor suppresses the whole reply ref")

	parent := addPost(st, "at://did:plc:alice/app.bsky.feed.post/gone", alice, "parent")
	parent.CID = "bafyparent"
	got = c.PostViews(st, []string{reply.URI})
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Record.Reply)
	assert.Equal(t, "bafyroot", got[0].Record.Reply.Root.CID)
	assert.Equal(t, "bafyparent", got[0].Record.Reply.Parent.CID)
}

func TestEmbedViewImageRewrite(t *testing.T) {
	st := emptyState("")
	addActor(st, alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	p := addPost(st, uri, alice, "pic")
	p.Embed = &model.Embed{Kind: model.EmbedImages, Images: []model.ImageRef{
		{Blob: model.BlobRef{CID: "bafyimg", MimeType: "image/png"}, Alt: "a cat"},
		{Blob: model.BlobRef{}, Alt: "broken"},
	}}

	got := newComposer().PostViews(st, []string{uri})
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Embed)
	assert.Equal(t, model.EmbedViewImages, got[0].Embed.Type)
	require.Len(t, got[0].Embed.Images, 1, "image without a blob CID is dropped")
	assert.Equal(t, "https://cdn.test/feed_thumbnail/plain/did:plc:alice/bafyimg@png", got[0].Embed.Images[0].Thumb)
	assert.Equal(t, "https://cdn.test/feed_fullsize/plain/did:plc:alice/bafyimg@png", got[0].Embed.Images[0].Fullsize)
	assert.Equal(t, "a cat", got[0].Embed.Images[0].Alt)
}

func TestEmbedViewUnknownKindDropped(t *testing.T) {
	st := emptyState("")
	addActor(st, alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	p := addPost(st, uri, alice, "x")
	p.Embed = &model.Embed{Kind: "hologram"}

	got := newComposer().PostViews(st, []string{uri})
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Embed)
}

func TestPostViewViewerOverlay(t *testing.T) {
	st := emptyState(bob)
	addActor(st, alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	addPost(st, uri, alice, "x")
	st.ViewerEdges[uri] = &model.ViewerEdges{LikeURI: "at://did:plc:bob/app.bsky.feed.like/1"}

	got := newComposer().PostViews(st, []string{uri})
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Viewer.Like)
	assert.Equal(t, "at://did:plc:bob/app.bsky.feed.like/1", *got[0].Viewer.Like)
	require.NotNil(t, got[0].Viewer.Bookmarked)
	assert.False(t, *got[0].Viewer.Bookmarked)
}

func TestPostViewBlockedAuthorExcluded(t *testing.T) {
	st := emptyState(bob)
	addActor(st, alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	addPost(st, uri, alice, "x")
	st.Relationships[alice] = &model.Relationship{DID: alice, BlockedBy: true}

	assert.Empty(t, newComposer().PostViews(st, []string{uri}))
}

func TestPostViewLabels(t *testing.T) {
	st := emptyState("")
	addActor(st, alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	addPost(st, uri, alice, "x")
	st.Labels[uri] = []model.Label{{Subject: uri, Src: "did:plc:mod", Val: "spam", CreatedAt: testTime}}

	got := newComposer().PostViews(st, []string{uri})
	require.Len(t, got, 1)
	require.Len(t, got[0].Labels, 1)
	assert.Equal(t, "spam", got[0].Labels[0].Val)
	assert.Equal(t, uri, got[0].Labels[0].URI)
}

func TestPostViewsRenderByteIdentical(t *testing.T) {
	st := emptyState(bob)
	addActor(st, alice, "alice.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	p := addPost(st, uri, alice, "stable")
	p.Embed = &model.Embed{Kind: model.EmbedImages, Images: []model.ImageRef{
		{Blob: model.BlobRef{CID: "bafyimg", MimeType: "image/png"}, Alt: "a"},
		{Blob: model.BlobRef{CID: "bafyimg2", MimeType: "image/jpeg"}, Alt: "b"},
	}}
	st.Aggregations[uri] = &model.Aggregation{URI: uri, LikeCount: 2, ReplyCount: 1}
	st.ViewerEdges[uri] = &model.ViewerEdges{LikeURI: "at://did:plc:bob/app.bsky.feed.like/1"}
	st.Labels[uri] = []model.Label{
		{Subject: uri, Src: "did:plc:mod", Val: "spam", CreatedAt: testTime},
		{Subject: uri, Src: "did:plc:mod2", Val: "rude", CreatedAt: testTime.Add(time.Second)},
	}
	st.Relationships[alice] = &model.Relationship{DID: alice, FollowingURI: "at://did:plc:bob/app.bsky.graph.follow/1"}

	c := newComposer()
	first, err := json.Marshal(c.PostViews(st, []string{uri}))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(c.PostViews(st, []string{uri}))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again), "identical state must render identical bytes")
	}
}

func TestProfileViewsStatsDefaultZero(t *testing.T) {
	st := emptyState("")
	a := addActor(st, alice, "alice.test")
	a.AvatarBlob = &model.BlobRef{CID: "bafyavatar"}

	got := newComposer().ProfileViews(st, []string{alice, bob})
	require.Len(t, got, 1, "unknown actor excluded")
	assert.EqualValues(t, 0, got[0].FollowersCount)
	assert.Equal(t, "https://cdn.test/avatar/plain/did:plc:alice/bafyavatar@jpeg", got[0].Avatar)
}

func TestProfileViewsKnownFollowers(t *testing.T) {
	st := emptyState(bob)
	addActor(st, alice, "alice.test")
	addActor(st, "did:plc:carol", "carol.test")
	st.KnownFollowers[alice] = &model.KnownFollowers{Count: 12, DIDs: []string{"did:plc:carol", "did:plc:ghost"}}

	got := newComposer().ProfileViews(st, []string{alice})
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Viewer.KnownFollowers)
	assert.EqualValues(t, 12, got[0].Viewer.KnownFollowers.Count)
	require.Len(t, got[0].Viewer.KnownFollowers.Followers, 1, "unloadable sample entries dropped")
	assert.Equal(t, "carol.test", got[0].Viewer.KnownFollowers.Followers[0].Handle)
}

func TestFeedEntriesRepostReason(t *testing.T) {
	st := emptyState("")
	addActor(st, alice, "alice.test")
	addActor(st, "did:plc:carol", "carol.test")
	uri := "at://did:plc:alice/app.bsky.feed.post/0001"
	addPost(st, uri, alice, "x")

	items := []model.FeedItem{
		{PostURI: uri, SortAt: testTime},
		{PostURI: uri, RepostURI: "at://did:plc:carol/app.bsky.feed.repost/1", RepostedByDID: "did:plc:carol", SortAt: testTime.Add(time.Minute)},
		{PostURI: uri, RepostURI: "at://x/repost/2", RepostedByDID: "did:plc:ghost", SortAt: testTime},
	}
	got := newComposer().FeedEntries(st, items)
	require.Len(t, got, 2, "repost with unloadable reposter dropped")

	assert.Nil(t, got[0].Reason)
	require.NotNil(t, got[1].Reason)
	assert.Equal(t, model.ReasonRepostType, got[1].Reason.Type)
	assert.Equal(t, "carol.test", got[1].Reason.By.Handle)
}
