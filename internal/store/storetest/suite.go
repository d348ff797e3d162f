// Package storetest exercises a store.Store implementation against the
// batched-lookup contract: map results keyed by requested identifier,
// missing rows omitted, one statement per dataset.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/store"
)

// Seeder loads fixture rows into the implementation under test.
type Seeder interface {
	SeedActor(t *testing.T, a *model.Actor)
	SeedPost(t *testing.T, p *model.Post)
	SeedAggregation(t *testing.T, g *model.Aggregation)
	SeedLabel(t *testing.T, l *model.Label)
	SeedFollow(t *testing.T, uri, creator, subject string)
	SeedLike(t *testing.T, uri, creator, subject string)
	SeedList(t *testing.T, l *model.List, memberDIDs []string)
	SeedListMute(t *testing.T, viewer, listURI string)
	SeedFeedItem(t *testing.T, item model.FeedItem)
}

// Run executes the compliance suite. makeStore must return a clean store and
// a seeder sharing the same backing database.
func Run(t *testing.T, makeStore func(t *testing.T) (store.Store, Seeder)) {
	t.Helper()
	ctx := context.Background()

	s, seed := makeStore(t)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	alice := &model.Actor{DID: "did:plc:alice", Handle: "alice.test", CreatedAt: now, IndexedAt: now}
	bob := &model.Actor{DID: "did:plc:bob", Handle: "bob.test", CreatedAt: now, IndexedAt: now}
	seed.SeedActor(t, alice)
	seed.SeedActor(t, bob)

	post1 := &model.Post{
		URI: "at://did:plc:alice/app.bsky.feed.post/1", CID: "cid1",
		AuthorDID: alice.DID, Text: "hello", CreatedAt: now, IndexedAt: now,
	}
	post2 := &model.Post{
		URI: "at://did:plc:bob/app.bsky.feed.post/2", CID: "cid2",
		AuthorDID: bob.DID, Text: "reply", CreatedAt: now.Add(time.Minute), IndexedAt: now.Add(time.Minute),
		ReplyParentURI: post1.URI, ReplyRootURI: post1.URI,
	}
	seed.SeedPost(t, post1)
	seed.SeedPost(t, post2)

	t.Run("PostsBatch", func(t *testing.T) {
		got, err := s.Posts().GetByURIs(ctx, []string{post1.URI, post2.URI, "at://missing"})
		if err != nil {
			t.Fatalf("GetByURIs: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("want 2 posts, got %d", len(got))
		}
		if _, ok := got["at://missing"]; ok {
			t.Fatalf("missing uri must be omitted, not present")
		}
		if got[post2.URI].ReplyRootURI != post1.URI {
			t.Fatalf("reply root not round-tripped: %q", got[post2.URI].ReplyRootURI)
		}
	})

	t.Run("ThreadDescendantsMatchByRoot", func(t *testing.T) {
		post3 := &model.Post{
			URI: "at://did:plc:alice/app.bsky.feed.post/3", CID: "cid3",
			AuthorDID: alice.DID, Text: "nested reply", CreatedAt: now.Add(2 * time.Minute), IndexedAt: now.Add(2 * time.Minute),
			ReplyParentURI: post2.URI, ReplyRootURI: post1.URI,
		}
		seed.SeedPost(t, post3)

		got, err := s.Feeds().ThreadDescendants(ctx, post1.URI, 10)
		if err != nil {
			t.Fatalf("ThreadDescendants: %v", err)
		}
		if len(got) != 2 || got[0] != post2.URI || got[1] != post3.URI {
			t.Fatalf("want both thread replies oldest-first, got %v", got)
		}

		// Rows are keyed by thread root; a mid-thread uri matches nothing.
		mid, err := s.Feeds().ThreadDescendants(ctx, post2.URI, 10)
		if err != nil {
			t.Fatalf("ThreadDescendants: %v", err)
		}
		if len(mid) != 0 {
			t.Fatalf("mid-thread uri is not a root, want no rows, got %v", mid)
		}
	})

	t.Run("ActorsBatchAndHandle", func(t *testing.T) {
		got, err := s.Actors().GetByDIDs(ctx, []string{alice.DID, "did:plc:ghost"})
		if err != nil {
			t.Fatalf("GetByDIDs: %v", err)
		}
		if len(got) != 1 || got[alice.DID].Handle != "alice.test" {
			t.Fatalf("unexpected actors: %+v", got)
		}

		byHandle, err := s.Actors().GetByHandle(ctx, "bob.test")
		if err != nil || byHandle.DID != bob.DID {
			t.Fatalf("GetByHandle: got=%v err=%v", byHandle, err)
		}
		if _, err := s.Actors().GetByHandle(ctx, "nobody.test"); err != model.ErrNotFound {
			t.Fatalf("want ErrNotFound for unknown handle, got %v", err)
		}
	})

	t.Run("AggregationsOmitMissing", func(t *testing.T) {
		seed.SeedAggregation(t, &model.Aggregation{URI: post1.URI, LikeCount: 3, ReplyCount: 1})
		got, err := s.Aggregations().GetByURIs(ctx, []string{post1.URI, post2.URI})
		if err != nil {
			t.Fatalf("Aggregations: %v", err)
		}
		if got[post1.URI].LikeCount != 3 {
			t.Fatalf("like count: %+v", got[post1.URI])
		}
		if _, ok := got[post2.URI]; ok {
			t.Fatalf("uncounted post must be omitted from the map")
		}
	})

	t.Run("LabelNegation", func(t *testing.T) {
		seed.SeedLabel(t, &model.Label{Subject: post1.URI, Src: "did:plc:labeler", Val: "spam", CreatedAt: now})
		seed.SeedLabel(t, &model.Label{Subject: post1.URI, Src: "did:plc:labeler", Val: "spam", Neg: true, CreatedAt: now.Add(time.Second)})
		seed.SeedLabel(t, &model.Label{Subject: post1.URI, Src: "did:plc:labeler", Val: "rude", CreatedAt: now})

		got, err := s.Labels().ActiveForSubjects(ctx, []string{post1.URI})
		if err != nil {
			t.Fatalf("labels: %v", err)
		}
		if len(got[post1.URI]) != 1 || got[post1.URI][0].Val != "rude" {
			t.Fatalf("negation not applied: %+v", got[post1.URI])
		}
	})

	t.Run("RelationshipsAndViewerEdges", func(t *testing.T) {
		seed.SeedFollow(t, "at://did:plc:alice/app.bsky.graph.follow/1", alice.DID, bob.DID)
		seed.SeedLike(t, "at://did:plc:alice/app.bsky.feed.like/1", alice.DID, post2.URI)

		rels, err := s.Graph().Relationships(ctx, alice.DID, []string{bob.DID})
		if err != nil {
			t.Fatalf("relationships: %v", err)
		}
		if rels[bob.DID] == nil || rels[bob.DID].FollowingURI == "" {
			t.Fatalf("expected following edge: %+v", rels[bob.DID])
		}

		edges, err := s.Graph().ViewerEdges(ctx, alice.DID, []string{post1.URI, post2.URI})
		if err != nil {
			t.Fatalf("viewer edges: %v", err)
		}
		if edges[post2.URI].LikeURI == "" {
			t.Fatalf("expected like uri on post2: %+v", edges[post2.URI])
		}
		if edges[post1.URI].LikeURI != "" {
			t.Fatalf("no like expected on post1")
		}
	})

	t.Run("ListMuteMembership", func(t *testing.T) {
		list := &model.List{
			URI: "at://did:plc:alice/app.bsky.graph.list/1", CID: "lcid",
			OwnerDID: alice.DID, Name: "annoying", Purpose: "app.bsky.graph.defs#modlist",
			IndexedAt: now,
		}
		seed.SeedList(t, list, []string{bob.DID})
		seed.SeedListMute(t, alice.DID, list.URI)

		muted, err := s.Graph().ListMutes(ctx, alice.DID)
		if err != nil || len(muted) != 1 || muted[0] != list.URI {
			t.Fatalf("list mutes: %v %v", muted, err)
		}
		members, err := s.Graph().ListMemberships(ctx, muted, []string{bob.DID, alice.DID})
		if err != nil {
			t.Fatalf("memberships: %v", err)
		}
		if len(members[bob.DID]) != 1 {
			t.Fatalf("bob should be member of the muted list: %+v", members)
		}
		if _, ok := members[alice.DID]; ok {
			t.Fatalf("alice is not a member")
		}
	})

	t.Run("FeedSliceOrderAndBefore", func(t *testing.T) {
		seed.SeedFeedItem(t, model.FeedItem{PostURI: post1.URI, RepostedByDID: alice.DID, SortAt: now})
		seed.SeedFeedItem(t, model.FeedItem{PostURI: post2.URI, RepostedByDID: bob.DID, SortAt: now.Add(time.Minute)})

		items, err := s.Feeds().Timeline(ctx, alice.DID, 10, time.Time{})
		if err != nil {
			t.Fatalf("timeline: %v", err)
		}
		if len(items) != 2 || !items[0].SortAt.After(items[1].SortAt) {
			t.Fatalf("timeline not reverse-chronological: %+v", items)
		}

		older, err := s.Feeds().Timeline(ctx, alice.DID, 10, now.Add(30*time.Second))
		if err != nil || len(older) != 1 || older[0].PostURI != post1.URI {
			t.Fatalf("before filter: %+v err=%v", older, err)
		}
	})

	t.Run("PrefsRoundTrip", func(t *testing.T) {
		in := &model.Preferences{DID: alice.DID, Items: []model.PreferenceEntry{
			{Type: "app.bsky.actor.defs#adultContentPref"},
		}}
		if err := s.Prefs().Put(ctx, in); err != nil {
			t.Fatalf("put prefs: %v", err)
		}
		got, err := s.Prefs().Get(ctx, alice.DID)
		if err != nil || len(got.Items) != 1 {
			t.Fatalf("get prefs: %+v err=%v", got, err)
		}

		empty, err := s.Prefs().Get(ctx, "did:plc:ghost")
		if err != nil || len(empty.Items) != 0 {
			t.Fatalf("unset prefs should be empty, got %+v err=%v", empty, err)
		}
	})
}
