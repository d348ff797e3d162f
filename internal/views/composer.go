// Package views renders hydrated state into protocol-shaped output. The
// composer is pure: it reads State, never touches storage, and drops what
// it cannot render instead of failing the batch.
package views

import (
	"time"

	"github.com/halcyon-social/halcyon/appview/internal/blob"
	"github.com/halcyon-social/halcyon/appview/internal/hydration"
	"github.com/halcyon-social/halcyon/appview/internal/model"
)

const postRecordType = "app.bsky.feed.post"

// Composer turns hydration state into view objects.
type Composer struct {
	blobs *blob.Resolver
}

// NewComposer creates a Composer using blobs for media URL rewriting.
func NewComposer(blobs *blob.Resolver) *Composer {
	return &Composer{blobs: blobs}
}

// PostViews renders post views for uris in input order. A post is excluded,
// not errored, when the post body or a renderable author is absent, or when
// a block in either direction stands between viewer and author.
func (c *Composer) PostViews(state *hydration.State, uris []string) []model.PostView {
	out := make([]model.PostView, 0, len(uris))
	for _, uri := range uris {
		if v, ok := c.postView(state, uri); ok {
			out = append(out, v)
		}
	}
	return out
}

func (c *Composer) postView(state *hydration.State, uri string) (model.PostView, bool) {
	post, ok := state.Posts[uri]
	if !ok {
		return model.PostView{}, false
	}
	author, ok := c.profileBasic(state, post.AuthorDID)
	if !ok {
		return model.PostView{}, false
	}
	if state.BlocksViewing(post.AuthorDID) {
		return model.PostView{}, false
	}

	view := model.PostView{
		URI:       post.URI,
		CID:       post.CID,
		Author:    author,
		Record:    c.recordView(state, post),
		Embed:     c.embedView(post.AuthorDID, post.Embed),
		IndexedAt: formatTime(post.IndexedAt),
		Viewer:    state.PostViewerState(uri),
		Labels:    labelViews(state.Labels[uri]),
	}
	if agg, ok := state.Aggregations[uri]; ok {
		view.LikeCount = agg.LikeCount
		view.RepostCount = agg.RepostCount
		view.ReplyCount = agg.ReplyCount
		view.QuoteCount = agg.QuoteCount
		view.BookmarkCount = agg.BookmarkCount
	}
	return view, true
}

// recordView renders the post body. Reply refs are attached only when both
// anchor records are in the batch; their CIDs come from the records
// themselves, never reconstructed.
func (c *Composer) recordView(state *hydration.State, post *model.Post) model.PostRecordView {
	rec := model.PostRecordView{
		Type:      postRecordType,
		Text:      post.Text,
		Langs:     post.Langs,
		CreatedAt: formatTime(post.CreatedAt),
	}
	if post.IsReply() {
		parent, pok := state.Posts[post.ReplyParentURI]
		root, rok := state.Posts[post.ReplyRootURI]
		if pok && rok {
			rec.Reply = &model.ReplyRefs{
				Root:   model.StrongRef{URI: root.URI, CID: root.CID},
				Parent: model.StrongRef{URI: parent.URI, CID: parent.CID},
			}
		}
	}
	return rec
}

// embedView rewrites an embed for delivery. Unknown kinds and embeds left
// with no renderable payload are dropped.
func (c *Composer) embedView(authorDID string, e *model.Embed) *model.EmbedView {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case model.EmbedImages:
		imgs := make([]model.ImageView, 0, len(e.Images))
		for _, img := range e.Images {
			thumb := c.blobs.URL(authorDID, &img.Blob, blob.VariantThumbnail)
			full := c.blobs.URL(authorDID, &img.Blob, blob.VariantFullsize)
			if thumb == "" || full == "" {
				continue
			}
			imgs = append(imgs, model.ImageView{Thumb: thumb, Fullsize: full, Alt: img.Alt})
		}
		if len(imgs) == 0 {
			return nil
		}
		return &model.EmbedView{Type: model.EmbedViewImages, Images: imgs}
	case model.EmbedExternal:
		if e.External == nil {
			return nil
		}
		return &model.EmbedView{Type: model.EmbedViewExternal, External: &model.ExternalView{
			URI:         e.External.URI,
			Title:       e.External.Title,
			Description: e.External.Description,
			Thumb:       c.blobs.URL(authorDID, e.External.Thumb, blob.VariantThumbnail),
		}}
	case model.EmbedRecord:
		if e.Record == nil {
			return nil
		}
		return &model.EmbedView{Type: model.EmbedViewRecord, Record: &model.RecordEmbedView{
			URI: e.Record.URI,
			CID: e.Record.CID,
		}}
	default:
		return nil
	}
}

// profileBasic renders the compact author card. An actor without a usable
// handle is unrenderable and excludes whatever view embeds it.
func (c *Composer) profileBasic(state *hydration.State, did string) (model.ProfileViewBasic, bool) {
	actor, ok := state.Actors[did]
	if !ok || !model.HandleIsUsable(actor.Handle) {
		return model.ProfileViewBasic{}, false
	}
	return model.ProfileViewBasic{
		DID:         actor.DID,
		Handle:      actor.Handle,
		DisplayName: actor.DisplayName,
		Avatar:      c.blobs.URL(actor.DID, actor.AvatarBlob, blob.VariantAvatar),
		Viewer:      state.ActorViewerState(did),
		Labels:      labelViews(state.Labels[did]),
		CreatedAt:   formatTime(actor.CreatedAt),
	}, true
}

// ProfileViews renders detailed profiles for dids in input order, excluding
// actors that cannot render. Counts default to zero when stats are absent.
func (c *Composer) ProfileViews(state *hydration.State, dids []string) []model.ProfileView {
	out := make([]model.ProfileView, 0, len(dids))
	for _, did := range dids {
		actor, ok := state.Actors[did]
		if !ok || !model.HandleIsUsable(actor.Handle) {
			continue
		}
		view := model.ProfileView{
			DID:         actor.DID,
			Handle:      actor.Handle,
			DisplayName: actor.DisplayName,
			Description: actor.Description,
			Avatar:      c.blobs.URL(actor.DID, actor.AvatarBlob, blob.VariantAvatar),
			Banner:      c.blobs.URL(actor.DID, actor.BannerBlob, blob.VariantBanner),
			Viewer:      c.actorViewer(state, did),
			Labels:      labelViews(state.Labels[did]),
			CreatedAt:   formatTime(actor.CreatedAt),
			IndexedAt:   formatTime(actor.IndexedAt),
		}
		if stats, ok := state.ActorStats[did]; ok {
			view.FollowersCount = stats.FollowersCount
			view.FollowsCount = stats.FollowsCount
			view.PostsCount = stats.PostsCount
		}
		out = append(out, view)
	}
	return out
}

// actorViewer extends the overlay with the known-follower sample, rendered
// from profiles already in the batch.
func (c *Composer) actorViewer(state *hydration.State, did string) model.ActorViewerState {
	vs := state.ActorViewerState(did)
	kf, ok := state.KnownFollowers[did]
	if !ok || !state.Authenticated() {
		return vs
	}
	sample := make([]model.ProfileViewBasic, 0, len(kf.DIDs))
	for _, fdid := range kf.DIDs {
		if p, ok := c.profileBasic(state, fdid); ok {
			sample = append(sample, p)
		}
	}
	vs.KnownFollowers = &model.KnownFollowersView{Count: kf.Count, Followers: sample}
	return vs
}

// FeedEntries renders feed items in slice order. An item whose post cannot
// render is dropped; a repost whose reposter cannot render is dropped with
// it, since the entry would misattribute its own presence.
func (c *Composer) FeedEntries(state *hydration.State, items []model.FeedItem) []model.FeedEntry {
	out := make([]model.FeedEntry, 0, len(items))
	for _, item := range items {
		post, ok := c.postView(state, item.PostURI)
		if !ok {
			continue
		}
		entry := model.FeedEntry{Post: post}
		if item.IsRepost() {
			by, ok := c.profileBasic(state, item.RepostedByDID)
			if !ok || state.BlocksViewing(item.RepostedByDID) {
				continue
			}
			entry.Reason = &model.ReasonRepost{
				Type:      model.ReasonRepostType,
				By:        by,
				IndexedAt: formatTime(item.SortAt),
			}
		}
		out = append(out, entry)
	}
	return out
}

func labelViews(labels []model.Label) []model.LabelView {
	out := make([]model.LabelView, 0, len(labels))
	for _, l := range labels {
		out = append(out, model.LabelView{
			Src: l.Src,
			URI: l.Subject,
			Val: l.Val,
			Cts: formatTime(l.CreatedAt),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
