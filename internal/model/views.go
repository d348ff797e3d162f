package model

import "strings"

// View types are the protocol-shaped output object graph. Each kind is a
// closed struct so composition cannot emit structurally inconsistent output.

// InvalidHandle is the sentinel ingestion writes when an actor's handle no
// longer verifies against its identity document.
const InvalidHandle = "handle.invalid"

// HandleIsUsable reports whether a handle may be rendered as an author
// handle: non-empty, not the invalid sentinel, and not DID-shaped.
func HandleIsUsable(handle string) bool {
	if handle == "" || handle == InvalidHandle {
		return false
	}
	return !strings.HasPrefix(handle, "did:")
}

// StrongRef is a (uri, cid) pair naming an exact version of a record. The
// CID always comes from a record actually held in the batch, never derived.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// ReplyRefs carries the strong references of a reply's thread anchors.
type ReplyRefs struct {
	Root   StrongRef `json:"root"`
	Parent StrongRef `json:"parent"`
}

// PostRecordView is the rendered record body of a post.
type PostRecordView struct {
	Type      string     `json:"$type"`
	Text      string     `json:"text"`
	Langs     []string   `json:"langs,omitempty"`
	Reply     *ReplyRefs `json:"reply,omitempty"`
	CreatedAt string     `json:"createdAt"`
}

// PostView is the fully hydrated view of a single post.
type PostView struct {
	URI           string           `json:"uri"`
	CID           string           `json:"cid"`
	Author        ProfileViewBasic `json:"author"`
	Record        PostRecordView   `json:"record"`
	Embed         *EmbedView       `json:"embed,omitempty"`
	ReplyCount    int64            `json:"replyCount"`
	RepostCount   int64            `json:"repostCount"`
	LikeCount     int64            `json:"likeCount"`
	QuoteCount    int64            `json:"quoteCount"`
	BookmarkCount int64            `json:"bookmarkCount"`
	IndexedAt     string           `json:"indexedAt"`
	Viewer        ViewerState      `json:"viewer"`
	Labels        []LabelView      `json:"labels"`
}

// ViewerState is the viewer-relative state on a post. Every field is
// omitted when no viewer is authenticated, so the object renders as {}.
type ViewerState struct {
	Like        *string `json:"like,omitempty"`
	Repost      *string `json:"repost,omitempty"`
	Bookmarked  *bool   `json:"bookmarked,omitempty"`
	ThreadMuted *bool   `json:"threadMuted,omitempty"`
}

// EmbedView is the rendered form of a post embed, blob references already
// rewritten to delivery URLs. Exactly one payload field is set, matching
// the $type discriminator.
type EmbedView struct {
	Type     string           `json:"$type"`
	Images   []ImageView      `json:"images,omitempty"`
	External *ExternalView    `json:"external,omitempty"`
	Record   *RecordEmbedView `json:"record,omitempty"`
}

const (
	EmbedViewImages   = "app.bsky.embed.images#view"
	EmbedViewExternal = "app.bsky.embed.external#view"
	EmbedViewRecord   = "app.bsky.embed.record#view"
)

type ImageView struct {
	Thumb    string `json:"thumb"`
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt,omitempty"`
}

type ExternalView struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumb       string `json:"thumb,omitempty"`
}

type RecordEmbedView struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// LabelView is a currently-active (non-negated) label on a subject.
type LabelView struct {
	Src string `json:"src"`
	URI string `json:"uri"`
	Val string `json:"val"`
	Cts string `json:"cts"`
}

// ListRef names a list through which an indirect mute/block applies.
type ListRef struct {
	URI  string `json:"uri"`
	CID  string `json:"cid"`
	Name string `json:"name"`
}

// ActorViewerState is the viewer-relative state on an actor.
type ActorViewerState struct {
	Muted          *bool               `json:"muted,omitempty"`
	MutedByList    *ListRef            `json:"mutedByList,omitempty"`
	BlockedBy      *bool               `json:"blockedBy,omitempty"`
	Blocking       *string             `json:"blocking,omitempty"`
	BlockingByList *ListRef            `json:"blockingByList,omitempty"`
	Following      *string             `json:"following,omitempty"`
	FollowedBy     *string             `json:"followedBy,omitempty"`
	KnownFollowers *KnownFollowersView `json:"knownFollowers,omitempty"`
}

// KnownFollowersView renders a sample of followers the viewer also follows.
type KnownFollowersView struct {
	Count     int64              `json:"count"`
	Followers []ProfileViewBasic `json:"followers"`
}

// ProfileViewBasic is the compact actor view embedded in posts and feeds.
type ProfileViewBasic struct {
	DID         string           `json:"did"`
	Handle      string           `json:"handle"`
	DisplayName *string          `json:"displayName,omitempty"`
	Avatar      string           `json:"avatar,omitempty"`
	Viewer      ActorViewerState `json:"viewer"`
	Labels      []LabelView      `json:"labels"`
	CreatedAt   string           `json:"createdAt,omitempty"`
}

// ProfileView is the detailed actor view served by actor endpoints.
type ProfileView struct {
	DID            string           `json:"did"`
	Handle         string           `json:"handle"`
	DisplayName    *string          `json:"displayName,omitempty"`
	Description    *string          `json:"description,omitempty"`
	Avatar         string           `json:"avatar,omitempty"`
	Banner         string           `json:"banner,omitempty"`
	FollowersCount int64            `json:"followersCount"`
	FollowsCount   int64            `json:"followsCount"`
	PostsCount     int64            `json:"postsCount"`
	Viewer         ActorViewerState `json:"viewer"`
	Labels         []LabelView      `json:"labels"`
	CreatedAt      string           `json:"createdAt,omitempty"`
	IndexedAt      string           `json:"indexedAt,omitempty"`
}

// ReasonRepost explains why a post appears in a feed out of author order.
type ReasonRepost struct {
	Type      string           `json:"$type"`
	By        ProfileViewBasic `json:"by"`
	IndexedAt string           `json:"indexedAt"`
}

const ReasonRepostType = "app.bsky.feed.defs#reasonRepost"

// FeedEntry is one hydrated feed element: a post plus the optional reason
// it surfaced.
type FeedEntry struct {
	Post   PostView      `json:"post"`
	Reason *ReasonRepost `json:"reason,omitempty"`
}

// ThreadView is the recursive thread structure around an anchor post.
// Parent chains toward the root; Replies fan out below.
type ThreadView struct {
	Post    PostView      `json:"post"`
	Parent  *ThreadView   `json:"parent,omitempty"`
	Replies []*ThreadView `json:"replies,omitempty"`
}
