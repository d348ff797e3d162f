package model

import "time"

// Post is a normalized feed post as indexed from the firehose. The engine
// treats it as read-only input; ingestion owns its lifecycle.
type Post struct {
	URI            string    `json:"uri"`
	CID            string    `json:"cid"`
	AuthorDID      string    `json:"authorDid"`
	Text           string    `json:"text"`
	Langs          []string  `json:"langs,omitempty"`
	Embed          *Embed    `json:"embed,omitempty"`
	ReplyParentURI string    `json:"replyParentUri,omitempty"`
	ReplyRootURI   string    `json:"replyRootUri,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	IndexedAt      time.Time `json:"indexedAt"`
}

// IsReply reports whether the post carries reply linkage. Both refs are set
// together by ingestion; a post with only one of the two is malformed.
func (p *Post) IsReply() bool {
	return p.ReplyParentURI != "" && p.ReplyRootURI != ""
}

// Embed is the stored representation of a post's embedded media. Kind is a
// closed discriminator; unknown kinds are dropped during composition rather
// than passed through.
type Embed struct {
	Kind     EmbedKind    `json:"kind"`
	Images   []ImageRef   `json:"images,omitempty"`
	External *ExternalRef `json:"external,omitempty"`
	Record   *RecordRef   `json:"record,omitempty"`
}

type EmbedKind string

const (
	EmbedImages   EmbedKind = "images"
	EmbedExternal EmbedKind = "external"
	EmbedRecord   EmbedKind = "record"
)

// ImageRef pairs a stored blob reference with its alt text.
type ImageRef struct {
	Blob BlobRef `json:"blob"`
	Alt  string  `json:"alt,omitempty"`
}

// ExternalRef is a link-card embed; the thumbnail blob is optional.
type ExternalRef struct {
	URI         string   `json:"uri"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Thumb       *BlobRef `json:"thumb,omitempty"`
}

// RecordRef is a quote-post style strong reference to another record.
type RecordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// BlobRef is a content-addressed pointer to binary media held outside the
// primary record store.
type BlobRef struct {
	CID      string `json:"cid"`
	MimeType string `json:"mimeType,omitempty"`
}

// Actor is an indexed account. Handle is mutable and may be temporarily
// invalid; an actor without a valid handle is never rendered as an author.
type Actor struct {
	DID         string    `json:"did"`
	Handle      string    `json:"handle"`
	DisplayName *string   `json:"displayName,omitempty"`
	Description *string   `json:"description,omitempty"`
	AvatarBlob  *BlobRef  `json:"avatarBlob,omitempty"`
	BannerBlob  *BlobRef  `json:"bannerBlob,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	IndexedAt   time.Time `json:"indexedAt"`
}

// ActorStats carries per-actor denormalized counts.
type ActorStats struct {
	DID            string `json:"did"`
	FollowersCount int64  `json:"followersCount"`
	FollowsCount   int64  `json:"followsCount"`
	PostsCount     int64  `json:"postsCount"`
	ListsCount     int64  `json:"listsCount"`
	FeedGensCount  int64  `json:"feedGensCount"`
}

// Aggregation holds per-post denormalized counters, eventually consistent
// with the underlying edge tables. One row per post URI; a missing row means
// the post has not been counted yet, not that counts are unknown.
type Aggregation struct {
	URI           string `json:"uri"`
	LikeCount     int64  `json:"likeCount"`
	RepostCount   int64  `json:"repostCount"`
	ReplyCount    int64  `json:"replyCount"`
	QuoteCount    int64  `json:"quoteCount"`
	BookmarkCount int64  `json:"bookmarkCount"`
}

// ViewerEdges is the viewer-relative interaction state for one post. Record
// URIs are empty when no such record exists.
type ViewerEdges struct {
	LikeURI     string `json:"likeUri,omitempty"`
	RepostURI   string `json:"repostUri,omitempty"`
	Bookmarked  bool   `json:"bookmarked"`
	ThreadMuted bool   `json:"threadMuted"`
}

// Label is a moderation label applied to a subject (an AT-URI or a DID).
// A negation entry retracts a prior label of the same (subject, src, val).
type Label struct {
	Subject   string    `json:"subject"`
	Src       string    `json:"src"`
	Val       string    `json:"val"`
	Neg       bool      `json:"neg,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// List is a curation or moderation list owned by an actor.
type List struct {
	URI       string    `json:"uri"`
	CID       string    `json:"cid"`
	OwnerDID  string    `json:"ownerDid"`
	Name      string    `json:"name"`
	Purpose   string    `json:"purpose"`
	IndexedAt time.Time `json:"indexedAt"`
}

// Relationship summarizes the (viewer, other) edge set. Read once per
// request batch and shared across every entity the other actor appears in.
type Relationship struct {
	DID           string `json:"did"`
	FollowingURI  string `json:"followingUri,omitempty"`
	FollowedByURI string `json:"followedByUri,omitempty"`
	BlockingURI   string `json:"blockingUri,omitempty"`
	BlockedBy     bool   `json:"blockedBy"`
	Muted         bool   `json:"muted"`
}

// KnownFollowers lists followers of an actor that the viewer also follows.
type KnownFollowers struct {
	Count int64    `json:"count"`
	DIDs  []string `json:"dids"`
}

// Preferences is a viewer's externally-stored preference set, kept opaque
// to the hydration engine beyond its container shape.
type Preferences struct {
	DID   string            `json:"did"`
	Items []PreferenceEntry `json:"preferences"`
}

// PreferenceEntry is a single preference union object, stored verbatim.
type PreferenceEntry struct {
	Type  string `json:"$type"`
	Value []byte `json:"value,omitempty"`
}

// FeedItem is one entry of a chronological feed slice as returned by the
// storage collaborator, before any re-ranking. SortAt drives pagination.
type FeedItem struct {
	PostURI       string    `json:"postUri"`
	RepostURI     string    `json:"repostUri,omitempty"`
	RepostedByDID string    `json:"repostedByDid,omitempty"`
	SortAt        time.Time `json:"sortAt"`
}

// IsRepost reports whether the item surfaced through a repost.
func (f *FeedItem) IsRepost() bool { return f.RepostURI != "" }
