package hydration

import "github.com/halcyon-social/halcyon/appview/internal/model"

// Overlay accessors. Each returns the viewer-relative state for one entity;
// with no authenticated viewer the result is the neutral shape with every
// field omitted, so anonymous and authenticated responses stay structurally
// identical.

// PostViewerState returns the viewer state for one post URI.
func (s *State) PostViewerState(uri string) model.ViewerState {
	if !s.Authenticated() {
		return model.ViewerState{}
	}

	out := model.ViewerState{
		Bookmarked:  boolPtr(false),
		ThreadMuted: boolPtr(false),
	}
	if e, ok := s.ViewerEdges[uri]; ok {
		if e.LikeURI != "" {
			out.Like = strPtr(e.LikeURI)
		}
		if e.RepostURI != "" {
			out.Repost = strPtr(e.RepostURI)
		}
		out.Bookmarked = boolPtr(e.Bookmarked)
		out.ThreadMuted = boolPtr(e.ThreadMuted)
	}
	return out
}

// ActorViewerState returns the viewer state for one actor DID, folding
// direct edges and list-inherited mute/block together. An actor is muted
// when the viewer mutes it directly or mutes any list it belongs to.
func (s *State) ActorViewerState(did string) model.ActorViewerState {
	if !s.Authenticated() {
		return model.ActorViewerState{}
	}

	out := model.ActorViewerState{
		Muted:     boolPtr(false),
		BlockedBy: boolPtr(false),
	}

	if rel, ok := s.Relationships[did]; ok {
		if rel.Muted {
			out.Muted = boolPtr(true)
		}
		out.BlockedBy = boolPtr(rel.BlockedBy)
		if rel.BlockingURI != "" {
			out.Blocking = strPtr(rel.BlockingURI)
		}
		if rel.FollowingURI != "" {
			out.Following = strPtr(rel.FollowingURI)
		}
		if rel.FollowedByURI != "" {
			out.FollowedBy = strPtr(rel.FollowedByURI)
		}
	}

	if list, ok := s.MutedByList[did]; ok {
		out.Muted = boolPtr(true)
		out.MutedByList = listRef(list)
	}
	if list, ok := s.BlockedByList[did]; ok {
		out.BlockingByList = listRef(list)
	}

	return out
}

// BlocksViewing reports whether content authored by did must be withheld
// from the viewer entirely: a block in either direction, including blocks
// inherited through a list.
func (s *State) BlocksViewing(did string) bool {
	if !s.Authenticated() {
		return false
	}
	if rel, ok := s.Relationships[did]; ok {
		if rel.BlockedBy || rel.BlockingURI != "" {
			return true
		}
	}
	_, blockedByList := s.BlockedByList[did]
	return blockedByList
}

func listRef(l *model.List) *model.ListRef {
	return &model.ListRef{URI: l.URI, CID: l.CID, Name: l.Name}
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
