package hydration

import "github.com/halcyon-social/halcyon/appview/internal/model"

// State holds every dataset one request's composition depends on, each map
// keyed by the identifier it was requested under. Missing entries are
// omitted, never stored as nil, so composition can tell "not present" from
// "present but empty."
type State struct {
	// Viewer is the authenticated viewer DID, empty for anonymous reads.
	Viewer string

	Posts        map[string]*model.Post
	Actors       map[string]*model.Actor
	ActorStats   map[string]*model.ActorStats
	Aggregations map[string]*model.Aggregation
	Labels       map[string][]model.Label

	// Viewer-relative datasets. Empty maps for anonymous reads.
	ViewerEdges    map[string]*model.ViewerEdges
	Relationships  map[string]*model.Relationship
	KnownFollowers map[string]*model.KnownFollowers

	// Lists through which the viewer indirectly mutes or blocks an actor,
	// keyed by the target actor DID.
	MutedByList   map[string]*model.List
	BlockedByList map[string]*model.List
}

func newState(viewer string) *State {
	return &State{
		Viewer:         viewer,
		Posts:          make(map[string]*model.Post),
		Actors:         make(map[string]*model.Actor),
		ActorStats:     make(map[string]*model.ActorStats),
		Aggregations:   make(map[string]*model.Aggregation),
		Labels:         make(map[string][]model.Label),
		ViewerEdges:    make(map[string]*model.ViewerEdges),
		Relationships:  make(map[string]*model.Relationship),
		KnownFollowers: make(map[string]*model.KnownFollowers),
		MutedByList:    make(map[string]*model.List),
		BlockedByList:  make(map[string]*model.List),
	}
}

// Authenticated reports whether a viewer is attached to this state.
func (s *State) Authenticated() bool { return s.Viewer != "" }

// dedupe returns vals with duplicates and empty strings removed, order
// preserved. Same actor referenced by many posts must cost one lookup.
func dedupe(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
