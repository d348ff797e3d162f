// Package api exposes the read-side XRPC surface over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/halcyon-social/halcyon/appview/internal/api/respond"
	"github.com/halcyon-social/halcyon/appview/internal/api/validate"
	"github.com/halcyon-social/halcyon/appview/internal/auth"
	"github.com/halcyon-social/halcyon/appview/internal/identity"
	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/services"
)

const maxThreadDepth = 100

// Handler serves the XRPC query endpoints.
type Handler struct {
	feeds      *services.FeedService
	actors     *services.ActorService
	identity   *identity.Resolver
	authorizer auth.Authorizer
	log        zerolog.Logger
}

// NewHandler wires the service layer to the transport.
func NewHandler(feeds *services.FeedService, actors *services.ActorService, id *identity.Resolver, authorizer auth.Authorizer, log zerolog.Logger) *Handler {
	return &Handler{feeds: feeds, actors: actors, identity: id, authorizer: authorizer, log: log}
}

// viewerDID resolves the request's viewer. No credential means an anonymous
// read; a present but invalid credential is rejected.
func (h *Handler) viewerDID(r *http.Request) (string, error) {
	token, err := auth.ExtractBearer(r)
	if errors.Is(err, auth.ErrMissingToken) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	info, err := h.authorizer.Authorize(r.Context(), token)
	if err != nil {
		return "", err
	}
	return info.DID, nil
}

type feedResponse struct {
	Feed   []model.FeedEntry `json:"feed"`
	Cursor string            `json:"cursor,omitempty"`
}

// GetTimeline handles GET /xrpc/app.bsky.feed.getTimeline.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerDID(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return
	}
	if viewer == "" {
		respond.WriteUnauthorized(w, "timeline requires authentication")
		return
	}
	limit, err := validate.Limit(r.URL.Query().Get("limit"), 0, services.MaxPageSize)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	feed, cursor, err := h.feeds.GetTimeline(r.Context(), viewer, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, feedResponse{Feed: feed, Cursor: cursor})
}

// GetAuthorFeed handles GET /xrpc/app.bsky.feed.getAuthorFeed.
func (h *Handler) GetAuthorFeed(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerDID(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return
	}
	actorRef := r.URL.Query().Get("actor")
	if err := validate.ActorRef("actor", actorRef); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := validate.Limit(r.URL.Query().Get("limit"), 0, services.MaxPageSize)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	did, err := h.identity.Resolve(r.Context(), actorRef)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	feed, cursor, err := h.feeds.GetAuthorFeed(r.Context(), did, viewer, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, feedResponse{Feed: feed, Cursor: cursor})
}

// GetPostThread handles GET /xrpc/app.bsky.feed.getPostThread.
func (h *Handler) GetPostThread(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerDID(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return
	}
	uri := r.URL.Query().Get("uri")
	if err := validate.AtURI("uri", uri); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	depth, err := validate.Depth(r.URL.Query().Get("depth"), services.DefaultThreadDepth, maxThreadDepth)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	thread, err := h.feeds.GetPostThread(r.Context(), uri, viewer, depth)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]*model.ThreadView{"thread": thread})
}

// GetPosts handles GET /xrpc/app.bsky.feed.getPosts.
func (h *Handler) GetPosts(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerDID(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return
	}
	uris := r.URL.Query()["uris"]
	for _, uri := range uris {
		if err := validate.AtURI("uris", uri); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
	}

	posts, err := h.feeds.ComposePostViews(r.Context(), uris, viewer)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if posts == nil {
		posts = []model.PostView{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string][]model.PostView{"posts": posts})
}

// GetFeed handles GET /xrpc/app.bsky.feed.getFeed.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerDID(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return
	}
	feedURI := r.URL.Query().Get("feed")
	if err := validate.AtURI("feed", feedURI); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := validate.Limit(r.URL.Query().Get("limit"), 0, services.MaxPageSize)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	feed, cursor, err := h.feeds.GetFeed(r.Context(), feedURI, viewer, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, feedResponse{Feed: feed, Cursor: cursor})
}

// GetProfile handles GET /xrpc/app.bsky.actor.getProfile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerDID(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return
	}
	actorRef := r.URL.Query().Get("actor")
	if err := validate.ActorRef("actor", actorRef); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	profile, err := h.actors.GetProfile(r.Context(), actorRef, viewer)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, profile)
}

// GetProfiles handles GET /xrpc/app.bsky.actor.getProfiles.
func (h *Handler) GetProfiles(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerDID(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return
	}
	refs := r.URL.Query()["actors"]
	for _, ref := range refs {
		if err := validate.ActorRef("actors", ref); err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
	}

	profiles, err := h.actors.ComposeProfileViews(r.Context(), refs, viewer)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if profiles == nil {
		profiles = []model.ProfileView{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string][]model.ProfileView{"profiles": profiles})
}

type preferencesBody struct {
	Preferences []model.PreferenceEntry `json:"preferences"`
}

// GetPreferences handles GET /xrpc/app.bsky.actor.getPreferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerDID(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return
	}
	if viewer == "" {
		respond.WriteUnauthorized(w, "preferences require authentication")
		return
	}

	prefs, err := h.actors.GetPreferences(r.Context(), viewer)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	items := prefs.Items
	if items == nil {
		items = []model.PreferenceEntry{}
	}
	respond.WriteJSON(w, http.StatusOK, preferencesBody{Preferences: items})
}

// PutPreferences handles POST /xrpc/app.bsky.actor.putPreferences.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerDID(r)
	if err != nil {
		respond.WriteUnauthorized(w, err.Error())
		return
	}
	if viewer == "" {
		respond.WriteUnauthorized(w, "preferences require authentication")
		return
	}

	var body preferencesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}

	if err := h.actors.PutPreferences(r.Context(), viewer, body.Preferences); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, struct{}{})
}
