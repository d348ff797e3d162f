// Package identity resolves actor references (handles or DIDs) to stable
// DIDs, with a TTL cache and a network fallback for handles the local index
// has not seen yet.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/halcyon-social/halcyon/appview/internal/cache"
	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/store"
)

// Resolver resolves actorRef strings. DID-shaped refs pass through without
// an existence check; downstream lookups fail independently.
type Resolver struct {
	actors store.Actors
	cache  *cache.TTL[string]
	client *resty.Client
	log    zerolog.Logger
}

// NewResolver constructs a resolver. resolverURL names the XRPC host used
// as the network fallback when the local index misses.
func NewResolver(actors store.Actors, handleCache *cache.TTL[string], resolverURL string, log zerolog.Logger) *Resolver {
	c := resty.New().
		SetBaseURL(resolverURL).
		SetTimeout(10 * time.Second)

	return &Resolver{actors: actors, cache: handleCache, client: c, log: log}
}

// IsDID reports whether ref is already a stable identifier.
func IsDID(ref string) bool { return strings.HasPrefix(ref, "did:") }

// Resolve maps an actor reference to a DID. Returns model.ErrNotFound when
// the handle resolves nowhere; the caller surfaces that as a 404-equivalent.
func (r *Resolver) Resolve(ctx context.Context, actorRef string) (string, error) {
	if IsDID(actorRef) {
		return actorRef, nil
	}

	handle := strings.ToLower(strings.TrimPrefix(actorRef, "@"))
	if handle == "" {
		return "", model.ErrNotFound
	}

	if did, ok := r.cache.Get(handle); ok {
		return did, nil
	}

	did, err := r.lookup(ctx, handle)
	if err != nil {
		return "", err
	}
	r.cache.Set(handle, did)
	return did, nil
}

func (r *Resolver) lookup(ctx context.Context, handle string) (string, error) {
	actor, err := r.actors.GetByHandle(ctx, handle)
	if err == nil {
		return actor.DID, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return "", fmt.Errorf("resolve handle %q: %w", handle, err)
	}

	// Local miss: fall back to network identity resolution. Failure here
	// means the handle genuinely resolves nowhere we can see.
	did, netErr := r.resolveRemote(ctx, handle)
	if netErr != nil {
		r.log.Debug().Str("handle", handle).Err(netErr).Msg("network handle resolution failed")
		return "", model.ErrNotFound
	}
	return did, nil
}

type resolveHandleResponse struct {
	DID string `json:"did"`
}

func (r *Resolver) resolveRemote(ctx context.Context, handle string) (string, error) {
	var out resolveHandleResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("handle", handle).
		SetResult(&out).
		Get("/xrpc/com.atproto.identity.resolveHandle")
	if err != nil {
		return "", fmt.Errorf("resolveHandle request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("resolveHandle status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.DID == "" {
		return "", fmt.Errorf("resolveHandle returned empty did")
	}
	return out.DID, nil
}
