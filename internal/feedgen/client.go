// Package feedgen talks to external feed generator services. A generator
// returns only a post-URI skeleton; hydration and composition stay local.
package feedgen

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/halcyon-social/halcyon/appview/internal/model"
)

// SkeletonItem is one entry of a generator's response.
type SkeletonItem struct {
	Post   string `json:"post"`
	Reason string `json:"reason,omitempty"`
}

// Skeleton is the generator's response: ordered post URIs plus an optional
// continuation cursor, both opaque to us.
type Skeleton struct {
	Feed   []SkeletonItem `json:"feed"`
	Cursor string         `json:"cursor,omitempty"`
}

// Client fetches feed skeletons over XRPC.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewClient builds a generator client rooted at the service's base URL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)
	return &Client{http: c, log: log}
}

// GetFeedSkeleton asks the generator for a page of feed. Any transport or
// non-200 outcome maps to model.ErrUnavailable: the generator is a remote
// collaborator and its failures are its own, not the index's.
func (c *Client) GetFeedSkeleton(ctx context.Context, feedURI, viewer, cursor string, limit int) (*Skeleton, error) {
	var out Skeleton
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("feed", feedURI).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&out)
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}
	if viewer != "" {
		req.SetHeader("X-Appview-Viewer", viewer)
	}

	resp, err := req.Get("/xrpc/app.bsky.feed.getFeedSkeleton")
	if err != nil {
		c.log.Warn().Str("feed", feedURI).Err(err).Msg("feed generator unreachable")
		return nil, errors.Wrap(model.ErrUnavailable, "feed generator unreachable")
	}
	if resp.StatusCode() != http.StatusOK {
		c.log.Warn().Str("feed", feedURI).Int("status", resp.StatusCode()).Msg("feed generator error response")
		return nil, errors.Wrapf(model.ErrUnavailable, "feed generator status %d", resp.StatusCode())
	}
	return &out, nil
}
