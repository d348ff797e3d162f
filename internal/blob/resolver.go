// Package blob maps stored blob references to CDN delivery URLs.
package blob

import (
	"fmt"
	"strings"

	"github.com/halcyon-social/halcyon/appview/internal/model"
)

// Variant selects the rendering preset encoded in the delivery URL.
type Variant string

const (
	VariantAvatar    Variant = "avatar"
	VariantBanner    Variant = "banner"
	VariantThumbnail Variant = "feed_thumbnail"
	VariantFullsize  Variant = "feed_fullsize"
)

// Resolver renders delivery URLs of the form
// <base>/<variant>/plain/<ownerDid>/<cid>@<ext>.
type Resolver struct {
	base string
}

// NewResolver creates a resolver rooted at the CDN base URL.
func NewResolver(base string) *Resolver {
	return &Resolver{base: strings.TrimSuffix(base, "/")}
}

// URL returns the delivery URL for ref owned by ownerDID, or "" when the
// reference is unusable (no CID). Callers treat "" as "omit the field."
func (r *Resolver) URL(ownerDID string, ref *model.BlobRef, v Variant) string {
	if ref == nil || ref.CID == "" || ownerDID == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/plain/%s/%s@%s", r.base, v, ownerDID, ref.CID, ext(ref.MimeType))
}

func ext(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		// jpeg is the transcode default for unknown input types.
		return "jpeg"
	}
}
