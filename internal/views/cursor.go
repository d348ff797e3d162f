package views

import (
	"time"

	"github.com/pkg/errors"

	"github.com/halcyon-social/halcyon/appview/internal/model"
)

// Cursors are opaque to clients but are plain RFC 3339 timestamps inside:
// the sort time of the oldest item on the page, as the storage layer
// ordered it. Ranking may reorder a page after the cursor is taken, so the
// cursor is computed from the pre-ranking slice.

// NextCursor returns the pagination cursor for the next page, or "" when
// the slice came back shorter than requested and the feed is exhausted.
func NextCursor(items []model.FeedItem, requested int) string {
	if len(items) == 0 || len(items) < requested {
		return ""
	}
	oldest := items[0].SortAt
	for _, it := range items[1:] {
		if it.SortAt.Before(oldest) {
			oldest = it.SortAt
		}
	}
	return oldest.UTC().Format(time.RFC3339Nano)
}

// ParseCursor decodes a client-supplied cursor. An empty cursor means "from
// the top" and decodes to the zero time.
func ParseCursor(cursor string) (time.Time, error) {
	if cursor == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, cursor)
	if err != nil {
		return time.Time{}, errors.Wrap(model.ErrInvalidCursor, cursor)
	}
	return t, nil
}
