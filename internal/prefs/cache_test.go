package prefs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-social/halcyon/appview/internal/model"
)

type fakePrefsStore struct {
	byDID map[string]*model.Preferences
	gets  int
	puts  int
}

func (f *fakePrefsStore) Get(ctx context.Context, did string) (*model.Preferences, error) {
	f.gets++
	if p, ok := f.byDID[did]; ok {
		return p, nil
	}
	return &model.Preferences{DID: did}, nil
}

func (f *fakePrefsStore) Put(ctx context.Context, p *model.Preferences) error {
	f.puts++
	f.byDID[p.DID] = p
	return nil
}

func newTestCache(t *testing.T, s *fakePrefsStore) *Cache {
	t.Helper()
	ttl := NewTTL(context.Background(), 5*time.Minute, time.Minute, nil)
	t.Cleanup(ttl.Close)
	return NewCache(s, ttl)
}

func TestGetReadsThroughOnce(t *testing.T) {
	s := &fakePrefsStore{byDID: map[string]*model.Preferences{
		"did:plc:aaa": {DID: "did:plc:aaa", Items: []model.PreferenceEntry{{Type: "app.bsky.actor.defs#adultContentPref"}}},
	}}
	c := newTestCache(t, s)

	p1, err := c.Get(context.Background(), "did:plc:aaa")
	require.NoError(t, err)
	p2, err := c.Get(context.Background(), "did:plc:aaa")
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, s.gets, "second read must come from cache")
}

func TestPutInvalidates(t *testing.T) {
	s := &fakePrefsStore{byDID: map[string]*model.Preferences{}}
	c := newTestCache(t, s)

	_, err := c.Get(context.Background(), "did:plc:aaa")
	require.NoError(t, err)

	updated := &model.Preferences{DID: "did:plc:aaa", Items: []model.PreferenceEntry{{Type: "app.bsky.actor.defs#savedFeedsPref"}}}
	require.NoError(t, c.Put(context.Background(), updated))

	got, err := c.Get(context.Background(), "did:plc:aaa")
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	assert.Equal(t, 2, s.gets, "get after write must re-read the store")
}
