package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/halcyon-social/halcyon/appview/internal/hydration"
	"github.com/halcyon-social/halcyon/appview/internal/identity"
	"github.com/halcyon-social/halcyon/appview/internal/model"
	"github.com/halcyon-social/halcyon/appview/internal/prefs"
	"github.com/halcyon-social/halcyon/appview/internal/views"
)

// MaxActorBatch bounds one getProfiles request.
const MaxActorBatch = 25

// ActorService orchestrates actor read use cases plus the viewer's
// preference round trips.
type ActorService struct {
	identity *identity.Resolver
	loader   *hydration.Loader
	composer *views.Composer
	prefs    *prefs.Cache
	log      zerolog.Logger
}

// NewActorService constructs an ActorService.
func NewActorService(id *identity.Resolver, loader *hydration.Loader, composer *views.Composer, pc *prefs.Cache, log zerolog.Logger) *ActorService {
	return &ActorService{identity: id, loader: loader, composer: composer, prefs: pc, log: log}
}

// ComposeProfileViews resolves actor references (handles or DIDs), hydrates
// them, and renders detailed profiles in input order. A reference that
// resolves nowhere is dropped from the result.
func (s *ActorService) ComposeProfileViews(ctx context.Context, actorRefs []string, viewer string) ([]model.ProfileView, error) {
	if len(actorRefs) == 0 {
		return nil, errors.Wrap(model.ErrValidation, "actors must not be empty")
	}
	if len(actorRefs) > MaxActorBatch {
		return nil, errors.Wrapf(model.ErrValidation, "at most %d actors per request", MaxActorBatch)
	}

	dids := make([]string, 0, len(actorRefs))
	for _, ref := range actorRefs {
		did, err := s.identity.Resolve(ctx, ref)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		dids = append(dids, did)
	}

	state, err := s.loader.LoadActorState(ctx, dids, viewer)
	if err != nil {
		return nil, err
	}
	return s.composer.ProfileViews(state, dids), nil
}

// GetProfile returns one actor's detailed profile. model.ErrNotFound covers
// both an unresolvable reference and an unrenderable actor.
func (s *ActorService) GetProfile(ctx context.Context, actorRef, viewer string) (*model.ProfileView, error) {
	if actorRef == "" {
		return nil, errors.Wrap(model.ErrValidation, "actor is required")
	}
	did, err := s.identity.Resolve(ctx, actorRef)
	if err != nil {
		return nil, err
	}

	state, err := s.loader.LoadActorState(ctx, []string{did}, viewer)
	if err != nil {
		return nil, err
	}
	rendered := s.composer.ProfileViews(state, []string{did})
	if len(rendered) == 0 {
		return nil, errors.Wrap(model.ErrNotFound, actorRef)
	}
	return &rendered[0], nil
}

// GetPreferences returns the viewer's stored preference set.
func (s *ActorService) GetPreferences(ctx context.Context, viewer string) (*model.Preferences, error) {
	if viewer == "" {
		return nil, errors.Wrap(model.ErrValidation, "preferences require an authenticated viewer")
	}
	return s.prefs.Get(ctx, viewer)
}

// PutPreferences replaces the viewer's preference set.
func (s *ActorService) PutPreferences(ctx context.Context, viewer string, items []model.PreferenceEntry) error {
	if viewer == "" {
		return errors.Wrap(model.ErrValidation, "preferences require an authenticated viewer")
	}
	return s.prefs.Put(ctx, &model.Preferences{DID: viewer, Items: items})
}
