package infra

import (
	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

// StoreModeResolver resolves modes from the shared state store, which holds
// the schedule->mode mapping the configuration layer persisted.
type StoreModeResolver struct {
	store domain.StateStore
}

// NewStoreModeResolver creates a store-backed mode resolver.
func NewStoreModeResolver(store domain.StateStore) *StoreModeResolver {
	return &StoreModeResolver{store: store}
}

// Resolve returns the mode or nil when it no longer exists.
func (r *StoreModeResolver) Resolve(modeID string) (*domain.Mode, error) {
	return r.store.GetMode(modeID)
}

// Ensure StoreModeResolver implements domain.ModeResolver.
var _ domain.ModeResolver = (*StoreModeResolver)(nil)
