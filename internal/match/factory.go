package match

import (
	"position-matcher/internal/interfaces"
	"position-matcher/internal/store"
)

func New(cfg *store.Config, source interfaces.FillSource, runs interfaces.RunStore) interfaces.Coordinator {
	return newCoordinator(cfg, source, runs)
}
