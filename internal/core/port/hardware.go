package port

import (
	"context"

	"github.com/tuupertunut/fanning/internal/core/domain"
)

// HardwareBackend owns the hardware tree and refreshes its sensor values,
// applying the commanded values of its controllers.
type HardwareBackend interface {
	Refresh(ctx context.Context) error
	Root() *domain.HardwareItem
}

// CurveStorage persists the curve collection. Load resolves ids against the
// current hardware tree and fails as a whole.
type CurveStorage interface {
	Load(ctx context.Context) ([]*domain.Curve, error)
	Store(ctx context.Context, curves []*domain.Curve) error
}
