package audit

import (
	"context"

	"clearclaim/pkg/domain"
)

// Store is the append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByActor(ctx context.Context, actor domain.UserID) ([]Event, error)
}
