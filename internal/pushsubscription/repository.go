package pushsubscription

import "context"

type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	// Upsert stores the subscription in one write, replacing any entry
	// with the same endpoint. On replacement the stored ID and CreatedAt
	// are kept so only the keys change. The stored entry is returned.
	Upsert(ctx context.Context, s *Subscription) (*Subscription, error)
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error
	FindByEndpoint(ctx context.Context, endpoint string) (*Subscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}
