package repositoryimpl

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/pushsubscription"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/cerr"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/storage"
)

const subscriptionsPath = "push/subscriptions.yaml"

// YAMLRepository keeps every subscription in one YAML document. The set is
// small (one entry per registered browser) and most operations scan it
// anyway, so a single document beats a file per id.
type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

type document struct {
	Subscriptions []pushsubscription.Subscription `yaml:"subscriptions"`
}

func (r *YAMLRepository) load(ctx context.Context) (*document, error) {
	data, err := r.storage.Read(ctx, subscriptionsPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &document{}, nil
		}
		return nil, cerr.WrapStorageReadError("push subscriptions", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal push subscriptions: %w", err))
	}
	return &doc, nil
}

func (r *YAMLRepository) save(ctx context.Context, doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal push subscriptions: %w", err))
	}
	if err := r.storage.Write(ctx, subscriptionsPath, data); err != nil {
		return cerr.WrapStorageWriteError("push subscriptions", err)
	}
	return nil
}

func (r *YAMLRepository) Create(ctx context.Context, s *pushsubscription.Subscription) error {
	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range doc.Subscriptions {
		if existing.Endpoint == s.Endpoint {
			return cerr.NewError(cerr.AlreadyExists, "push subscription already exists", nil)
		}
	}
	doc.Subscriptions = append(doc.Subscriptions, *s)
	return r.save(ctx, doc)
}

// Upsert replaces the entry with the same endpoint, or appends. It is a
// single document write: re-registration cannot lose the subscription the
// way a delete-then-create pair could if the second write failed.
func (r *YAMLRepository) Upsert(ctx context.Context, s *pushsubscription.Subscription) (*pushsubscription.Subscription, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	stored := *s
	replaced := false
	for i := range doc.Subscriptions {
		if doc.Subscriptions[i].Endpoint == s.Endpoint {
			stored.ID = doc.Subscriptions[i].ID
			stored.CreatedAt = doc.Subscriptions[i].CreatedAt
			doc.Subscriptions[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Subscriptions = append(doc.Subscriptions, stored)
	}
	if err := r.save(ctx, doc); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*pushsubscription.Subscription, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range doc.Subscriptions {
		if doc.Subscriptions[i].ID == id {
			s := doc.Subscriptions[i]
			return &s, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "push subscription not found", nil)
}

func (r *YAMLRepository) List(ctx context.Context) ([]*pushsubscription.Subscription, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	all := make([]*pushsubscription.Subscription, 0, len(doc.Subscriptions))
	for i := range doc.Subscriptions {
		s := doc.Subscriptions[i]
		all = append(all, &s)
	}
	return all, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	kept := doc.Subscriptions[:0]
	found := false
	for _, s := range doc.Subscriptions {
		if s.ID == id {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return cerr.NewError(cerr.NotFound, "push subscription not found", nil)
	}
	doc.Subscriptions = kept
	return r.save(ctx, doc)
}

func (r *YAMLRepository) FindByEndpoint(ctx context.Context, endpoint string) (*pushsubscription.Subscription, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range doc.Subscriptions {
		if doc.Subscriptions[i].Endpoint == endpoint {
			s := doc.Subscriptions[i]
			return &s, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "push subscription not found", nil)
}

func (r *YAMLRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	s, err := r.FindByEndpoint(ctx, endpoint)
	if err != nil {
		return err
	}
	return r.Delete(ctx, s.ID)
}
