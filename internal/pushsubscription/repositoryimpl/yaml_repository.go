package repositoryimpl

import (
	"context"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/timeguild/internal/pushsubscription"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/storage"
)

const subscriptionsPrefix = "push_subscriptions"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", subscriptionsPrefix, id)
}

func (r *YAMLRepository) Save(ctx context.Context, s *pushsubscription.Subscription) error {
	all, err := r.list(ctx)
	if err != nil {
		return err
	}
	for _, existing := range all {
		if existing.Endpoint == s.Endpoint && existing.ID != s.ID {
			s.ID = existing.ID
			s.CreatedAt = existing.CreatedAt
			break
		}
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal push subscription: %w", err))
	}
	if err := r.storage.Write(ctx, path(s.ID), data); err != nil {
		return cerr.WrapStorageWriteError("push subscription", err)
	}
	return nil
}

func (r *YAMLRepository) ListByUsers(ctx context.Context, userIDs []string) ([]*pushsubscription.Subscription, error) {
	all, err := r.list(ctx)
	if err != nil {
		return nil, err
	}
	subs := make([]*pushsubscription.Subscription, 0, len(all))
	for _, s := range all {
		if slices.Contains(userIDs, s.UserID) {
			subs = append(subs, s)
		}
	}
	return subs, nil
}

func (r *YAMLRepository) list(ctx context.Context) ([]*pushsubscription.Subscription, error) {
	paths, err := r.storage.List(ctx, subscriptionsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("push subscriptions", err)
	}
	subs := make([]*pushsubscription.Subscription, 0, len(paths))
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var s pushsubscription.Subscription
		if err := yaml.Unmarshal(data, &s); err != nil {
			continue
		}
		subs = append(subs, &s)
	}
	return subs, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("push subscription", err)
	}
	return nil
}

func (r *YAMLRepository) DeleteByEndpoint(ctx context.Context, userID, endpoint string) error {
	all, err := r.list(ctx)
	if err != nil {
		return err
	}
	for _, s := range all {
		if s.Endpoint == endpoint && s.UserID == userID {
			return r.Delete(ctx, s.ID)
		}
	}
	return cerr.NewError(cerr.NotFound, "push subscription not found", nil)
}
