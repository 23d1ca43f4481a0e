package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/timeguild/internal/verification"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/storage"
)

const verificationsPrefix = "verifications"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func userPrefix(userID string) string {
	return fmt.Sprintf("%s/%s", verificationsPrefix, userID)
}

func (r *YAMLRepository) Append(ctx context.Context, e *verification.Entry) error {
	if e.UserID == "" {
		return cerr.NewError(cerr.InvalidArgument, "verification entry has no user", nil)
	}
	p := fmt.Sprintf("%s/%s.yaml", userPrefix(e.UserID), e.ID)
	exists, err := r.storage.Exists(ctx, p)
	if err != nil {
		return cerr.WrapStorageWriteError("verification", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "verification entry already exists", nil)
	}
	data, err := yaml.Marshal(e)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal verification entry: %w", err))
	}
	if err := r.storage.Write(ctx, p, data); err != nil {
		return cerr.WrapStorageWriteError("verification", err)
	}
	return nil
}

func (r *YAMLRepository) ListByUser(ctx context.Context, userID string) ([]*verification.Entry, error) {
	return r.ListAll(ctx, []string{userID})
}

func (r *YAMLRepository) ListAll(ctx context.Context, userIDs []string) ([]*verification.Entry, error) {
	entries := make([]*verification.Entry, 0)
	for _, id := range userIDs {
		paths, err := r.storage.List(ctx, userPrefix(id))
		if err != nil {
			return nil, cerr.WrapStorageReadError("verifications", err)
		}
		for _, p := range paths {
			data, err := r.storage.Read(ctx, p)
			if err != nil {
				continue
			}
			var e verification.Entry
			if err := yaml.Unmarshal(data, &e); err != nil {
				continue
			}
			entries = append(entries, &e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}
