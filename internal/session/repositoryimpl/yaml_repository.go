package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/storage"
)

const sessionsPrefix = "sessions"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func userPrefix(userID string) string {
	return fmt.Sprintf("%s/%s", sessionsPrefix, userID)
}

func path(userID, id string) string {
	return fmt.Sprintf("%s/%s.yaml", userPrefix(userID), id)
}

func (r *YAMLRepository) Create(ctx context.Context, s *session.Session) error {
	if s.UserID == "" {
		return cerr.NewError(cerr.InvalidArgument, "session has no user", nil)
	}
	exists, err := r.storage.Exists(ctx, path(s.UserID, s.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("session", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "session already exists", nil)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal session: %w", err))
	}
	if err := r.storage.Write(ctx, path(s.UserID, s.ID), data); err != nil {
		return cerr.WrapStorageWriteError("session", err)
	}
	return nil
}

func (r *YAMLRepository) ListByUser(ctx context.Context, userID string) ([]*session.Session, error) {
	sessions, err := r.list(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(sessions)
	return sessions, nil
}

func (r *YAMLRepository) ListAll(ctx context.Context, userIDs []string) ([]*session.Session, error) {
	all := make([]*session.Session, 0)
	for _, id := range userIDs {
		sessions, err := r.list(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, sessions...)
	}
	sortNewestFirst(all)
	return all, nil
}

func (r *YAMLRepository) list(ctx context.Context, userID string) ([]*session.Session, error) {
	paths, err := r.storage.List(ctx, userPrefix(userID))
	if err != nil {
		return nil, cerr.WrapStorageReadError("sessions", err)
	}
	sessions := make([]*session.Session, 0, len(paths))
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var s session.Session
		if err := yaml.Unmarshal(data, &s); err != nil {
			continue
		}
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

func sortNewestFirst(sessions []*session.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].StartTime.After(sessions[j].StartTime)
		}
		return sessions[i].ID > sessions[j].ID
	})
}
