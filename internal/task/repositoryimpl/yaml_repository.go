package repositoryimpl

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/storage"
)

const tasksPrefix = "tasks"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", tasksPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(t.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	var t task.Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task: %w", err))
	}
	return &t, nil
}

func (r *YAMLRepository) List(ctx context.Context, assignedTo string) ([]*task.Task, error) {
	paths, err := r.storage.List(ctx, tasksPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}
	tasks := make([]*task.Task, 0, len(paths))
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var t task.Task
		if err := yaml.Unmarshal(data, &t); err != nil {
			continue
		}
		if assignedTo != "" && !strings.EqualFold(t.AssignedTo, assignedTo) {
			continue
		}
		tasks = append(tasks, &t)
	}
	return tasks, nil
}

func (r *YAMLRepository) Update(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(t.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) write(ctx context.Context, t *task.Task) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task: %w", err))
	}
	if err := r.storage.Write(ctx, path(t.ID), data); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}
