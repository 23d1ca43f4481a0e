package repositoryimpl

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/storage"
)

const projectsPrefix = "projects"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", projectsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, p *project.Project) error {
	exists, err := r.storage.Exists(ctx, path(p.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("project", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "project already exists", nil)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal project: %w", err))
	}
	if err := r.storage.Write(ctx, path(p.ID), data); err != nil {
		return cerr.WrapStorageWriteError("project", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	return r.read(ctx, path(id))
}

func (r *YAMLRepository) read(ctx context.Context, p string) (*project.Project, error) {
	data, err := r.storage.Read(ctx, p)
	if err != nil {
		return nil, cerr.WrapStorageReadError("project", err)
	}
	var proj project.Project
	if err := yaml.Unmarshal(data, &proj); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal project: %w", err))
	}
	return &proj, nil
}

func (r *YAMLRepository) FindByName(ctx context.Context, name string) (*project.Project, error) {
	projects, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "project not found", nil)
}

// List skips documents that cannot be read; ULID file names keep creation order.
func (r *YAMLRepository) List(ctx context.Context) ([]*project.Project, error) {
	paths, err := r.storage.List(ctx, projectsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("projects", err)
	}
	projects := make([]*project.Project, 0, len(paths))
	for _, p := range paths {
		proj, err := r.read(ctx, p)
		if err != nil {
			continue
		}
		projects = append(projects, proj)
	}
	return projects, nil
}
