package project

import "context"

type Repository interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	FindByName(ctx context.Context, name string) (*Project, error)
	// List returns projects in creation order.
	List(ctx context.Context) ([]*Project, error)
}
