package task

import "context"

type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	// List returns tasks in creation order. An empty assignedTo lists all.
	List(ctx context.Context, assignedTo string) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
}
