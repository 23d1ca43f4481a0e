package task

import "time"

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusCompleted  Status = "completed"
	StatusVerified   Status = "verified"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusVerified:
		return true
	}
	return false
}

type Task struct {
	ID          string    `yaml:"id" json:"id"`
	ProjectID   string    `yaml:"project_id" json:"project_id"`
	AssignedTo  string    `yaml:"assigned_to" json:"assigned_to"`
	Description string    `yaml:"description" json:"description"`
	Status      Status    `yaml:"status" json:"status"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}
