package user

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWorker Role = "worker"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleWorker
}

// User is the profile record of one identity. ID equals the identity ID.
type User struct {
	ID        string    `yaml:"id" json:"id"`
	Email     string    `yaml:"email" json:"email"`
	Name      string    `yaml:"name" json:"name"`
	Role      Role      `yaml:"role" json:"role"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// DisplayName falls back to the local part of the email.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	name, _, _ := strings.Cut(u.Email, "@")
	return name
}
