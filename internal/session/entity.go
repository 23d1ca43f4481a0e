package session

import "time"

// Session is one finished timer run. It is never modified after creation.
type Session struct {
	ID              string    `yaml:"id" json:"id"`
	UserID          string    `yaml:"user_id" json:"user_id"`
	UserEmail       string    `yaml:"user_email" json:"user_email"`
	ProjectID       string    `yaml:"project_id" json:"project_id"`
	Project         string    `yaml:"project" json:"project"`
	TaskID          string    `yaml:"task_id,omitempty" json:"task_id,omitempty"`
	TaskDescription string    `yaml:"task_description,omitempty" json:"task_description,omitempty"`
	StartTime       time.Time `yaml:"start_time" json:"start_time"`
	StopTime        time.Time `yaml:"stop_time" json:"stop_time"`
	// Duration is StopTime - StartTime in milliseconds.
	Duration int64 `yaml:"duration_ms" json:"duration_ms"`
}

func DurationMillis(start, stop time.Time) int64 {
	return stop.Sub(start).Milliseconds()
}
