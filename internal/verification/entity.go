package verification

import "time"

type Result struct {
	IsWorking  bool    `yaml:"is_working" json:"isWorking"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
	Details    string  `yaml:"details" json:"details"`
}

func (r Result) Valid() bool {
	return r.Confidence >= 0 && r.Confidence <= 1
}

// Entry is one judged capture. The log is append-only.
type Entry struct {
	ID           string    `yaml:"id" json:"id"`
	UserID       string    `yaml:"user_id" json:"user_id"`
	UserEmail    string    `yaml:"user_email" json:"user_email"`
	TaskID       string    `yaml:"task_id" json:"task_id"`
	PhotoDataURI string    `yaml:"photo_data_uri" json:"photo_data_uri"`
	Result       Result    `yaml:"result" json:"result"`
	Timestamp    time.Time `yaml:"timestamp" json:"timestamp"`
}
