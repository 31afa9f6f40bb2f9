package domain

// JobStatus is the lifecycle state of an in-flight generation job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// ProgressEvent is one step of a generation run. Percent is
// non-decreasing within a run and reaches 100 exactly once, on the
// terminal event.
type ProgressEvent struct {
	Percent  int     `json:"percent"`
	Title    string  `json:"title"`
	Detail   string  `json:"detail,omitempty"`
	Terminal bool    `json:"terminal,omitempty"`
	Err      string  `json:"error,omitempty"`
	Report   *Report `json:"report,omitempty"`
}
