package models

import "time"

// JobStatus is the status-machine state of a scheduled Job.
type JobStatus string

const (
	JobScheduled JobStatus = "scheduled"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobKind distinguishes one-shot FireAt jobs from recurring Interval jobs.
type JobKind string

const (
	JobFireAt   JobKind = "fire_at"
	JobInterval JobKind = "interval"
)

// MinIntervalMinutes is the floor on recurring job spacing.
const MinIntervalMinutes = 2

// Job is a scheduled command, either one-shot (FireAt) or recurring
// (Interval). Both variants share this single struct; Kind picks which of
// ExecuteAt / Minutes+NextExecution is meaningful.
type Job struct {
	ID    string    `json:"id"`
	Kind  JobKind   `json:"kind"`
	Status JobStatus `json:"status"`

	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`

	// FireAt fields.
	ExecuteAt time.Time `json:"execute_at,omitempty"`

	// Interval fields.
	Minutes       int        `json:"minutes,omitempty"`
	LastExecuted  *time.Time `json:"last_executed,omitempty"`
	NextExecution time.Time  `json:"next_execution,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	ExecutionCount int       `json:"execution_count"`
	LastError      string    `json:"last_error,omitempty"`
}

// IsDue reports whether the job's next execution time has arrived.
func (j *Job) IsDue(now time.Time) bool {
	switch j.Kind {
	case JobFireAt:
		return !j.ExecuteAt.After(now)
	case JobInterval:
		return !j.NextExecution.After(now)
	default:
		return false
	}
}

// MarkExecuted records a successful execution. FireAt jobs terminate as
// Completed; Interval jobs re-arm to Scheduled with an advanced
// NextExecution.
func (j *Job) MarkExecuted(now time.Time) {
	j.ExecutionCount++
	j.LastError = ""
	switch j.Kind {
	case JobFireAt:
		j.Status = JobCompleted
	case JobInterval:
		last := now
		j.LastExecuted = &last
		j.NextExecution = now.Add(time.Duration(j.Minutes) * time.Minute)
		j.Status = JobScheduled
	}
}

// MarkFailed records a failed execution. FireAt jobs terminate as Failed;
// Interval jobs re-arm to Scheduled with an advanced NextExecution so they
// keep firing on cadence rather than retrying every tick.
func (j *Job) MarkFailed(now time.Time, errMsg string) {
	j.ExecutionCount++
	j.LastError = errMsg
	switch j.Kind {
	case JobFireAt:
		j.Status = JobFailed
	case JobInterval:
		last := now
		j.LastExecuted = &last
		j.NextExecution = now.Add(time.Duration(j.Minutes) * time.Minute)
		j.Status = JobScheduled
	}
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	clone.Args = append([]string(nil), j.Args...)
	if j.LastExecuted != nil {
		t := *j.LastExecuted
		clone.LastExecuted = &t
	}
	return &clone
}
