package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobStarted   JobStatus = "started"
	JobRunning   JobStatus = "running"
	JobDeferred  JobStatus = "deferred"
	JobScheduled JobStatus = "scheduled"
	JobFinished  JobStatus = "finished"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further polling is needed. Only finished and
// failed end a job; every other status, known or not, means keep polling.
func (s JobStatus) IsTerminal() bool {
	return s == JobFinished || s == JobFailed
}

// IsKnown reports whether s is one of the statuses the job queue documents.
func (s JobStatus) IsKnown() bool {
	switch s {
	case JobQueued, JobStarted, JobRunning, JobDeferred, JobScheduled, JobFinished, JobFailed:
		return true
	}
	return false
}

// Job is the server's view of an asynchronous payment. Result is passed
// through untouched.
type Job struct {
	ID     string          `json:"id"`
	Status JobStatus       `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

type JobClient struct{ c *Client }

func NewJobClient(c *Client) *JobClient { return &JobClient{c: c} }

func (jc *JobClient) FetchJob(ctx context.Context, jobID string) (Job, error) {
	var job Job
	if err := jc.c.doJSON(ctx, http.MethodGet, "/job/"+url.PathEscape(jobID), "", nil, &job); err != nil {
		return Job{}, wrap(ErrJobFetch, "fetch job", err)
	}
	if job.Status == "" {
		return Job{}, wrap(ErrJobFetch, "fetch job", fmt.Errorf("%w: no status", ErrContract))
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return job, nil
}
