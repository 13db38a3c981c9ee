package model

import "maps"

// TaskStatus is the state of a remote task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailure TaskStatus = "failure"
)

// TaskSession is one remote processing task, scoped to a single bearer token
// and a single worker.
//
// ServerBaseURL and TaskID are only set after the task has been started, and
// Status is only meaningful after the task has been executed. Pipeline steps
// return an updated copy instead of mutating a shared session.
type TaskSession struct {
	Tool            string
	AuthToken       string
	ServerBaseURL   string
	TaskID          string
	Status          TaskStatus
	RemoteStatus    string
	OutputFileName  string
	ExtraParameters map[string]any
}

// Started returns true when the remote service assigned a worker and a task.
func (t TaskSession) Started() bool {
	return t.ServerBaseURL != "" && t.TaskID != ""
}

// Succeeded returns true when the executed task produced an output.
func (t TaskSession) Succeeded() bool {
	return t.Status == TaskStatusSuccess
}

// WithExtraParameters returns a copy of the session holding its own copy of
// the parameters.
func (t TaskSession) WithExtraParameters(params map[string]any) TaskSession {
	t.ExtraParameters = maps.Clone(params)
	return t
}
