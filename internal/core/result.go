package core

import (
	"errors"
	"fmt"
)

// Status is the outcome of one sync stage.
type Status int

const (
	StatusNoop Status = iota // nothing to send or nothing received
	StatusOK
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNoop:
		return "noop"
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// PushResult contains the outcome of a push.
type PushResult struct {
	Status  Status
	Pushed  int   // changes accepted by the server
	Cleared int64 // changelog rows removed afterwards
	Err     error
}

// PullResult contains the outcome of a pull.
type PullResult struct {
	Status    Status
	Received  int
	Dropped   int // rejected before apply
	Stats     ApplyStats
	Since     string
	Watermark string // value after the pull
	Err       error
}

// Result is the outcome of a full sync cycle. Stages that did not run are nil.
type Result struct {
	SchemaErr error
	Push      *PushResult
	Pull      *PullResult
}

// Err joins the errors of every stage, or returns nil if all succeeded.
func (r *Result) Err() error {
	var errs []error
	if r.SchemaErr != nil {
		errs = append(errs, fmt.Errorf("schema: %w", r.SchemaErr))
	}
	if r.Push != nil && r.Push.Err != nil {
		errs = append(errs, fmt.Errorf("push: %w", r.Push.Err))
	}
	if r.Pull != nil && r.Pull.Err != nil {
		errs = append(errs, fmt.Errorf("pull: %w", r.Pull.Err))
	}
	return errors.Join(errs...)
}

// OK reports whether every stage that ran succeeded.
func (r *Result) OK() bool {
	return r.Err() == nil
}
