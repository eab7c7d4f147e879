// Package batch reports per-document upsert outcomes.
package batch

import "errors"

// ItemStatus is the processing outcome of a single upserted document.
type ItemStatus string

// Item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of upserting one document.
type Result struct {
	id     string
	status ItemStatus
	err    error
}

// NewOK creates a successful result.
func NewOK(id string) Result { return Result{id: id, status: StatusOK} }

// NewError creates a failed result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the document key.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Outcome summarizes a batch: counts plus the failures.
type Outcome struct {
	Written int      `json:"written"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// maxReportedErrors caps Outcome.Errors.
const maxReportedErrors = 20

// Summarize folds per-item results into an Outcome.
func Summarize(results []Result) Outcome {
	var o Outcome
	for _, r := range results {
		if r.status == StatusOK {
			o.Written++
			continue
		}
		o.Failed++
		if len(o.Errors) < maxReportedErrors && r.err != nil {
			o.Errors = append(o.Errors, r.id+": "+r.err.Error())
		}
	}
	return o
}

// Merge adds other into o.
func (o Outcome) Merge(other Outcome) Outcome {
	o.Written += other.Written
	o.Failed += other.Failed
	for _, e := range other.Errors {
		if len(o.Errors) >= maxReportedErrors {
			break
		}
		o.Errors = append(o.Errors, e)
	}
	return o
}

// Err returns nil when nothing failed, otherwise an error wrapping errPartial.
func (o Outcome) Err(errPartial error) error {
	if o.Failed == 0 {
		return nil
	}
	if len(o.Errors) == 0 {
		return errPartial
	}
	return errors.Join(errPartial, errors.New(o.Errors[0]))
}
