package core

import (
	"context"

	"github.com/target/mmk-autoapply/internal/domain/model"
)

// SubmitRequest carries everything a Submitter needs for one attempt.
type SubmitRequest struct {
	Application *model.Application
	Job         *model.Job
	Resume      *model.Resume
	Attempt     int
}

// Submitter submits an application to one kind of job source. Submit returns
// the source's confirmation receipt. Errors should be wrapped with
// model.Transient or model.Permanent; unclassified errors count as transient.
type Submitter interface {
	Name() string
	Submit(ctx context.Context, req SubmitRequest) (string, error)
}

// Prober is implemented by submitters that can check whether an earlier
// attempt already reached the source, so a retry does not submit twice.
type Prober interface {
	Probe(ctx context.Context, req SubmitRequest) (confirmed bool, err error)
}

// ProfileSchemaProvider is implemented by submitters that require resume data
// to match a JSON schema before submitting.
type ProfileSchemaProvider interface {
	ProfileSchema() []byte
}

// SubmitterResolver picks the Submitter for a job.
type SubmitterResolver interface {
	Resolve(job *model.Job) (Submitter, error)
}
