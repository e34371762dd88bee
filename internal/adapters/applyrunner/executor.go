package applyrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
	"github.com/target/mmk-autoapply/internal/observability/metrics"
	"github.com/target/mmk-autoapply/internal/observability/statsd"
)

const (
	defaultSubmitTimeout = 60 * time.Second
	maxLogMessageBytes   = 1024

	// ReasonUnsupportedSource is recorded when no submitter handles the job's source.
	ReasonUnsupportedSource = "unsupported job source"
	// ReasonSubmitTimeout is recorded when Submit outlives the submit timeout.
	ReasonSubmitTimeout = "submission timed out"
	// ReasonBudgetSpent is reported for a recovered lease whose attempt budget is already used.
	ReasonBudgetSpent = "attempt budget spent before submission"
)

// ExecutorOptions configures the submission executor.
type ExecutorOptions struct {
	Applications core.ApplicationRepository // Required
	Jobs         core.JobCatalog            // Required
	Resumes      core.ResumeCatalog         // Required
	Submitters   core.SubmitterResolver     // Required
	Logs         core.SubmissionLogRepository

	SubmitTimeout time.Duration // per Submit and Probe call; defaults to 60s
	Logger        *slog.Logger
	Metrics       statsd.Sink
}

// Executor runs one submission attempt for a reserved task and classifies the
// result. It never reports to the queue itself.
type Executor struct {
	apps          core.ApplicationRepository
	jobs          core.JobCatalog
	resumes       core.ResumeCatalog
	submitters    core.SubmitterResolver
	logs          core.SubmissionLogRepository
	submitTimeout time.Duration
	logger        *slog.Logger
	metrics       statsd.Sink
}

// NewExecutor validates options and builds an Executor.
func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	switch {
	case opts.Applications == nil:
		return nil, errors.New("ApplicationRepository is required")
	case opts.Jobs == nil:
		return nil, errors.New("JobCatalog is required")
	case opts.Resumes == nil:
		return nil, errors.New("ResumeCatalog is required")
	case opts.Submitters == nil:
		return nil, errors.New("SubmitterResolver is required")
	}

	timeout := opts.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}

	return &Executor{
		apps:          opts.Applications,
		jobs:          opts.Jobs,
		resumes:       opts.Resumes,
		submitters:    opts.Submitters,
		logs:          opts.Logs,
		submitTimeout: timeout,
		logger:        resolveLogger(opts.Logger).With("component", "submission_executor"),
		metrics:       opts.Metrics,
	}, nil
}

// attempt carries the state of one Execute call between steps.
type attempt struct {
	task      *model.AutomationTask
	req       core.SubmitRequest
	submitter core.Submitter
	source    string
	start     time.Time
}

// Execute runs the attempt recorded on t. Every failure is folded into the
// returned outcome; nothing is retried here.
func (e *Executor) Execute(ctx context.Context, t *model.AutomationTask) model.SubmissionOutcome {
	a := &attempt{task: t, start: time.Now()}
	outcome, err := e.run(ctx, a)
	e.finish(ctx, a, outcome, err)
	return outcome
}

func (e *Executor) run(ctx context.Context, a *attempt) (model.SubmissionOutcome, error) {
	if err := e.load(ctx, a); err != nil {
		return model.ClassifySubmissionError(err), err
	}

	submitter, err := e.submitters.Resolve(a.req.Job)
	if err != nil || submitter == nil {
		if err == nil {
			err = errors.New("no submitter registered")
		}
		e.record(ctx, a, model.StepResolve, model.LogStatusError, err.Error())
		err = model.Permanent(ReasonUnsupportedSource, err)
		return model.ClassifySubmissionError(err), err
	}
	a.submitter = submitter
	a.source = submitter.Name()
	e.record(ctx, a, model.StepResolve, model.LogStatusOK, "submitter "+a.source)

	if confirmation, confirmed := e.probe(ctx, a); confirmed {
		return model.Succeeded(confirmation), nil
	}

	// A lease recovered after the final attempt gets its probe but no new submission.
	if a.task.MaxAttempts > 0 && a.task.Attempts > a.task.MaxAttempts {
		e.record(ctx, a, model.StepSubmit, model.LogStatusSkipped, ReasonBudgetSpent)
		err := model.Transient(ReasonBudgetSpent, nil)
		return model.ClassifySubmissionError(err), err
	}

	if err := e.validate(ctx, a); err != nil {
		return model.ClassifySubmissionError(err), err
	}

	confirmation, err := e.submit(ctx, a)
	if err != nil {
		return model.ClassifySubmissionError(err), err
	}
	return model.Succeeded(confirmation), nil
}

func (e *Executor) load(ctx context.Context, a *attempt) error {
	t := a.task
	app, err := e.apps.GetByID(ctx, t.ApplicationID)
	if err != nil {
		return e.loadFailure(ctx, a, "application", err, model.ErrApplicationNotFound)
	}
	job, err := e.jobs.GetJob(ctx, t.JobID)
	if err != nil {
		return e.loadFailure(ctx, a, "job", err, model.ErrJobNotFound)
	}
	a.source = job.Source

	if strings.TrimSpace(t.ResumeID) == "" {
		return e.loadFailure(ctx, a, "resume", model.ErrResumeNotFound, model.ErrResumeNotFound)
	}
	resume, err := e.resumes.GetResume(ctx, t.ResumeID)
	if err != nil {
		return e.loadFailure(ctx, a, "resume", err, model.ErrResumeNotFound)
	}

	a.req = core.SubmitRequest{Application: app, Job: job, Resume: resume, Attempt: t.Attempts}
	return nil
}

// loadFailure classifies a failed read: a missing record can never succeed on
// retry, anything else is assumed to be a passing storage problem.
func (e *Executor) loadFailure(ctx context.Context, a *attempt, what string, err, missing error) error {
	e.record(ctx, a, model.StepResolve, model.LogStatusError, fmt.Sprintf("load %s: %v", what, err))
	if errors.Is(err, missing) {
		return model.Permanent(what+" no longer available", err)
	}
	return model.Transient("load "+what, err)
}

// probe asks the source whether an earlier attempt already landed. Only
// retries are probed; a failed probe falls through to a fresh submission.
func (e *Executor) probe(ctx context.Context, a *attempt) (string, bool) {
	if a.task.Attempts <= 1 {
		return "", false
	}
	prober, ok := a.submitter.(core.Prober)
	if !ok {
		e.record(ctx, a, model.StepProbe, model.LogStatusSkipped, a.source+" cannot confirm earlier attempts")
		return "", false
	}

	probeCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
	defer cancel()
	confirmed, err := prober.Probe(probeCtx, a.req)
	switch {
	case err != nil:
		e.logger.WarnContext(ctx, "confirmation probe failed",
			"task_id", a.task.ID, "source", a.source, "attempt", a.task.Attempts, "error", err)
		e.record(ctx, a, model.StepProbe, model.LogStatusError, err.Error())
		return "", false
	case confirmed:
		e.record(ctx, a, model.StepProbe, model.LogStatusOK, "earlier attempt confirmed by source")
		return "confirmed by probe", true
	default:
		e.record(ctx, a, model.StepProbe, model.LogStatusOK, "no earlier submission found")
		return "", false
	}
}

func (e *Executor) validate(ctx context.Context, a *attempt) error {
	provider, ok := a.submitter.(core.ProfileSchemaProvider)
	if !ok || len(provider.ProfileSchema()) == 0 {
		e.record(ctx, a, model.StepValidate, model.LogStatusSkipped, "no profile schema")
		return nil
	}

	data := a.req.Resume.ParsedData
	if data == nil {
		data = map[string]any{}
	}
	res, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(provider.ProfileSchema()),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		e.record(ctx, a, model.StepValidate, model.LogStatusError, err.Error())
		return model.Permanent("invalid profile schema for "+a.source, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, re := range res.Errors() {
			msgs = append(msgs, re.String())
		}
		detail := strings.Join(msgs, "; ")
		e.record(ctx, a, model.StepValidate, model.LogStatusError, detail)
		return model.Permanent("resume does not match "+a.source+" profile", errors.New(detail))
	}

	e.record(ctx, a, model.StepValidate, model.LogStatusOK, "resume matches profile schema")
	return nil
}

func (e *Executor) submit(ctx context.Context, a *attempt) (string, error) {
	submitCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
	defer cancel()

	confirmation, err := a.submitter.Submit(submitCtx, a.req)
	if err != nil && errors.Is(submitCtx.Err(), context.DeadlineExceeded) {
		err = model.Transient(ReasonSubmitTimeout, err)
	}
	if err != nil {
		e.record(ctx, a, model.StepSubmit, model.LogStatusError, err.Error())
		return "", err
	}
	e.record(ctx, a, model.StepSubmit, model.LogStatusOK, confirmation)
	return confirmation, nil
}

func (e *Executor) finish(ctx context.Context, a *attempt, outcome model.SubmissionOutcome, err error) {
	msg := string(outcome.Kind)
	status := model.LogStatusOK
	if outcome.Kind != model.OutcomeSucceeded {
		status = model.LogStatusError
		msg += ": " + outcome.Reason
	}
	e.record(ctx, a, model.StepOutcome, status, msg)

	elapsed := time.Since(a.start)
	metrics.EmitSubmission(e.metrics, metrics.SubmissionMetric{
		Source:   sourceLabel(a.source),
		Outcome:  string(outcome.Kind),
		Attempt:  a.task.Attempts,
		Duration: elapsed,
		Err:      err,
	})

	attrs := []any{
		"task_id", a.task.ID,
		"application_id", a.task.ApplicationID,
		"source", a.source,
		"attempt", a.task.Attempts,
		"outcome", outcome.Kind,
		"duration", elapsed,
	}
	if err != nil {
		e.logger.WarnContext(ctx, "submission attempt failed", append(attrs, "reason", outcome.Reason, "error", err)...)
		return
	}
	e.logger.InfoContext(ctx, "submission attempt succeeded", attrs...)
}

// record appends a step to the application's submission log. Log writes are
// best effort and never change the outcome.
func (e *Executor) record(
	ctx context.Context,
	a *attempt,
	step model.SubmissionStep,
	status model.SubmissionLogStatus,
	message string,
) {
	if e.logs == nil {
		return
	}
	entry := &model.SubmissionLog{
		ApplicationID: a.task.ApplicationID,
		Attempt:       a.task.Attempts,
		Step:          step,
		Status:        status,
	}
	if message = truncate(strings.TrimSpace(message), maxLogMessageBytes); message != "" {
		entry.Message = &message
	}
	if err := e.logs.Append(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "append submission log",
			"application_id", a.task.ApplicationID, "step", step, "error", err)
	}
}

func sourceLabel(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
