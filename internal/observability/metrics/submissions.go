// Package metrics names and tags the orchestrator's statsd metrics.
package metrics

import (
	"maps"
	"strconv"
	"time"

	obserrors "github.com/target/mmk-autoapply/internal/observability/errors"
	"github.com/target/mmk-autoapply/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// SubmissionMetric describes one executor attempt.
type SubmissionMetric struct {
	Source   string
	Outcome  string
	Attempt  int
	Duration time.Duration
	Err      error
}

// EmitSubmission emits autoapply.submission.* metrics for one attempt.
func EmitSubmission(sink statsd.Sink, in SubmissionMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"source":  in.Source,
		"outcome": in.Outcome,
		"attempt": strconv.Itoa(in.Attempt),
	}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("submission.attempt", 1, tags)
	if in.Duration > 0 {
		sink.Timing("submission.duration", in.Duration, CloneTags(tags))
	}
}

// QueueMetric describes a queue transition such as enqueue, requeue or finish.
type QueueMetric struct {
	Transition string
	Result     string
	Err        error
}

// EmitQueueTransition emits autoapply.queue.transition.
func EmitQueueTransition(sink statsd.Sink, in QueueMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("queue.transition", 1, tags)
}

// EmitReaper emits the number of rows a reaper pass touched.
func EmitReaper(sink statsd.Sink, task string, affected int64, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	switch {
	case err != nil:
		result = ResultError
	case affected == 0:
		result = ResultNoop
	}
	tags := map[string]string{"task": task, "result": result}
	sink.Count("reaper.runs", 1, tags)
	if affected > 0 {
		sink.Count("reaper.affected", affected, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
