package application

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-autoapply/internal/domain/model"
)

var allStatuses = []model.ApplicationStatus{
	model.ApplicationStatusSaved,
	model.ApplicationStatusApplying,
	model.ApplicationStatusApplied,
	model.ApplicationStatusFailed,
	model.ApplicationStatusInterviewing,
	model.ApplicationStatusRejected,
}

var allTriggers = []Trigger{
	TriggerApplyRequested,
	TriggerSubmissionSucceeded,
	TriggerSubmissionFailedPermanent,
	TriggerSubmissionFailedExhausted,
	TriggerInterviewScheduled,
	TriggerRejectionRecorded,
	TriggerReapplyRequested,
}

func TestNext_LegalEdges(t *testing.T) {
	tests := []struct {
		from    model.ApplicationStatus
		trigger Trigger
		want    model.ApplicationStatus
	}{
		{model.ApplicationStatusSaved, TriggerApplyRequested, model.ApplicationStatusApplying},
		{model.ApplicationStatusApplying, TriggerSubmissionSucceeded, model.ApplicationStatusApplied},
		{model.ApplicationStatusApplying, TriggerSubmissionFailedPermanent, model.ApplicationStatusFailed},
		{model.ApplicationStatusApplying, TriggerSubmissionFailedExhausted, model.ApplicationStatusFailed},
		{model.ApplicationStatusApplied, TriggerInterviewScheduled, model.ApplicationStatusInterviewing},
		{model.ApplicationStatusApplied, TriggerRejectionRecorded, model.ApplicationStatusRejected},
		{model.ApplicationStatusInterviewing, TriggerRejectionRecorded, model.ApplicationStatusRejected},
		{model.ApplicationStatusFailed, TriggerReapplyRequested, model.ApplicationStatusApplying},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.trigger), func(t *testing.T) {
			got, err := Next(tt.from, tt.trigger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, Can(tt.from, tt.trigger))
		})
	}
}

func TestNext_IllegalEdges(t *testing.T) {
	legal := 0
	for _, from := range allStatuses {
		for _, trig := range allTriggers {
			_, err := Next(from, trig)
			if err == nil {
				legal++
				continue
			}
			var ite *IllegalTransitionError
			require.ErrorAs(t, err, &ite)
			assert.Equal(t, from, ite.From)
			assert.Equal(t, trig, ite.Trigger)
		}
	}
	assert.Len(t, Transitions(), legal, "only table edges may be legal")
}

func TestNext_AppliedCannotReapply(t *testing.T) {
	_, err := Next(model.ApplicationStatusApplied, TriggerReapplyRequested)
	require.Error(t, err)
	_, err = Next(model.ApplicationStatusApplying, TriggerApplyRequested)
	require.Error(t, err)
}

// Random walks over triggers: every accepted step must be a table edge and
// every rejected step must leave the status unchanged.
func TestNext_RandomSequencesFollowGraph(t *testing.T) {
	edges := make(map[Transition]bool)
	for _, tr := range Transitions() {
		edges[tr] = true
	}

	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 500; run++ {
		status := model.ApplicationStatusSaved
		for step := 0; step < 20; step++ {
			trig := allTriggers[rng.Intn(len(allTriggers))]
			next, err := Next(status, trig)
			if err != nil {
				var ite *IllegalTransitionError
				require.True(t, errors.As(err, &ite))
				for e := range edges {
					assert.False(t, e.From == status && e.Trigger == trig, "rejected a table edge %v", e)
				}
				continue
			}
			require.True(t, edges[Transition{From: status, Trigger: trig, To: next}],
				"accepted %s -> %s via %s which is not in the table", status, next, trig)
			status = next
		}
	}
}

func TestTransitions_ReturnsCopy(t *testing.T) {
	got := Transitions()
	got[0].To = model.ApplicationStatusRejected
	next, err := Next(model.ApplicationStatusSaved, TriggerApplyRequested)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusApplying, next)
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsInFlight(model.ApplicationStatusApplying))
	assert.False(t, IsInFlight(model.ApplicationStatusSaved))
	assert.True(t, IsTerminal(model.ApplicationStatusApplied))
	assert.True(t, IsTerminal(model.ApplicationStatusRejected))
	assert.False(t, IsTerminal(model.ApplicationStatusApplying))
	assert.True(t, RequiresFailureReason(model.ApplicationStatusFailed))
	assert.False(t, RequiresFailureReason(model.ApplicationStatusApplied))

	trig, ok := ExternalTrigger(model.ApplicationStatusInterviewing)
	assert.True(t, ok)
	assert.Equal(t, TriggerInterviewScheduled, trig)
	_, ok = ExternalTrigger(model.ApplicationStatusApplied)
	assert.False(t, ok)

	assert.Equal(t, TriggerSubmissionFailedExhausted, FailureTrigger(true))
	assert.Equal(t, TriggerSubmissionFailedPermanent, FailureTrigger(false))
}
