package submitters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
	"github.com/target/mmk-autoapply/internal/mocks"
)

func namedMock(ctrl *gomock.Controller, name string) *mocks.MockSubmitter {
	m := mocks.NewMockSubmitter(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	return m
}

func job(source, url string) *model.Job {
	j := &model.Job{ID: "job-1", Source: source}
	if url != "" {
		j.URL = &url
	}
	return j
}

func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "greenhouse", want: "greenhouse"},
		{in: "  GreenHouse ", want: "greenhouse"},
		{in: "Smart Recruiters", want: "smart-recruiters"},
		{in: "smart_recruiters", want: "smart-recruiters"},
		{in: "Wélcome.Kit", want: "welcome-kit"},
		{in: "STRASSE", want: "strasse"},
		{in: "--lever--", want: "lever"},
		{in: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSource(tt.in))
		})
	}
}

func TestDetectSource(t *testing.T) {
	assert.Equal(t, "greenhouse", DetectSource("https://boards.greenhouse.io/acme/jobs/42"))
	assert.Equal(t, "lever", DetectSource("https://jobs.lever.co/acme/123"))
	assert.Equal(t, "acme", DetectSource("https://careers.acme.co.uk/openings"))
	assert.Equal(t, "", DetectSource("not a url"))
	assert.Equal(t, "", DetectSource(""))
}

func TestRegistry_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := NewRegistry()

	require.NoError(t, reg.Register(namedMock(ctrl, "Greenhouse"), "greenhouse.io"))
	require.Error(t, reg.Register(namedMock(ctrl, "greenhouse")), "names collide after normalization")
	require.Error(t, reg.Register(namedMock(ctrl, "other"), "boards.greenhouse.io"), "host already claimed")
	require.Error(t, reg.Register(namedMock(ctrl, "broken"), "://"))
	require.Error(t, reg.Register(namedMock(ctrl, " ")))
	require.Error(t, reg.Register(nil))

	assert.Equal(t, []string{"greenhouse"}, reg.Names())
}

func TestRegistry_Resolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(namedMock(ctrl, "greenhouse")))
	require.NoError(t, reg.Register(namedMock(ctrl, "ultipro-ukg"), "ultipro.com"))
	require.NoError(t, reg.Register(Manual{}))

	tests := []struct {
		name string
		job  *model.Job
		want string
	}{
		{name: "explicit source", job: job("Greenhouse", ""), want: "greenhouse"},
		{name: "explicit source beats url", job: job("greenhouse", "https://recruiting.ultipro.com/x"), want: "greenhouse"},
		{name: "declared host", job: job("", "https://recruiting.ultipro.com/ACME/jobs/1"), want: "ultipro-ukg"},
		{name: "leading label", job: job("manual", "https://boards.greenhouse.io/acme/jobs/42"), want: "greenhouse"},
		{name: "unknown host falls back", job: job("", "https://careers.acme.com/1"), want: model.SourceManual},
		{name: "manual without url", job: job("manual", ""), want: model.SourceManual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Resolve(tt.job)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name())
		})
	}
}

func TestRegistry_ResolveUnknownSource(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Manual{}))

	_, err := reg.Resolve(job("taleo", "https://boards.greenhouse.io/acme"))
	require.ErrorIs(t, err, ErrNoSubmitter)

	_, err = reg.Resolve(nil)
	require.Error(t, err)
}

func TestRegistry_ResolveWithoutManualFallback(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve(job("", "https://careers.acme.com/1"))
	require.ErrorIs(t, err, ErrNoSubmitter)
}

func TestManual_AlwaysPermanent(t *testing.T) {
	_, err := Manual{}.Submit(context.Background(), core.SubmitRequest{})
	outcome := model.ClassifySubmissionError(err)
	assert.Equal(t, model.OutcomePermanent, outcome.Kind)
	assert.Equal(t, ReasonManual, outcome.Reason)
	assert.Equal(t, model.SourceManual, Manual{}.Name())
}
