package atsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

func testRequest() core.SubmitRequest {
	jobURL := "https://boards.greenhouse.io/acme/jobs/42"
	return core.SubmitRequest{
		Application: &model.Application{ID: "app-1", UserID: "user-1", JobID: "job-1"},
		Job:         &model.Job{ID: "job-1", Title: "Backend Engineer", Source: "greenhouse", URL: &jobURL},
		Resume: &model.Resume{
			ID:         "res-1",
			FileName:   "ada.pdf",
			ParsedData: map[string]any{"email": "ada@example.com"},
		},
		Attempt: 1,
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing name", cfg: Config{SubmitURL: "http://x", Confirm: "id"}},
		{name: "missing submit url", cfg: Config{Name: "gh", Confirm: "id"}},
		{name: "missing confirm", cfg: Config{Name: "gh", SubmitURL: "http://x"}},
		{name: "bad confirm", cfg: Config{Name: "gh", SubmitURL: "http://x", Confirm: "[?"}},
		{name: "probe without status url", cfg: Config{Name: "gh", SubmitURL: "http://x", Confirm: "id", Probe: "found"}},
		{
			name: "bad probe",
			cfg:  Config{Name: "gh", SubmitURL: "http://x", StatusURL: "http://x", Confirm: "id", Probe: "[?"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestSubmit_PostsApplicationAndReadsReceipt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs/job-1/applications" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "app-1" {
			t.Errorf("Idempotency-Key = %q", got)
		}
		var body applicationPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Candidate["email"] != "ada@example.com" || body.ResumeFileName != "ada.pdf" {
			t.Errorf("unexpected payload %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"application": {"id": "gh-777", "status": "received"}}`))
	}))
	defer srv.Close()

	sub, err := New(Config{
		Name:      "greenhouse",
		SubmitURL: srv.URL + "/jobs/{job_id}/applications",
		Confirm:   "application.status == 'received' && application.id",
	})
	require.NoError(t, err)

	receipt, err := sub.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "gh-777", receipt)
}

func TestSubmit_ConfirmTrueWithoutReceipt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	sub, err := New(Config{Name: "lever", SubmitURL: srv.URL, Confirm: "ok"})
	require.NoError(t, err)

	receipt, err := sub.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, confirmedWithoutID, receipt)
}

func TestSubmit_UnconfirmedResponseIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "pending"}`))
	}))
	defer srv.Close()

	sub, err := New(Config{Name: "lever", SubmitURL: srv.URL, Confirm: "status == 'received'"})
	require.NoError(t, err)

	_, err = sub.Submit(context.Background(), testRequest())
	var transient *model.TransientSubmissionError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, "submission not confirmed by lever", transient.Reason)
}

func TestSubmit_ClassifiesHTTPStatus(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
	}{
		{code: http.StatusRequestTimeout, transient: true},
		{code: http.StatusTooManyRequests, transient: true},
		{code: http.StatusInternalServerError, transient: true},
		{code: http.StatusBadGateway, transient: true},
		{code: http.StatusBadRequest, transient: false},
		{code: http.StatusNotFound, transient: false},
		{code: http.StatusGone, transient: false},
		{code: http.StatusUnprocessableEntity, transient: false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(`{"error": "nope"}`))
			}))
			defer srv.Close()

			sub, err := New(Config{Name: "greenhouse", SubmitURL: srv.URL, Confirm: "id"})
			require.NoError(t, err)

			_, err = sub.Submit(context.Background(), testRequest())
			require.Error(t, err)
			outcome := model.ClassifySubmissionError(err)
			if tt.transient {
				assert.Equal(t, model.OutcomeTransient, outcome.Kind)
			} else {
				assert.Equal(t, model.OutcomePermanent, outcome.Kind)
			}
		})
	}
}

func TestSubmit_InvalidJSONIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>thanks</html>`))
	}))
	defer srv.Close()

	sub, err := New(Config{Name: "greenhouse", SubmitURL: srv.URL, Confirm: "id"})
	require.NoError(t, err)

	_, err = sub.Submit(context.Background(), testRequest())
	var permanent *model.PermanentSubmissionError
	require.ErrorAs(t, err, &permanent)
}

func TestSubmit_CanceledContextIsReturnedAsIs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": "x"}`))
	}))
	defer srv.Close()

	sub, err := New(Config{Name: "greenhouse", SubmitURL: srv.URL, Confirm: "id"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sub.Submit(ctx, testRequest())
	require.True(t, errors.Is(err, context.Canceled))
}

func TestSubmit_UsesClientCredentials(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("client_id") != "autoapply" {
			t.Errorf("unexpected token request %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok-1", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id": "lv-1"}`))
	}))
	defer apiSrv.Close()

	sub, err := New(Config{
		Name:         "lever",
		SubmitURL:    apiSrv.URL,
		TokenURL:     tokenSrv.URL,
		ClientID:     "autoapply",
		ClientSecret: "s3cret",
		Scopes:       []string{"applications:write"},
		Confirm:      "id",
	})
	require.NoError(t, err)

	for range 2 {
		receipt, err := sub.Submit(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, "lv-1", receipt)
	}
	assert.Equal(t, int32(1), tokenCalls.Load(), "token is cached between submissions")
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("reference") {
		case "app-1":
			_, _ = w.Write([]byte(`{"applications": [{"reference": "app-1", "status": "received"}]}`))
		default:
			_, _ = w.Write([]byte(`{"applications": []}`))
		}
	}))
	defer srv.Close()

	newSub := func(statusURL string) *Submitter {
		sub, err := New(Config{
			Name:      "greenhouse",
			SubmitURL: srv.URL,
			StatusURL: statusURL,
			Confirm:   "id",
			Probe:     "applications[?status != 'withdrawn']",
		})
		require.NoError(t, err)
		return sub
	}

	confirmed, err := newSub(srv.URL+"/status?reference={application_id}").Probe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, confirmed)

	confirmed, err = newSub(srv.URL+"/status?reference=other").Probe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestProbe_DisabledWithoutExpression(t *testing.T) {
	sub, err := New(Config{Name: "greenhouse", SubmitURL: "http://127.0.0.1:0", Confirm: "id"})
	require.NoError(t, err)

	confirmed, err := sub.Probe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestProfileSchema(t *testing.T) {
	schema := []byte(`{"type":"object"}`)
	sub, err := New(Config{Name: "greenhouse", SubmitURL: "http://x", Confirm: "id", ProfileSchema: schema})
	require.NoError(t, err)
	assert.Equal(t, schema, sub.ProfileSchema())
	assert.Equal(t, "greenhouse", sub.Name())
}
