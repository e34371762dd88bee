package submitters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-autoapply/internal/adapters/submitters/atsapi"
	"github.com/target/mmk-autoapply/internal/adapters/submitters/browser"
	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/domain/model"
)

type nopOpener struct{}

func (nopOpener) OpenPage(context.Context) (browser.Page, error) {
	return nil, context.Canceled
}

const sampleFile = `
submitters:
  - name: greenhouse
    kind: atsapi
    hosts: [greenhouse.io]
    atsapi:
      submit_url: https://ats.example.com/{job_id}/applications
      token_url: https://ats.example.com/token
      client_id_env: GH_ID
      client_secret_env: GH_SECRET
      confirm: id
      profile_schema: profile.json
      timeout: 20s
  - name: lever
    kind: browser
    browser:
      fields:
        "input[name=email]": resume.email
      submit_selector: button[type=submit]
      confirmation_selector: .thanks
      step_timeout: 5s
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleFile))
	require.NoError(t, err)
	require.Len(t, f.Submitters, 2)

	gh := f.Submitters[0]
	assert.Equal(t, KindATSAPI, gh.Kind)
	assert.Equal(t, []string{"greenhouse.io"}, gh.Hosts)
	require.NotNil(t, gh.ATSAPI)
	assert.Equal(t, 20*time.Second, gh.ATSAPI.Timeout)
	assert.Equal(t, "GH_SECRET", gh.ATSAPI.ClientSecretEnv)

	lever := f.Submitters[1]
	require.NotNil(t, lever.Browser)
	assert.Equal(t, 5*time.Second, lever.Browser.StepTimeout)
	assert.Equal(t, "resume.email", lever.Browser.Fields["input[name=email]"])
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Submitters)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("submitters:\n  - name: x\n    knd: manual\n"))
	require.Error(t, err)
}

func writeSchema(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile.json"), []byte(`{"type":"object"}`), 0o600))
	return dir
}

func TestBuild(t *testing.T) {
	f, err := Parse([]byte(sampleFile))
	require.NoError(t, err)

	env := map[string]string{"GH_ID": "id", "GH_SECRET": "secret"}
	reg, err := Build(f, BuildOptions{
		Pages:   nopOpener{},
		BaseDir: writeSchema(t),
		Getenv:  func(k string) string { return env[k] },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"greenhouse", "lever", "manual"}, reg.Names())

	sub, err := reg.Resolve(&model.Job{Source: "greenhouse"})
	require.NoError(t, err)
	require.IsType(t, &atsapi.Submitter{}, sub)
	schema, ok := sub.(core.ProfileSchemaProvider)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"object"}`, string(schema.ProfileSchema()))

	sub, err = reg.Resolve(&model.Job{Source: "lever"})
	require.NoError(t, err)
	assert.IsType(t, &browser.Submitter{}, sub)
}

func TestBuild_SkipsBrowserWithoutPages(t *testing.T) {
	f, err := Parse([]byte(sampleFile))
	require.NoError(t, err)

	reg, err := Build(f, BuildOptions{
		BaseDir: writeSchema(t),
		Getenv:  func(string) string { return "set" },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"greenhouse", "manual"}, reg.Names())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown kind", yaml: "submitters:\n  - name: x\n    kind: fax\n"},
		{name: "missing atsapi block", yaml: "submitters:\n  - name: x\n    kind: atsapi\n"},
		{name: "missing browser block", yaml: "submitters:\n  - name: x\n    kind: browser\n"},
		{name: "misnamed manual", yaml: "submitters:\n  - name: by-hand\n    kind: manual\n"},
		{
			name: "credentials missing",
			yaml: "submitters:\n  - name: x\n    kind: atsapi\n    atsapi:\n      submit_url: http://x\n" +
				"      confirm: id\n      token_url: http://x/token\n      client_id_env: NOPE\n",
		},
		{
			name: "schema file missing",
			yaml: "submitters:\n  - name: x\n    kind: atsapi\n    atsapi:\n      submit_url: http://x\n" +
				"      confirm: id\n      profile_schema: missing.json\n",
		},
		{
			name: "duplicate names",
			yaml: "submitters:\n  - name: manual\n    kind: manual\n  - name: Manual\n    kind: manual\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Build(f, BuildOptions{
				Pages:   nopOpener{},
				BaseDir: t.TempDir(),
				Getenv:  func(string) string { return "" },
			})
			require.Error(t, err)
		})
	}
}

func TestBuild_NilFileStillHasManual(t *testing.T) {
	reg, err := Build(nil, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{model.SourceManual}, reg.Names())
}

func TestLoadFile_ShippedConfig(t *testing.T) {
	path := filepath.Join("..", "..", "..", "config", "submitters.yaml")
	f, err := LoadFile(path)
	require.NoError(t, err)

	reg, err := Build(f, BuildOptions{
		Pages:   nopOpener{},
		BaseDir: filepath.Dir(path),
		Getenv:  func(string) string { return "placeholder" },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"greenhouse", "lever", "manual"}, reg.Names())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
