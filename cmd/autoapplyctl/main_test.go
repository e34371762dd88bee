package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-autoapply/config"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	file := filepath.Join(t.TempDir(), "submitters.yaml")
	require.NoError(t, os.WriteFile(file, []byte("submitters:\n  - name: manual\n    kind: manual\n"), 0o600))
	return config.AppConfig{
		IsDev:    true,
		LogLevel: "error",
		Store:    config.StoreConfig{Driver: config.StoreDriverMemory},
		ApplyRunner: config.ApplyRunnerConfig{
			Concurrency:   1,
			TaskLease:     time.Minute,
			SubmitTimeout: time.Second,
			PollInterval:  10 * time.Millisecond,
			MaxAttempts:   1,
		},
		Reaper:     config.ReaperConfig{Interval: time.Hour, SubmissionLogMaxAge: time.Hour, BatchSize: 10},
		Submitters: config.SubmittersConfig{File: file},
	}
}

// sharedOpener keeps one in-memory runtime alive across commands so state
// written by one invocation is visible to the next.
func sharedOpener(t *testing.T) runtimeOpener {
	t.Helper()
	var rt *runtime
	t.Cleanup(func() {
		if rt != nil {
			_ = rt.Close()
		}
	})
	return func(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*runtime, error) {
		if rt == nil {
			opened, err := openRuntime(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			rt = opened
		}
		return &runtime{Store: rt.Store, Services: rt.Services, release: func() error { return nil }}, nil
	}
}

func execute(t *testing.T, c *cli, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.out = &out
	root := newRootCmd(c)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newTestCLI(t *testing.T) *cli {
	t.Helper()
	cfg := testConfig(t)
	return &cli{
		loadConfig: func(...string) (config.AppConfig, error) { return cfg, nil },
		open:       sharedOpener(t),
		in:         strings.NewReader(""),
	}
}

func TestApplyListAndCancel(t *testing.T) {
	c := newTestCLI(t)

	out, err := execute(t, c, "apply", "dev-greenhouse-backend", "--user", "dev-user")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "queued application="), out)
	taskID := fieldValue(out, "task")
	require.NotEmpty(t, taskID)

	out, err = execute(t, c, "apply", "dev-greenhouse-backend", "--user", "dev-user")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "existing application="), out)

	out, err = execute(t, c, "list", "--user", "dev-user", "--status", "applying")
	require.NoError(t, err)
	assert.Contains(t, out, "applying")

	out, err = execute(t, c, "cancel", taskID, "--user", "dev-user")
	require.NoError(t, err)
	assert.Contains(t, out, "status=failed")

	out, err = execute(t, c, "list", "--user", "dev-user", "--status", "applying")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1, "only the header remains: %q", out)
}

func TestApplyRequiresUser(t *testing.T) {
	c := newTestCLI(t)
	_, err := execute(t, c, "apply", "dev-greenhouse-backend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user")
}

func TestApplyUnknownJob(t *testing.T) {
	c := newTestCLI(t)
	_, err := execute(t, c, "apply", "no-such-job", "--user", "dev-user")
	require.Error(t, err)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	c := newTestCLI(t)
	_, err := execute(t, c, "list", "--user", "dev-user", "--status", "ghosted")
	require.Error(t, err)
}

func TestSubmittersListsRegistry(t *testing.T) {
	c := newTestCLI(t)
	out, err := execute(t, c, "submitters")
	require.NoError(t, err)
	assert.Equal(t, "manual\n", out)
}

func TestReapRunsOnce(t *testing.T) {
	c := newTestCLI(t)
	out, err := execute(t, c, "reap")
	require.NoError(t, err)
	assert.Contains(t, out, "reaper pass complete")
}

func TestDatabaseCommandsRequirePostgres(t *testing.T) {
	c := newTestCLI(t)
	_, err := execute(t, c, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER=postgres")
}

func TestIsLikelyRemoteHost(t *testing.T) {
	tests := map[string]bool{
		"":                    false,
		"localhost":           false,
		"127.0.0.1":           false,
		"::1":                 false,
		"db.local":            false,
		"127.0.0.2":           false,
		"10.1.2.3":            true,
		"db.prod.example.com": true,
	}
	for host, want := range tests {
		assert.Equal(t, want, isLikelyRemoteHost(host), host)
	}
}

func TestGuardRemoteHost(t *testing.T) {
	c := &cli{cfg: config.AppConfig{Postgres: config.DatabaseConfig{Host: "db.prod.example.com"}}}
	var errOut bytes.Buffer

	c.in = strings.NewReader("")
	require.Error(t, c.guardRemoteHost(&errOut, false, "seed"))

	c.in = strings.NewReader("wrong\n")
	require.Error(t, c.guardRemoteHost(&errOut, true, "seed"))

	c.in = strings.NewReader("db.prod.example.com\n")
	require.NoError(t, c.guardRemoteHost(&errOut, true, "seed"))
	assert.Contains(t, errOut.String(), "WARNING")
}

func fieldValue(line, key string) string {
	for _, f := range strings.Fields(line) {
		if v, ok := strings.CutPrefix(f, key+"="); ok {
			return v
		}
	}
	return ""
}
