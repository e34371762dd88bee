// Package testutil holds fixtures and infrastructure helpers for integration
// tests. Postgres and Redis are optional: tests skip when they are not
// reachable unless TEST_REQUIRE_DB, TEST_REQUIRE_REDIS or TEST_REQUIRE_INFRA
// is set.
package testutil

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/target/mmk-autoapply/internal/migrate"
)

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Skipf(format string, args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(func())
}

// TestDBConfig locates the integration database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig reads TEST_DB_* with defaults matching docker-compose.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     getEnvOrDefault("TEST_DB_HOST", "localhost"),
		Port:     getEnvOrDefault("TEST_DB_PORT", "55432"),
		User:     getEnvOrDefault("TEST_DB_USER", "autoapply"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "autoapply"),
		DBName:   getEnvOrDefault("TEST_DB_NAME", "autoapply"),
	}
}

func (c TestDBConfig) dsn(schema string) string {
	q := url.Values{"sslmode": {"disable"}}
	if schema != "" {
		q.Set("search_path", schema)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SkipIfNoTestDB skips t when the database cannot be reached, or fails it
// when the database is required.
func SkipIfNoTestDB(t TestingTB) {
	t.Helper()
	db, err := sql.Open("pgx", DefaultTestDBConfig().dsn(""))
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = db.PingContext(ctx)
		cancel()
		_ = db.Close()
	}
	if err == nil {
		return
	}
	if requireDB() {
		t.Fatalf("test database required but unavailable: %v", err)
	}
	t.Skipf("test database unavailable: %v", err)
}

// WithAutoDB runs fn against a freshly migrated schema that is dropped when
// the test ends, so tests never see each other's rows.
func WithAutoDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()
	cfg := DefaultTestDBConfig()
	ctx := context.Background()

	admin, err := sql.Open("pgx", cfg.dsn(""))
	if err != nil {
		t.Fatalf("open admin connection: %v", err)
	}
	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		_ = admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	db, err := sql.Open("pgx", cfg.dsn(schema+",public"))
	if err != nil {
		t.Fatalf("open schema connection: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		if _, dropErr := admin.ExecContext(ctx, "DROP SCHEMA "+schema+" CASCADE"); dropErr != nil {
			t.Logf("drop schema %s: %v", schema, dropErr)
		}
		_ = admin.Close()
	})

	if _, err = migrate.Run(ctx, db, nil); err != nil {
		t.Fatalf("migrate schema %s: %v", schema, err)
	}
	fn(db)
}

// TaskStateInfo is one automation_tasks row as seen by InspectTaskStates.
type TaskStateInfo struct {
	ID            string
	ApplicationID string
	State         string
	Attempts      int
	LeaseExpires  *time.Time
	LastError     *string
}

// InspectTaskStates returns every task row ordered by creation.
func InspectTaskStates(t TestingTB, db *sql.DB) []TaskStateInfo {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), `
		SELECT id, application_id, state, attempts, lease_expires_at, last_error
		FROM automation_tasks ORDER BY created_at, id`)
	if err != nil {
		t.Fatalf("query tasks: %v", err)
	}
	defer rows.Close()

	var out []TaskStateInfo
	for rows.Next() {
		var (
			info    TaskStateInfo
			lease   sql.NullTime
			lastErr sql.NullString
		)
		if err = rows.Scan(&info.ID, &info.ApplicationID, &info.State, &info.Attempts, &lease, &lastErr); err != nil {
			t.Fatalf("scan task: %v", err)
		}
		if lease.Valid {
			info.LeaseExpires = &lease.Time
		}
		if lastErr.Valid {
			info.LastError = &lastErr.String
		}
		out = append(out, info)
	}
	if err = rows.Err(); err != nil {
		t.Fatalf("iterate tasks: %v", err)
	}
	return out
}

// RunConcurrent starts every fn at once and returns their errors in order.
func RunConcurrent(funcs ...func() error) []error {
	errs := make([]error, len(funcs))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, fn := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }
