package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/target/mmk-autoapply/config"
	"github.com/target/mmk-autoapply/internal/core"
	"github.com/target/mmk-autoapply/internal/data"
	"github.com/target/mmk-autoapply/internal/data/memstore"
	"github.com/target/mmk-autoapply/internal/devseed"
)

// Store bundles the record store ports backed by a single driver.
type Store struct {
	Applications core.ApplicationRepository
	Tasks        core.TaskRepository
	Reaper       core.ReaperRepository
	Jobs         core.JobCatalog
	Resumes      core.ResumeCatalog
	Logs         core.SubmissionLogRepository

	// DB is set for the postgres driver and nil otherwise.
	DB *sql.DB
	// seed receives the development catalog.
	seed devseed.Target
}

// Ping reports whether the backing database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.PingContext(ctx)
}

// Close releases the database pool.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStore connects the configured driver, applies migrations when asked,
// and seeds the development catalog in dev mode.
func OpenStore(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Store, error) {
	var store *Store
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory record store; state is lost on restart")
		store = newMemoryStore()
	default:
		db, err := ConnectDB(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, logger); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		store = newPostgresStore(db, logger)
	}

	if cfg.IsDev {
		fixtures, err := devseed.DefaultFixtures()
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("load dev fixtures: %w", err)
		}
		if err := devseed.Run(ctx, store.seed, fixtures, logger.With("component", "devseed")); err != nil {
			logger.WarnContext(ctx, "dev seed incomplete", "error", err)
		}
	}
	return store, nil
}

func newMemoryStore() *Store {
	mem := memstore.New(memstore.Options{})
	return &Store{
		Applications: mem,
		Tasks:        mem,
		Reaper:       mem,
		Jobs:         mem,
		Resumes:      mem,
		Logs:         mem,
		seed:         devseed.MemoryTarget{Store: mem},
	}
}

func newPostgresStore(db *sql.DB, logger *slog.Logger) *Store {
	tasks := data.NewTaskRepo(db, data.TaskRepoConfig{Logger: logger})
	catalog := data.NewCatalogRepo(db)
	return &Store{
		Applications: data.NewApplicationRepo(db, data.RepoConfig{}),
		Tasks:        tasks,
		Reaper:       tasks,
		Jobs:         catalog,
		Resumes:      catalog,
		Logs:         data.NewSubmissionLogRepo(db, data.RepoConfig{}),
		DB:           db,
		seed:         devseed.SQLTarget{DB: db},
	}
}
