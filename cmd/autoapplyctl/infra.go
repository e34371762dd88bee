package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-autoapply/config"
	"github.com/target/mmk-autoapply/internal/bootstrap"
)

const commandTimeout = 2 * time.Minute

// runtime is the slice of the application an operator command needs: the
// record store and the queue/facade services, without HTTP or auth.
type runtime struct {
	Store    *bootstrap.Store
	Services bootstrap.ServiceContainer
	Redis    redis.UniversalClient

	// release overrides the default teardown.
	release func() error
}

// Close releases the store and the optional Redis client.
func (r *runtime) Close() error {
	if r.release != nil {
		return r.release()
	}
	var errs []error
	if err := r.Services.Observability.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close metrics: %w", err))
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

type runtimeOpener func(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*runtime, error)

// openRuntime connects the configured store and wires the services with the
// worker role only, so no auth backend is required.
func openRuntime(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*runtime, error) {
	cfg.Services = string(config.ServiceModeWorker)

	store, err := bootstrap.OpenStore(ctx, &cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt := &runtime{Store: store}

	if cfg.Redis.Enabled() {
		client, err := bootstrap.ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis unavailable; in-flight guard disabled", "error", err)
		} else {
			rt.Redis = client
		}
	}

	services, err := bootstrap.NewServices(ctx, bootstrap.ServiceDeps{
		Config:      &cfg,
		Store:       store,
		RedisClient: rt.Redis,
		Logger:      logger,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Services = services
	return rt, nil
}

// withRuntime opens the runtime for the duration of fn.
func (c *cli) withRuntime(ctx context.Context, fn func(context.Context, *runtime) error) error {
	rt, err := c.open(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			c.logger.Warn("close runtime", "error", closeErr)
		}
	}()
	return fn(ctx, rt)
}

// withDatabase connects to Postgres with a bounded timeout.
func (c *cli) withDatabase(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	if c.cfg.Store.Driver == config.StoreDriverMemory {
		return errors.New("command requires STORE_DRIVER=postgres")
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, c.cfg.Postgres, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			c.logger.Warn("close database", "error", closeErr)
		}
	}()
	return fn(ctx, db)
}

// guardRemoteHost refuses to write to a database that does not look local
// unless allow is set and the operator types the host name back.
func (c *cli) guardRemoteHost(errOut io.Writer, allow bool, action string) error {
	host := c.cfg.Postgres.Host
	if !isLikelyRemoteHost(host) {
		return nil
	}
	if !allow {
		return fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			host,
		)
	}
	return requireRemoteHostConfirmation(c.in, errOut, action, host)
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	switch {
	case h == "":
		return false
	case h == "localhost", h == "127.0.0.1", h == "::1":
		return false
	case strings.HasSuffix(h, ".local"):
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func requireRemoteHostConfirmation(in io.Reader, errOut io.Writer, action, host string) error {
	if err := writef(errOut,
		"\nWARNING: database host %q does not look like a local address.\nThis operation will %s.\n"+
			"Type %q to continue or press enter to abort: ",
		host, action, host,
	); err != nil {
		return fmt.Errorf("print remote host prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(resp) != host {
		return errors.New("aborted by user")
	}
	return nil
}
