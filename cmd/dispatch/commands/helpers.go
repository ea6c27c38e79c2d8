package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/activity"
	"github.com/marcus/dispatch/internal/config"
	"github.com/marcus/dispatch/internal/db"
	"github.com/marcus/dispatch/internal/lock"
	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/service"
	"github.com/marcus/dispatch/internal/store"
	"github.com/marcus/dispatch/internal/tasks"
	"github.com/marcus/dispatch/internal/ui"
)

// loadConfig reads --config when given, otherwise the default locations.
func loadConfig(cmd *cobra.Command) (*config.Config, *config.Loader, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadFromPaths(".", config.DefaultConfigDir())
}

// effectiveLevel is the configured log level unless --verbose forces debug.
func effectiveLevel(cfg *config.Config, verbose bool) string {
	if verbose {
		return "debug"
	}
	return cfg.Logging.Level
}

func initLogging(cmd *cobra.Command, cfg *config.Config) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return logging.Init(logging.Config{
		Level:  effectiveLevel(cfg, verbose),
		Path:   cfg.ExpandedLogPath(),
		Format: cfg.Logging.Format,
	})
}

// backend is a service together with the resources it holds open.
type backend struct {
	svc     *service.Service
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend builds the service from config. One-shot commands cannot use
// the memory store since nothing would outlive the process, so they fall
// back to sqlite at store.path.
func openBackend(ctx context.Context, cfg *config.Config, oneShot bool) (*backend, error) {
	log := logging.Component("backend")
	b := &backend{}

	driver := cfg.Store.Driver
	if driver == "" || (driver == config.StoreMemory && oneShot) {
		driver = config.StoreSQLite
	}

	var (
		st  store.Store
		acl activity.Log
	)
	switch driver {
	case config.StoreMemory:
		st = store.NewMemory(nil)
		acl = activity.NewMemory(nil)
	case config.StoreSQLite:
		database, err := db.Open(cfg.ExpandedStorePath())
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		b.closers = append(b.closers, func() { _ = database.Close() })
		st = store.NewSQLite(database, nil)
		acl = activity.NewSQLite(database, nil)
	case config.StorePostgres:
		pg, err := store.OpenPostgres(ctx, cfg.Store.DSN, nil)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		b.closers = append(b.closers, pg.Close)
		st = pg
		pgLog, err := activity.NewPostgres(ctx, pg.Pool(), nil)
		if err != nil {
			b.Close()
			return nil, err
		}
		acl = pgLog
	default:
		return nil, config.ErrInvalidStoreDriver
	}

	var locker lock.Locker
	switch cfg.Lock.Driver {
	case config.LockRedis:
		r, err := lock.NewRedis(ctx, cfg.Lock.RedisAddr, cfg.Lock.TTL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = r.Close() })
		locker = r
	default:
		locker = lock.NewLocal()
	}

	log.DebugCtx("backend ready", map[string]any{
		"store": driver,
		"lock":  cfg.Lock.Driver,
	})

	b.svc = service.New(
		service.WithStore(st),
		service.WithActivityLog(acl),
		service.WithLocker(locker),
		service.WithRegistry(cfg.TaskRegistry()),
		service.WithSkipCancelled(cfg.Reconcile.SkipCancelled),
	)
	return b, nil
}

// setup loads config, initializes logging, and opens a one-shot backend.
func setup(cmd *cobra.Command) (*backend, *config.Config, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := initLogging(cmd, cfg); err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	b, err := openBackend(cmd.Context(), cfg, true)
	if err != nil {
		return nil, nil, err
	}
	return b, cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTasks(w io.Writer, ts []*tasks.Task) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREFERENCE\tTASK\tASSIGNEE\tPRIORITY\tSTATUS\tDEADLINE")
	fmt.Fprintln(tw, "--\t---------\t----\t--------\t--------\t------\t--------")
	for _, t := range ts {
		fmt.Fprintf(tw, "%d\t%s/%d\t%s\t%d\t%s\t%s\t%s\n",
			t.ID,
			t.ReferenceType, t.ReferenceID,
			t.Type,
			t.AssigneeID,
			orDash(string(t.Priority)),
			t.Status,
			ui.FormatMillis(t.Deadline),
		)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d task(s)\n", len(ts))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
