package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/dispatch/internal/config"
	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/mcp"
	"github.com/marcus/dispatch/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the task tools over MCP on stdio",
	Long: `Run dispatch as a long-lived MCP server on stdin/stdout.

When digest.cron and digest.assignees are configured, the work-queue
digest runs on that schedule in the same process. Edits to the config
file are picked up for the log level and the digest schedule.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("no-mcp", false, "Only run the digest schedule")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	noMCP, _ := cmd.Flags().GetBool("no-mcp")

	cfg, loader, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := initLogging(cmd, cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("serve")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("received signal %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	b, err := openBackend(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer b.Close()

	if !cfg.Digest.Enabled() && noMCP {
		return fmt.Errorf("--no-mcp needs digest.cron and digest.assignees")
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	r := newReloader(ctx, b, cfg.Digest, verbose)
	if cfg.Digest.Enabled() {
		if err := r.startDigest(cfg.Digest); err != nil {
			return err
		}
	}
	defer r.stop()

	if loader.ConfigFile() != "" {
		loader.Watch(r.apply, func(err error) {
			log.WarnCtx("ignoring invalid config edit", map[string]any{
				"file":  loader.ConfigFile(),
				"error": err.Error(),
			})
		})
		log.InfoCtx("watching config", map[string]any{"file": loader.ConfigFile()})
	}

	if noMCP {
		log.InfoCtx("digest running", map[string]any{
			"next_run": r.nextRun().Format(time.RFC3339),
		})
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- mcp.Serve(mcp.NewServer(b.svc, Version))
	}()
	log.Info("mcp server listening on stdio")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// reloader owns the digest schedule of a running serve and applies config
// file edits to it and to the log level.
type reloader struct {
	mu      sync.Mutex
	ctx     context.Context
	b       *backend
	verbose bool
	digest  config.DigestConfig
	sched   *scheduler.Scheduler
	log     *logging.Logger
}

func newReloader(ctx context.Context, b *backend, digest config.DigestConfig, verbose bool) *reloader {
	return &reloader{
		ctx:     ctx,
		b:       b,
		verbose: verbose,
		digest:  digest,
		log:     logging.Component("serve"),
	}
}

// startDigest creates the scheduler on first use and starts it for dc.
func (r *reloader) startDigest(dc config.DigestConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(dc)
}

func (r *reloader) startLocked(dc config.DigestConfig) error {
	if r.sched == nil {
		loc, err := dc.Location()
		if err != nil {
			return fmt.Errorf("digest timezone: %w", err)
		}
		sched, err := scheduler.NewFromConfig(dc, scheduler.NewDigest(r.b.svc, dc.Assignees, dc.Horizon, loc).Run)
		if err != nil {
			return err
		}
		r.sched = sched
	} else if err := configureDigest(r.sched, r.b, dc); err != nil {
		return err
	}
	if err := r.sched.Start(r.ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	r.digest = dc
	return nil
}

func (r *reloader) stopLocked() {
	if r.sched == nil {
		return
	}
	if err := r.sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		r.log.Errorf("stop scheduler: %v", err)
	}
}

// apply takes a freshly validated config. --verbose keeps winning over the
// file's log level.
func (r *reloader) apply(next *config.Config) {
	if err := logging.SetLevel(effectiveLevel(next, r.verbose)); err != nil {
		r.log.Warnf("config reload: %v", err)
	}
	r.log.InfoCtx("config reloaded", map[string]any{"level": logging.Get().Level().String()})

	r.mu.Lock()
	defer r.mu.Unlock()
	if digestEqual(r.digest, next.Digest) {
		return
	}
	r.stopLocked()
	if !next.Digest.Enabled() {
		r.log.Info("digest disabled by config reload")
		r.digest = next.Digest
		return
	}
	if err := r.startLocked(next.Digest); err != nil {
		r.log.Errorf("config reload: %v", err)
	}
}

func (r *reloader) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *reloader) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched != nil && r.sched.IsRunning()
}

func (r *reloader) nextRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sched == nil {
		return time.Time{}
	}
	return r.sched.NextRun()
}

func configureDigest(sched *scheduler.Scheduler, b *backend, dc config.DigestConfig) error {
	loc, err := dc.Location()
	if err != nil {
		return fmt.Errorf("digest timezone: %w", err)
	}
	if err := sched.SetCron(dc.Cron); err != nil {
		return err
	}
	sched.SetLocation(loc)
	sched.SetJob(scheduler.NewDigest(b.svc, dc.Assignees, dc.Horizon, loc).Run)
	return nil
}

func digestEqual(a, b config.DigestConfig) bool {
	if a.Cron != b.Cron || a.Horizon != b.Horizon || a.Timezone != b.Timezone || len(a.Assignees) != len(b.Assignees) {
		return false
	}
	for i := range a.Assignees {
		if a.Assignees[i] != b.Assignees[i] {
			return false
		}
	}
	return true
}
