/*
scheduler.go - Automatic backup scheduler

PURPOSE:
  Periodically writes a backup document to a local directory so the
  operator has a recent copy even if nobody presses "Export".

DESIGN:
  - Runs on a robfig/cron schedule ("@every <interval>")
  - One backup is taken immediately on start
  - Each run takes a Snapshot and writes it as tractor-pos-backup-DATE.json
  - One file per day: later runs on the same day overwrite it
  - The file is written to a temp name and renamed into place

CONFIGURATION:
  - Dir:      Target directory (empty disables the scheduler)
  - Interval: How often to write (default: 1 hour)

USAGE:
  scheduler := NewBackupScheduler(engine, dir, log, metrics)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ExportBackup endpoint (manual export)
  - billing/backup.go: Snapshot, WriteTo, FileName
*/
package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/tractor-pos/billing"
)

// DefaultBackupInterval is used when no interval is configured.
const DefaultBackupInterval = time.Hour

// BackupScheduler handles automatic backups.
type BackupScheduler struct {
	Engine   *billing.Engine
	Dir      string
	Interval time.Duration
	Log      *zap.Logger
	Metrics  *Metrics

	cron *cron.Cron
	wg   sync.WaitGroup
	mu   sync.Mutex

	lastMu  sync.Mutex
	lastRun time.Time
}

// NewBackupScheduler creates a new scheduler writing into dir.
func NewBackupScheduler(engine *billing.Engine, dir string, log *zap.Logger, metrics *Metrics) *BackupScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &BackupScheduler{
		Engine:   engine,
		Dir:      dir,
		Interval: DefaultBackupInterval,
		Log:      log,
		Metrics:  metrics,
	}
}

// Enabled reports whether a target directory is configured.
func (bs *BackupScheduler) Enabled() bool {
	return bs.Dir != ""
}

// Start begins the scheduler.
func (bs *BackupScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled() {
		bs.Log.Info("backup scheduler disabled, not starting")
		return
	}
	if bs.cron != nil {
		return
	}
	if bs.Interval <= 0 {
		bs.Interval = DefaultBackupInterval
	}

	bs.cron = cron.New()
	bs.cron.Schedule(cron.Every(bs.Interval), cron.FuncJob(bs.backup))
	bs.cron.Start()

	// Run immediately on start
	bs.wg.Add(1)
	go func() {
		defer bs.wg.Done()
		bs.backup()
	}()

	bs.Log.Info("backup scheduler started",
		zap.String("dir", bs.Dir),
		zap.Duration("interval", bs.Interval),
	)
}

// Stop stops the scheduler and waits for a running backup to finish.
func (bs *BackupScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.cron == nil {
		return
	}
	<-bs.cron.Stop().Done()
	bs.wg.Wait()
	bs.cron = nil
	bs.Log.Info("backup scheduler stopped")
}

func (bs *BackupScheduler) backup() {
	path, err := bs.RunNow(context.Background())
	if err != nil {
		bs.Metrics.AutoBackups.WithLabelValues("failed").Inc()
		bs.Log.Error("automatic backup failed", zap.Error(err))
		return
	}
	bs.Metrics.AutoBackups.WithLabelValues("ok").Inc()
	bs.Log.Info("automatic backup written", zap.String("file", path))
}

// RunNow writes a backup immediately and returns the file path.
func (bs *BackupScheduler) RunNow(ctx context.Context) (string, error) {
	doc, err := bs.Engine.Backup.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	if err := os.MkdirAll(bs.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(bs.Dir, doc.FileName())
	tmp, err := os.CreateTemp(bs.Dir, ".backup-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := doc.WriteTo(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move backup into place: %w", err)
	}

	bs.lastMu.Lock()
	bs.lastRun = time.Now()
	bs.lastMu.Unlock()
	return path, nil
}

// NextRunTime returns when the next scheduled backup will occur.
// While the scheduler runs this is the cron entry's next activation; a
// manual RunNow does not move it.
func (bs *BackupScheduler) NextRunTime() time.Time {
	bs.mu.Lock()
	c := bs.cron
	bs.mu.Unlock()
	if c != nil {
		if entries := c.Entries(); len(entries) > 0 && !entries[0].Next.IsZero() {
			return entries[0].Next
		}
	}

	bs.lastMu.Lock()
	defer bs.lastMu.Unlock()
	if bs.lastRun.IsZero() {
		return time.Now()
	}
	return bs.lastRun.Add(bs.Interval)
}
