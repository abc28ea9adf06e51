package hub

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
)

// Backup periodically copies the state document aside so an operator can
// recover from a bad mutation. The whole document is small, so a plain
// copy is enough.
type Backup struct {
	store  *Store
	cron   *cron.Cron
	keep   int
	logger *slog.Logger
}

// NewBackup schedules state-file backups with the given cron pattern.
// keep bounds how many backup files are retained; older ones are pruned.
func NewBackup(log *slog.Logger, store *Store, pattern string, keep int) (*Backup, error) {
	if log == nil {
		log = slog.Default()
	}
	if keep <= 0 {
		keep = 7
	}
	b := &Backup{
		store:  store,
		cron:   cron.New(),
		keep:   keep,
		logger: log.With(slog.String("component", "backup")),
	}
	if _, err := b.cron.AddFunc(pattern, b.run); err != nil {
		return nil, fmt.Errorf("invalid backup cron pattern: %w", err)
	}
	return b, nil
}

func (b *Backup) Start() { b.cron.Start() }

func (b *Backup) Stop() {
	<-b.cron.Stop().Done()
}

func (b *Backup) run() {
	if err := b.Once(time.Now()); err != nil {
		b.logger.Error("backup failed", slog.Any("error", err))
	}
}

// Once copies the current state file to <path>.bak-<timestamp> and prunes
// old backups. A missing state file is not an error; there is nothing to
// back up yet.
func (b *Backup) Once(now time.Time) error {
	src := b.store.Path()
	raw, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read state: %w", err)
	}
	dst := fmt.Sprintf("%s.bak-%s", src, now.UTC().Format("20060102T150405"))
	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	b.logger.Info("state backed up", slog.String("path", dst))
	return b.prune()
}

func (b *Backup) prune() error {
	matches, err := filepath.Glob(b.store.Path() + ".bak-*")
	if err != nil {
		return err
	}
	if len(matches) <= b.keep {
		return nil
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-b.keep] {
		if err := os.Remove(old); err != nil {
			b.logger.Warn("prune backup failed",
				slog.String("path", old),
				slog.Any("error", err),
			)
		}
	}
	return nil
}
