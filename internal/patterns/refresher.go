package patterns

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"
)

// MinRefreshInterval is the floor Start clamps RefresherConfig.Interval to.
const MinRefreshInterval = 5 * time.Minute

// DefaultRefreshInterval is the interval Start uses when none is configured.
const DefaultRefreshInterval = 30 * time.Minute

// RefresherConfig configures the optional background updater that keeps the
// disposable-domain list current from a public git-hosted source.
type RefresherConfig struct {
	RepoURL      string
	CloneDir     string
	ListFile     string // path of the domain list inside the clone, e.g. "disposable_email_blocklist.conf"
	PullCooldown time.Duration
	Username     string
	Password     string

	// DestPath is the on-disk pattern file Refresh overwrites — normally the
	// same path the Store's DisposableDomains was loaded from, so a
	// subsequent Store.Reload() picks the refreshed list straight up.
	DestPath string
	// Interval is how often Start re-runs Refresh. Zero defaults to
	// DefaultRefreshInterval; anything below MinRefreshInterval is clamped
	// up to it.
	Interval time.Duration
}

// DefaultRefresherConfig returns sane defaults for CloneDir/PullCooldown/Interval.
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		CloneDir:     filepath.Join(os.TempDir(), "mailverify-disposable-domains"),
		ListFile:     "disposable_email_blocklist.conf",
		PullCooldown: 30 * time.Minute,
		Interval:     DefaultRefreshInterval,
	}
}

// Refresher periodically clones or pulls a git repository that publishes a
// disposable-domain list and rewrites the on-disk pattern file the Store
// reads from, so the next Store reload picks up fresh entries. It never
// mutates a live Store directly; Start takes the Store to reload once each
// successful Refresh lands.
type Refresher struct {
	cfg RefresherConfig
	log *zap.SugaredLogger

	stop chan struct{}
	done chan struct{}
}

// NewRefresher constructs a Refresher. cfg.RepoURL must be set.
func NewRefresher(cfg RefresherConfig, log *zap.SugaredLogger) *Refresher {
	return &Refresher{cfg: cfg, log: log}
}

// Start launches the background refresh loop: on cfg.Interval (defaulted and
// floored per DefaultRefreshInterval/MinRefreshInterval), it refreshes
// cfg.DestPath and, on success, calls store.Reload() so the next lookup
// sees the updated list. A failed refresh is logged and leaves store
// untouched. Start returns immediately; call Stop to shut the loop down.
func (r *Refresher) Start(ctx context.Context, store *Store) {
	interval := resolveInterval(r.cfg.Interval)

	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				if err := r.Refresh(r.cfg.DestPath); err != nil {
					if r.log != nil {
						r.log.Warnw("disposable-list refresh failed, keeping previous list", "error", err)
					}
					continue
				}
				store.Reload()
			}
		}
	}()
}

// resolveInterval applies the DefaultRefreshInterval/MinRefreshInterval
// defaulting and floor rules to a configured interval.
func resolveInterval(configured time.Duration) time.Duration {
	if configured <= 0 {
		return DefaultRefreshInterval
	}
	if configured < MinRefreshInterval {
		return MinRefreshInterval
	}
	return configured
}

// Stop halts the refresh loop started by Start and waits for it to exit.
// Safe to call even if Start was never called.
func (r *Refresher) Stop() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.done
}

// Refresh clones the configured repo on first run, or pulls it (throttled by
// PullCooldown) on subsequent runs, then copies its list file to destPath.
// Any failure is returned without being logged here (Start logs it);
// callers typically treat it as non-fatal and keep serving the previously
// loaded Store.
func (r *Refresher) Refresh(destPath string) error {
	if r.cfg.RepoURL == "" {
		return errors.New("patterns: refresher has no repo URL configured")
	}
	if err := r.ensureRepo(); err != nil {
		return fmt.Errorf("patterns: prepare source repo: %w", err)
	}

	src := filepath.Join(r.cfg.CloneDir, r.cfg.ListFile)
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("patterns: read refreshed list: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("patterns: write refreshed list: %w", err)
	}
	if r.log != nil {
		r.log.Infow("refreshed disposable-domain list", "dest", destPath, "bytes", len(data))
	}
	return nil
}

func (r *Refresher) ensureRepo() error {
	dir := r.cfg.CloneDir

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return err
		}
		_, err := git.PlainClone(dir, false, &git.CloneOptions{
			URL:   r.cfg.RepoURL,
			Auth:  basicAuthOrNil(r.cfg.Username, r.cfg.Password),
			Depth: 1,
		})
		return err
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}

	stamp := filepath.Join(dir, ".lastpull")
	if stampFresh(stamp, r.cfg.PullCooldown) {
		return nil
	}

	pullErr := wt.Pull(&git.PullOptions{
		RemoteName: "origin",
		Depth:      1,
		Auth:       basicAuthOrNil(r.cfg.Username, r.cfg.Password),
		Force:      true,
	})
	if pullErr != nil && !errors.Is(pullErr, git.NoErrAlreadyUpToDate) {
		if r.log != nil {
			r.log.Warnw("pull failed, reclone attempt", "dir", dir, "error", pullErr)
		}
		_ = os.RemoveAll(dir)
		_, cloneErr := git.PlainClone(dir, false, &git.CloneOptions{
			URL:   r.cfg.RepoURL,
			Auth:  basicAuthOrNil(r.cfg.Username, r.cfg.Password),
			Depth: 1,
		})
		if cloneErr != nil {
			return fmt.Errorf("pull failed: %v; reclone failed: %w", pullErr, cloneErr)
		}
	}

	_ = os.WriteFile(stamp, []byte(time.Now().Format(time.RFC3339Nano)), 0o644)
	return nil
}

func basicAuthOrNil(user, pass string) *http.BasicAuth {
	if user == "" && pass == "" {
		return nil
	}
	return &http.BasicAuth{Username: user, Password: pass}
}

func stampFresh(stampPath string, maxAge time.Duration) bool {
	fi, err := os.Stat(stampPath)
	if err != nil {
		return false
	}
	return time.Since(fi.ModTime()) < maxAge
}
