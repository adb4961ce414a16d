package patterns_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailverify/internal/patterns"
)

func TestRefresher_Refresh_NoRepoURLErrors(t *testing.T) {
	r := patterns.NewRefresher(patterns.RefresherConfig{}, nil)
	err := r.Refresh(filepath.Join(t.TempDir(), "out.txt"))
	assert.Error(t, err)
}

func TestRefresher_StopBeforeStartIsNoop(t *testing.T) {
	r := patterns.NewRefresher(patterns.DefaultRefresherConfig(), nil)
	r.Stop() // must not panic or block
}

func TestRefresher_StartStopShutsDownLoopPromptly(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "disposable_domains.txt")
	require.NoError(t, os.WriteFile(dest, []byte("mailinator.com\n"), 0o644))

	store := patterns.Load(patterns.Paths{DisposableDomains: dest}, nil)

	cfg := patterns.DefaultRefresherConfig()
	cfg.DestPath = dest
	cfg.Interval = time.Hour // long enough that no tick fires during the test
	r := patterns.NewRefresher(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx, store)

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly")
	}
	cancel()
}

func TestDefaultRefresherConfig_IntervalMatchesSpecDefault(t *testing.T) {
	cfg := patterns.DefaultRefresherConfig()
	assert.Equal(t, patterns.DefaultRefreshInterval, cfg.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Interval)
}
