package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/internal/config"
	"github.com/Faultbox/mldeformer/internal/framecache"
	"github.com/Faultbox/mldeformer/internal/logger"
)

// reloadDelay debounces bursts of file events into one reload.
const reloadDelay = 250 * time.Millisecond

func cmdWatch(cfg *config.Config, args []string) {
	manifest, _ := manifestArgs(cfg, args, 0, "watch [manifest]")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, cfg, manifest); err != nil {
		fatalf("%v", err)
	}
}

// watch keeps a cache built for manifest and rebuilds it whenever a file in
// the manifest's directory changes, until ctx is done.
func watch(ctx context.Context, cfg *config.Config, manifest string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(manifest)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	mgr := assets.NewManager()
	defer mgr.Close()

	var cache *framecache.Cache
	rebuild := func() {
		mgr.Invalidate(manifest)
		c, err := openCache(cfg, mgr, manifest)
		if err != nil {
			logger.Warn("asset reload failed", zap.String("manifest", manifest), zap.Error(err))
			return
		}
		if cache != nil {
			cache.Close()
		}
		cache = c
		n := cache.Prefetch(0, cache.NumFrames()-1)
		_, loads := mgr.Stats()
		logger.Info("frame cache rebuilt",
			zap.String("manifest", manifest),
			zap.Int("asset_loads", loads),
			zap.Int("capacity", cache.Capacity()),
			zap.Int("prefetched", n),
			zap.Int("bytes", cache.CalcMemUsageInBytes()))
	}
	defer func() {
		if cache != nil {
			cache.Close()
		}
	}()

	rebuild()
	logger.Info("watching asset", zap.String("dir", dir))

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("asset file changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
				timer.Reset(reloadDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			rebuild()
		}
	}
}
