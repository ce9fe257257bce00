package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/vladzaharia/dangerprep-sub010/pkg/config"
	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/health"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/service"
	"github.com/vladzaharia/dangerprep-sub010/pkg/storage"
	"github.com/vladzaharia/dangerprep-sub010/pkg/transfer"
	"github.com/vladzaharia/dangerprep-sub010/pkg/watch"
)

// Destination disk thresholds for the built-in probe
const (
	diskDownBelow     = 100 << 20 // 100MB
	diskDegradedBelow = 1 << 30   // 1GB
)

// fileAgent wires the reference file pipeline into the host: local
// source tree, local destination tree, bbolt completion markers, disk
// probes, and optionally a directory watcher that converts settled
// source changes into out-of-schedule syncs.
type fileAgent struct {
	cfg    *config.Config
	logger zerolog.Logger

	markers storage.Store
	watcher *watch.Watcher
}

func newFileAgent(cfg *config.Config) *fileAgent {
	return &fileAgent{
		cfg:    cfg,
		logger: log.WithComponent("file-agent"),
	}
}

// Name implements service.Agent
func (a *fileAgent) Name() string {
	return "file-agent"
}

// Init implements service.Agent
func (a *fileAgent) Init(ctx context.Context, rt *service.Runtime) error {
	cfg := a.cfg

	if len(cfg.ContentTypes) == 0 {
		a.logger.Warn().Msg("No content types configured, nothing to sync")
		return nil
	}
	if cfg.Agent.SourceRoot == "" {
		return errdefs.New(errdefs.ClassConfiguration, "agent.source_root is required when content types are configured")
	}

	src, err := transfer.NewFileSource(cfg.Agent.SourceRoot)
	if err != nil {
		return err
	}
	sink, err := transfer.NewFileSink(cfg.Agent.DestinationRoot)
	if err != nil {
		return err
	}

	a.markers, err = storage.NewBoltStore(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	tr := transfer.NewFileTransferor(src, sink, transfer.FileTransferorConfig{
		BandwidthLimit: int64(cfg.Agent.BandwidthLimit),
		VerifyChecksum: cfg.Agent.VerifyChecksum,
		Markers:        a.markers,
	})
	if err := rt.UseSyncPipeline(src, tr); err != nil {
		return err
	}

	if err := a.registerProbes(rt); err != nil {
		return err
	}
	if cfg.Watch.Enabled {
		if err := a.startWatcher(rt); err != nil {
			return err
		}
	}
	return nil
}

// registerProbes guards the destination and keeps an eye on the source
func (a *fileAgent) registerProbes(rt *service.Runtime) error {
	dest := a.cfg.Agent.DestinationRoot
	if err := rt.RegisterProbe("destination-disk", true,
		health.NewDiskProbe(dest, diskDownBelow, diskDegradedBelow), 0); err != nil {
		return err
	}
	if err := rt.RegisterProbe("destination-writable", true,
		health.NewWritableProbe(dest), 0); err != nil {
		return err
	}
	// Source availability is advisory; removable media come and go
	return rt.RegisterProbe("source-disk", false,
		health.NewDiskProbe(a.cfg.Agent.SourceRoot, 0, 0), 0)
}

// startWatcher observes each content type's source subtree and
// triggers a sync when a change burst settles
func (a *fileAgent) startWatcher(rt *service.Runtime) error {
	w, err := watch.NewWatcher(time.Duration(a.cfg.Watch.Debounce))
	if err != nil {
		return err
	}

	byRoot := make(map[string]string)
	for _, ct := range a.cfg.ContentTypes {
		sub := ct.RemotePath
		if sub == "" {
			sub = ct.Name
		}
		dir := filepath.Clean(filepath.Join(a.cfg.Agent.SourceRoot, filepath.FromSlash(sub)))

		if _, err := os.Stat(dir); err != nil {
			a.logger.Warn().Str("content_type", ct.Name).Str("dir", dir).Msg("Watch subtree missing, skipping")
			continue
		}
		if err := w.Add(dir); err != nil {
			w.Stop()
			return err
		}
		byRoot[dir] = ct.Name
	}

	a.watcher = w
	w.Start()

	go func() {
		for root := range w.Changes() {
			name, ok := byRoot[root]
			if !ok {
				continue
			}
			a.logger.Info().Str("content_type", name).Str("root", root).Msg("Source changed, triggering sync")
			if _, err := rt.TriggerSync(context.Background(), name); err != nil {
				a.logger.Warn().Err(err).Str("content_type", name).Msg("Change-triggered sync rejected")
			}
		}
	}()
	return nil
}

// Shutdown implements service.Agent
func (a *fileAgent) Shutdown(ctx context.Context) error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.markers != nil {
		return a.markers.Close()
	}
	return nil
}
