package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladzaharia/dangerprep-sub010/pkg/config"
	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/events"
	"github.com/vladzaharia/dangerprep-sub010/pkg/storage"
	"github.com/vladzaharia/dangerprep-sub010/pkg/transfer"
)

// fileAgent wires the reference file pipeline during Init, the way
// cmd/syncd does in production
type fileAgent struct {
	sourceRoot string
	destRoot   string
	markers    storage.Store
}

func (a *fileAgent) Name() string { return "file" }

func (a *fileAgent) Init(ctx context.Context, rt *Runtime) error {
	src, err := transfer.NewFileSource(a.sourceRoot)
	if err != nil {
		return err
	}
	sink, err := transfer.NewFileSink(a.destRoot)
	if err != nil {
		return err
	}
	tr := transfer.NewFileTransferor(src, sink, transfer.FileTransferorConfig{
		VerifyChecksum: true,
		Markers:        a.markers,
	})
	return rt.UseSyncPipeline(src, tr)
}

func (a *fileAgent) Shutdown(ctx context.Context) error {
	if a.markers != nil {
		return a.markers.Close()
	}
	return nil
}

func writeSourceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func syncTestService(t *testing.T, withMarkers bool) (*Service, string, string) {
	t.Helper()
	sourceRoot := t.TempDir()
	destRoot := t.TempDir()

	cfg := testConfig(t)
	cfg.ContentTypes = []config.ContentTypeConfig{{
		Name:      "docs",
		LocalPath: "/docs",
		MaxSize:   config.Size(1 << 30),
	}}

	agent := &fileAgent{sourceRoot: sourceRoot, destRoot: destRoot}
	if withMarkers {
		store, err := storage.NewBoltStore(cfg.Storage.DataDir)
		require.NoError(t, err)
		agent.markers = store
	}

	svc := NewService(cfg, "test")
	require.NoError(t, svc.AddAgent(agent))
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() {
		if !svc.State().Terminal() {
			_ = svc.Stop(context.Background())
		}
	})
	return svc, sourceRoot, destRoot
}

func TestSyncContentTypeCopiesFiles(t *testing.T) {
	svc, sourceRoot, destRoot := syncTestService(t, false)
	writeSourceFile(t, sourceRoot, "docs/alpha.txt", "first")
	writeSourceFile(t, sourceRoot, "docs/beta.txt", "second")

	handle, err := svc.SyncContentType(context.Background(), "docs")
	require.NoError(t, err)

	value, err := handle.Await(context.Background())
	require.NoError(t, err)

	summary, ok := value.(*SyncSummary)
	require.True(t, ok)
	assert.Equal(t, "docs", summary.ContentType)
	assert.Equal(t, 2, summary.Planned)
	assert.Equal(t, 2, summary.Transferred)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, int64(len("first")+len("second")), summary.Bytes)

	got, err := os.ReadFile(filepath.Join(destRoot, "docs", "alpha.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	got, err = os.ReadFile(filepath.Join(destRoot, "docs", "beta.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	completed := svc.RecentEvents(events.Filter{Types: []events.EventType{events.EventSyncCompleted}})
	require.Len(t, completed, 1)
	assert.Equal(t, "docs", completed[0].Data["content_type"])

	started := svc.RecentEvents(events.Filter{Types: []events.EventType{events.EventSyncStarted}})
	require.Len(t, started, 1)
}

func TestSyncEmptySourceCompletesWithNothing(t *testing.T) {
	svc, sourceRoot, _ := syncTestService(t, false)
	require.NoError(t, os.MkdirAll(filepath.Join(sourceRoot, "docs"), 0o755))

	handle, err := svc.SyncContentType(context.Background(), "docs")
	require.NoError(t, err)

	value, err := handle.Await(context.Background())
	require.NoError(t, err)
	summary := value.(*SyncSummary)
	assert.Zero(t, summary.Planned)
	assert.Zero(t, summary.Transferred)
}

func TestSyncUnknownContentType(t *testing.T) {
	svc, _, _ := syncTestService(t, false)

	_, err := svc.SyncContentType(context.Background(), "music")
	require.Error(t, err)
	assert.Equal(t, errdefs.ClassPrecondition, errdefs.ClassOf(err))
}

func TestSyncSkipsMarkedItemsOnSecondRun(t *testing.T) {
	svc, sourceRoot, destRoot := syncTestService(t, true)
	writeSourceFile(t, sourceRoot, "docs/report.pdf", "payload")

	first, err := svc.SyncContentType(context.Background(), "docs")
	require.NoError(t, err)
	_, err = first.Await(context.Background())
	require.NoError(t, err)

	// Remove the destination copy; the marker still covers the item,
	// so a second sync counts it transferred without rewriting it
	require.NoError(t, os.Remove(filepath.Join(destRoot, "docs", "report.pdf")))

	second, err := svc.SyncContentType(context.Background(), "docs")
	require.NoError(t, err)
	value, err := second.Await(context.Background())
	require.NoError(t, err)

	summary := value.(*SyncSummary)
	assert.Equal(t, 1, summary.Transferred)

	_, statErr := os.Stat(filepath.Join(destRoot, "docs", "report.pdf"))
	assert.True(t, os.IsNotExist(statErr), "marker should have prevented a rewrite")
}

func TestScheduledSyncFires(t *testing.T) {
	sourceRoot := t.TempDir()
	destRoot := t.TempDir()
	writeSourceFile(t, sourceRoot, "docs/item.txt", "scheduled")

	cfg := testConfig(t)
	cfg.ContentTypes = []config.ContentTypeConfig{{
		Name:      "docs",
		LocalPath: "/docs",
		MaxSize:   config.Size(1 << 30),
		Schedule:  "* * * * * *", // every second
	}}

	svc := NewService(cfg, "test")
	require.NoError(t, svc.AddAgent(&fileAgent{sourceRoot: sourceRoot, destRoot: destRoot}))
	require.NoError(t, svc.Start(context.Background()))
	defer func() { _ = svc.Stop(context.Background()) }()

	statuses := svc.TaskStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "sync-docs", statuses[0].ID)
	assert.True(t, statuses[0].Active)

	dest := filepath.Join(destRoot, "docs", "item.txt")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(dest); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("scheduled sync never produced the destination file")
}
