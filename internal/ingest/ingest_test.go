package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/async"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
)

func setupIngestor(t *testing.T) (*FSIngestor, repository.ReceiptFileRepository) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: repository.DriverSQLite}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, repository.Migrate(ctx, db, nil))

	files := repository.NewReceiptFileRepository(db, nil)
	return NewFSIngestor(files, filepath.Join(t.TempDir(), "uploads"), nil), files
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestIngestPath_Dedupe(t *testing.T) {
	ing, files := setupIngestor(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", "same bytes")
	b := writeFile(t, dir, "b.JPG", "same bytes")

	first, err := ing.IngestPath(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)
	assert.Equal(t, "jpg", first.FileExt)
	assert.Equal(t, 10, first.FileSize)
	assert.Len(t, first.HashHex, 64)

	second, err := ing.IngestPath(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.FileID, second.FileID)

	row, err := files.GetByID(context.Background(), first.FileID)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", row.Filename)
}

func TestIngestPath_Rejects(t *testing.T) {
	ing, _ := setupIngestor(t)
	dir := t.TempDir()

	_, err := ing.IngestPath(context.Background(), writeFile(t, dir, "notes.txt", "x"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = ing.IngestPath(context.Background(), writeFile(t, dir, "README", "x"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = ing.IngestPath(context.Background(), filepath.Join(dir, "missing.png"))
	require.Error(t, err)

	ing.AllowedExts = map[string]struct{}{"pdf": {}}
	_, err = ing.IngestPath(context.Background(), writeFile(t, dir, "r.png", "x"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestIngestDirectory(t *testing.T) {
	ing, _ := setupIngestor(t)
	root := t.TempDir()
	writeFile(t, root, "one.pdf", "1")
	writeFile(t, root, "nested/two.png", "2")
	writeFile(t, root, "nested/dup.png", "2")
	writeFile(t, root, "skip.txt", "3")
	writeFile(t, root, ".hidden/three.jpg", "4")

	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Zero(t, stats.Failed)

	_, stats, err = ing.IngestDirectory(context.Background(), root, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(3), stats.Deduplicated)

	_, _, err = ing.IngestDirectory(context.Background(), " ", false)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestIngestUpload(t *testing.T) {
	ing, _ := setupIngestor(t)

	res, err := ing.IngestUpload(context.Background(), "photo.PNG", strings.NewReader("receipt image"))
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, "png", res.FileExt)
	assert.Equal(t, ing.UploadDir, filepath.Dir(res.SourcePath))
	assert.Equal(t, res.SourcePath, filepath.Join(ing.UploadDir, filepath.Base(res.SourcePath)))
	assert.True(t, strings.HasSuffix(res.SourcePath, ".png"))
	data, err := os.ReadFile(res.SourcePath)
	require.NoError(t, err)
	assert.Equal(t, "receipt image", string(data))

	again, err := ing.IngestUpload(context.Background(), "copy.png", strings.NewReader("receipt image"))
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, res.FileID, again.FileID)
	entries, err := os.ReadDir(ing.UploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestIngestUpload_Rejects(t *testing.T) {
	ing, _ := setupIngestor(t)
	ing.MaxUploadBytes = 4

	_, err := ing.IngestUpload(context.Background(), "big.jpg", strings.NewReader("too many bytes"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	entries, _ := os.ReadDir(ing.UploadDir)
	assert.Empty(t, entries)

	_, err = ing.IngestUpload(context.Background(), "doc.exe", strings.NewReader("x"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	existing := writeFile(t, root, "existing.jpg", "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 30 * time.Millisecond}, nil)
	require.NoError(t, err)

	assert.Equal(t, existing, receive(t, events))

	writeFile(t, root, "ignored.txt", "x")
	fresh := writeFile(t, root, "fresh.pdf", "new")
	assert.Equal(t, fresh, receive(t, events))

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-events
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	require.Error(t, err)
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("no watcher event")
		return ""
	}
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {}

func TestWatchAndEnqueue(t *testing.T) {
	ing, _ := setupIngestor(t)
	dir := t.TempDir()
	paths := make(chan string, 4)
	paths <- writeFile(t, dir, "a.jpg", "A")
	paths <- writeFile(t, dir, "a-copy.jpg", "A")
	paths <- writeFile(t, dir, "b.txt", "B")
	paths <- writeFile(t, dir, "c.png", "C")
	close(paths)

	q := &fakeQueue{}
	WatchAndEnqueue(context.Background(), paths, ing, q, nil)

	require.Len(t, q.jobs, 2)
	assert.NotEqual(t, q.jobs[0].FileID, q.jobs[1].FileID)
	assert.False(t, q.jobs[0].SubmittedAt.IsZero())
}
