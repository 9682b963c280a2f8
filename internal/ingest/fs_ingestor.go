package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snehaa-shrestha/Receipt-Analyzer/constants"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	FilesRepo      repository.ReceiptFileRepository
	AllowedExts    map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
	UploadDir      string
	MaxUploadBytes int64 // 0 means unlimited
	Logger         *slog.Logger
}

var _ Ingestor = (*FSIngestor)(nil)

func NewFSIngestor(f repository.ReceiptFileRepository, uploadDir string, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		FilesRepo: f,
		UploadDir: uploadDir,
		Logger:    logger,
	}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext, i.AllowedExts) {
		i.Logger.Warn("ingest.unsupported_extension", "path", abs, "ext", ext)
		return out, unsupported(ext)
	}

	f, err := os.Open(abs)
	if err != nil {
		return out, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.Logger.Warn("ingest.close_failed", "path", abs, "error", err)
		}
	}(f)

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return out, fmt.Errorf("hash: %w", err)
	}
	return i.register(ctx, abs, filepath.Base(abs), ext, n, h.Sum(nil))
}

func (i *FSIngestor) register(ctx context.Context, path, filename, ext string, size int64, sum []byte) (IngestionResult, error) {
	row, dedup, err := i.FilesRepo.UpsertByHash(ctx, path, filename, ext, int(size), sum, time.Now().UTC())
	if err != nil {
		return IngestionResult{}, err
	}
	i.Logger.Info("ingest.file.ok", "file_id", row.ID, "path", row.SourcePath, "deduplicated", dedup)
	return IngestionResult{
		SourcePath:   row.SourcePath,
		FileID:       row.ID,
		Deduplicated: dedup,
		HashHex:      hex.EncodeToString(sum),
		FileExt:      row.FileExt,
		FileSize:     row.FileSize,
		UploadedAt:   row.UploadedAt,
	}, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.InvalidInput("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path), i.AllowedExts) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	i.Logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// IngestUpload writes r to UploadDir as <uuid>.<ext>. When the content is
// already known the new copy is removed and the existing row is returned.
func (i *FSIngestor) IngestUpload(ctx context.Context, name string, r io.Reader) (IngestionResult, error) {
	ext := constants.NormalizeExt(filepath.Ext(name))
	if ext == "" || !AllowedExt(ext, i.AllowedExts) {
		return IngestionResult{}, unsupported(ext)
	}
	if err := os.MkdirAll(i.UploadDir, 0o755); err != nil {
		return IngestionResult{}, fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := filepath.Abs(filepath.Join(i.UploadDir, uuid.NewString()+"."+ext))
	if err != nil {
		return IngestionResult{}, fmt.Errorf("abs path: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return IngestionResult{}, fmt.Errorf("create upload: %w", err)
	}
	if i.MaxUploadBytes > 0 {
		r = io.LimitReader(r, i.MaxUploadBytes+1)
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && i.MaxUploadBytes > 0 && n > i.MaxUploadBytes {
		err = common.InvalidInput(fmt.Sprintf("upload exceeds %d bytes", i.MaxUploadBytes))
	}
	if err != nil {
		_ = os.Remove(dst)
		return IngestionResult{}, fmt.Errorf("write upload: %w", err)
	}

	res, err := i.register(ctx, dst, filepath.Base(name), ext, n, h.Sum(nil))
	if err != nil || res.SourcePath != dst {
		_ = os.Remove(dst)
	}
	return res, err
}

func unsupported(ext string) error {
	return common.InvalidInput(fmt.Sprintf("unsupported or missing extension: %q", ext))
}

