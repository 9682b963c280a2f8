package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/async"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/entity"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/pipeline"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/utils"
)

const maxListLimit = 200

type uploadResponse struct {
	FileID       uuid.UUID       `json:"file_id"`
	JobID        *uuid.UUID      `json:"job_id,omitempty"`
	Deduplicated bool            `json:"deduplicated"`
	Status       string          `json:"status"`
	Warning      string          `json:"warning,omitempty"`
	Receipt      *entity.Receipt `json:"receipt,omitempty"`
}

// upload stores a multipart "file" and extracts it, synchronously by
// default or through the queue with async=true.
func (h *handler) upload(c *gin.Context) {
	ctx := c.Request.Context()
	logger := common.LoggerWithRequest(ctx, h.Logger)

	fh, err := c.FormFile("file")
	if err != nil {
		h.fail(c, badRequest("multipart field \"file\" is required"))
		return
	}
	manualDate, err := utils.ParseOptionalYMD(c.PostForm("manual_date"))
	if err != nil {
		h.fail(c, badRequest("manual_date must be YYYY-MM-DD"))
		return
	}
	runAsync, _ := strconv.ParseBool(c.Query("async"))

	f, err := fh.Open()
	if err != nil {
		h.fail(c, badRequest("cannot read upload"))
		return
	}
	defer f.Close()

	res, err := h.Ingestor.IngestUpload(ctx, fh.Filename, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	logger.Info("upload.ingested", "file_id", res.FileID, "deduplicated", res.Deduplicated, "size", res.FileSize)

	out := uploadResponse{FileID: res.FileID, Deduplicated: res.Deduplicated}
	if res.Deduplicated {
		existing, err := h.Records.GetLatestForFile(ctx, res.FileID)
		if err == nil {
			out.Status = "existing"
			out.Receipt = existing
			out.JobID = existing.JobID
			c.JSON(http.StatusOK, out)
			return
		}
		if !errors.Is(err, common.ErrNotFound) {
			h.fail(c, err)
			return
		}
	}

	if runAsync {
		job := async.Job{
			FileID:      res.FileID,
			ManualDate:  manualDate,
			SubmittedAt: time.Now(),
			TraceID:     common.RequestIDFromContext(ctx),
		}
		if err := h.Queue.Enqueue(ctx, job); err != nil {
			h.fail(c, err)
			return
		}
		out.Status = "queued"
		c.JSON(http.StatusAccepted, out)
		return
	}

	var opts []pipeline.ProcessOption
	if manualDate != nil {
		opts = append(opts, pipeline.WithManualDate(*manualDate))
	}
	pr, err := h.Processor.ProcessFile(ctx, res.FileID, opts...)
	if pr != nil && pr.JobID != uuid.Nil {
		out.JobID = &pr.JobID
	}
	if err != nil && (pr == nil || pr.Receipt == nil) {
		h.fail(c, err)
		return
	}
	if err != nil {
		// OCR failed but a degraded record was stored
		out.Warning = err.Error()
	}
	out.Status = "processed"
	out.Receipt = pr.Receipt
	c.JSON(http.StatusOK, out)
}

func (h *handler) listReceipts(c *gin.Context) {
	from, err := utils.ParseOptionalYMD(c.Query("from"))
	if err != nil {
		h.fail(c, badRequest("from must be YYYY-MM-DD"))
		return
	}
	to, err := utils.ParseOptionalYMD(c.Query("to"))
	if err != nil {
		h.fail(c, badRequest("to must be YYYY-MM-DD"))
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		h.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	search := strings.TrimSpace(c.Query("search"))

	v := common.NewValidator().
		Field("search", search, common.MaxLengthRule(100)).
		Field("limit", float64(limit), common.InRange(1, maxListLimit)).
		Field("offset", float64(offset), common.InRange(0, 1e9))
	if err := common.ValidateAndReturnError(v); err != nil {
		h.fail(c, err)
		return
	}

	recs, err := h.Records.List(c.Request.Context(), repository.ListFilter{
		From:   from,
		To:     to,
		Search: search,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if recs == nil {
		recs = []*entity.Receipt{}
	}
	c.JSON(http.StatusOK, gin.H{"receipts": recs, "count": len(recs)})
}

func (h *handler) getReceipt(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rec, err := h.Records.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// deleteReceipt removes the record with its file row, jobs and items. The
// stored file is removed too when it lives in the upload directory.
func (h *handler) deleteReceipt(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rec, err := h.Records.Get(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	file, err := h.Files.GetByID(ctx, rec.FileID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Files.Delete(ctx, file.ID); err != nil {
		h.fail(c, err)
		return
	}
	if h.isUpload(file.SourcePath) {
		if err := os.Remove(file.SourcePath); err != nil && !os.IsNotExist(err) {
			common.LoggerWithRequest(ctx, h.Logger).Warn("receipt.delete.file_failed", "path", file.SourcePath, "error", err)
		}
	}
	common.LoggerWithRequest(ctx, h.Logger).Info("receipt.deleted", "record_id", id, "file_id", file.ID)
	c.Status(http.StatusNoContent)
}

func (h *handler) isUpload(path string) bool {
	if h.UploadDir == "" {
		return false
	}
	dir, err := filepath.Abs(h.UploadDir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	v := common.NewValidator().Field("id", raw, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(key + " must be an integer")
	}
	return n, nil
}
