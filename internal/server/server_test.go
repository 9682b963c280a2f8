package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/async"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/entity"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/export"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/ingest"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/metrics"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/pipeline"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
)

var bigMart = []string{"BIG MART", "Rice 120.00", "Oil 80.00", "Total Rs 200.00", "Date: 01/02/2026"}

type stubOCR struct {
	lines []string
	err   error
}

func (s *stubOCR) Extract(context.Context, string) (extract.TextExtractionResult, error) {
	return extract.TextExtractionResult{Lines: extract.LinesFromStrings(s.lines), Method: "image-ocr", Confidence: 0.9}, s.err
}

type testServer struct {
	router  *gin.Engine
	deps    Deps
	ocr     *stubOCR
	queue   *async.ProcessorQueue
	records repository.RecordRepository
}

func setupServer(t *testing.T, limiter *rate.Limiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.Config{Driver: repository.DriverSQLite}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, repository.Migrate(ctx, db, nil))

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	files := repository.NewReceiptFileRepository(db, nil)
	jobs := repository.NewExtractJobRepository(db, nil)
	records := repository.NewRecordRepository(db, nil)
	ocr := &stubOCR{lines: bigMart}
	engine := extract.NewDefaultEngine(extract.WithClock(func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }))
	proc := pipeline.NewProcessor(nil,
		pipeline.NewOCRStage(files, jobs, ocr, m, nil),
		pipeline.NewExtractStage(nil, pipeline.Config{}, engine, records, jobs, m),
	)
	q := async.NewProcessorQueue(proc, nil, async.WithWorkers(1), async.WithMetrics(m))
	t.Cleanup(func() { q.Shutdown(context.Background()) })

	uploadDir := t.TempDir()
	deps := Deps{
		DB:            db,
		Processor:     proc,
		Ingestor:      ingest.NewFSIngestor(files, uploadDir, nil),
		Queue:         q,
		Records:       records,
		Files:         files,
		Export:        export.NewService(records, files, nil),
		Gatherer:      reg,
		UploadDir:     uploadDir,
		UploadLimiter: limiter,
	}
	return &testServer{router: NewRouter(deps), deps: deps, ocr: ocr, queue: q, records: records}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, target, name, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type uploadBody struct {
	FileID       uuid.UUID       `json:"file_id"`
	JobID        *uuid.UUID      `json:"job_id"`
	Deduplicated bool            `json:"deduplicated"`
	Status       string          `json:"status"`
	Warning      string          `json:"warning"`
	Receipt      *entity.Receipt `json:"receipt"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestExtractEndpoint(t *testing.T) {
	s := setupServer(t, nil)

	body, _ := json.Marshal(map[string]any{"lines": bigMart})
	w := s.do(httptest.NewRequest(http.MethodPost, "/v1/extract", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Big Mart", got["merchant_name"])
	assert.Equal(t, "2026-01-02", got["transaction_date"])
	assert.Equal(t, "NPR", got["currency_code"])
	assert.Equal(t, "200.00", got["total_amount"])
	assert.Equal(t, 1.0, got["confidence"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader(`{"text":""}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader(`{"lines":[]}`)))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Nil(t, got["currency_code"])
	assert.Equal(t, 0.0, got["confidence"])
}

func TestUploadSync(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(uploadRequest(t, "/v1/receipts", "bigmart.jpg", "img-1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[uploadBody](t, w)
	assert.Equal(t, "processed", out.Status)
	assert.False(t, out.Deduplicated)
	require.NotNil(t, out.JobID)
	require.NotNil(t, out.Receipt)
	assert.Equal(t, "Big Mart", *out.Receipt.Record.MerchantName)
	assert.Equal(t, "Groceries", out.Receipt.Category)

	// the same bytes again return the stored record without reprocessing
	w = s.do(uploadRequest(t, "/v1/receipts", "again.jpg", "img-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	again := decode[uploadBody](t, w)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, "existing", again.Status)
	assert.Equal(t, out.Receipt.ID, again.Receipt.ID)
}

func TestUploadManualDate(t *testing.T) {
	s := setupServer(t, nil)
	s.ocr.lines = []string{"BIG MART", "Total Rs 200.00"}

	w := s.do(uploadRequest(t, "/v1/receipts", "nodate.png", "img-2", map[string]string{"manual_date": "2026-04-01"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[uploadBody](t, w)
	assert.Equal(t, "2026-04-01", out.Receipt.Record.TransactionDate.Format(extract.DateLayout))

	w = s.do(uploadRequest(t, "/v1/receipts", "bad.png", "img-3", map[string]string{"manual_date": "April 1"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadOCRFailureReturnsDegradedRecord(t *testing.T) {
	s := setupServer(t, nil)
	s.ocr.err = context.DeadlineExceeded
	s.ocr.lines = nil

	w := s.do(uploadRequest(t, "/v1/receipts", "slow.jpg", "img-4", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[uploadBody](t, w)
	assert.NotEmpty(t, out.Warning)
	assert.True(t, out.Receipt.NeedsReview)
	assert.Nil(t, out.Receipt.Record.TotalAmount)
}

func TestUploadAsync(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(uploadRequest(t, "/v1/receipts?async=true", "queued.jpg", "img-5", nil))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	out := decode[uploadBody](t, w)
	assert.Equal(t, "queued", out.Status)

	require.Eventually(t, func() bool {
		_, err := s.records.GetLatestForFile(context.Background(), out.FileID)
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
}

func TestUploadRejects(t *testing.T) {
	s := setupServer(t, rate.NewLimiter(rate.Every(time.Hour), 1))

	w := s.do(uploadRequest(t, "/v1/receipts", "notes.txt", "x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the single token was spent above
	w = s.do(uploadRequest(t, "/v1/receipts", "ok.jpg", "y", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	s = setupServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/receipts", strings.NewReader("not multipart"))
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestListGetDelete(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(uploadRequest(t, "/v1/receipts", "bigmart.jpg", "img-6", nil))
	require.Equal(t, http.StatusOK, w.Code)
	up := decode[uploadBody](t, w)

	s.ocr.lines = []string{"EVEREST CAFE", "Total Rs 90.00", "Date: 03/04/2026"}
	w = s.do(uploadRequest(t, "/v1/receipts", "cafe.jpg", "img-7", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/v1/receipts", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Receipts []entity.Receipt `json:"receipts"`
		Count    int              `json:"count"`
	}](t, w)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "Everest Cafe", *list.Receipts[0].Record.MerchantName)

	w = s.do(httptest.NewRequest(http.MethodGet, "/v1/receipts?search=mart&from=2026-01-01&to=2026-01-31", nil))
	require.Equal(t, http.StatusOK, w.Code)
	list.Receipts = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Receipts, 1)
	assert.Equal(t, up.Receipt.ID, list.Receipts[0].ID)

	for _, bad := range []string{"?from=yesterday", "?limit=0", "?limit=abc", "?limit=1000", "?search=" + strings.Repeat("x", 101)} {
		assert.Equal(t, http.StatusBadRequest, s.do(httptest.NewRequest(http.MethodGet, "/v1/receipts"+bad, nil)).Code, bad)
	}

	id := up.Receipt.ID.String()
	w = s.do(httptest.NewRequest(http.MethodGet, "/v1/receipts/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[entity.Receipt](t, w)
	assert.Equal(t, "200.00", got.Record.TotalAmount.StringFixed(2))

	assert.Equal(t, http.StatusBadRequest, s.do(httptest.NewRequest(http.MethodGet, "/v1/receipts/not-a-uuid", nil)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/v1/receipts/"+uuid.NewString(), nil)).Code)

	file, err := s.deps.Files.GetByID(context.Background(), up.FileID)
	require.NoError(t, err)
	_, err = os.Stat(file.SourcePath)
	require.NoError(t, err)

	w = s.do(httptest.NewRequest(http.MethodDelete, "/v1/receipts/"+id, nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	_, err = os.Stat(file.SourcePath)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/v1/receipts/"+id, nil)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodDelete, "/v1/receipts/"+id, nil)).Code)
}

func TestExportEndpoint(t *testing.T) {
	s := setupServer(t, nil)
	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "/v1/receipts", "bigmart.jpg", "img-8", nil)).Code)

	w := s.do(httptest.NewRequest(http.MethodGet, "/v1/export.xlsx", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "receipts.xlsx")
	// xlsx is a zip archive
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	assert.Equal(t, http.StatusBadRequest, s.do(httptest.NewRequest(http.MethodGet, "/v1/export.xlsx?to=soon", nil)).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupServer(t, nil)
	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "/v1/receipts", "bigmart.jpg", "img-9", nil)).Code)

	w := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sqlite"`)

	w = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `receipts_extractions_total{outcome="ok"} 1`)
	assert.Contains(t, w.Body.String(), "receipts_ocr_duration_seconds")
}

func TestRequestIDPropagates(t *testing.T) {
	s := setupServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", s.do(req).Header().Get("X-Request-ID"))
}

func TestGRPCHealth(t *testing.T) {
	srv, hs := NewGRPCServer(nil)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
