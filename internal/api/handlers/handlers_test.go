package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cutwatch-worker-go/internal/models"
	"cutwatch-worker-go/internal/repository/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnalyzer struct {
	got models.AnalysisRequest
	run *models.VideoRun
	err error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, req models.AnalysisRequest) (*models.VideoRun, error) {
	a.got = req
	return a.run, a.err
}

// slowAnalyzer walks frames like the scanner and then dispatches, aborting
// whenever its context is done. The request is cancelled after frame 5.
type slowAnalyzer struct {
	disconnect context.CancelFunc
	ctxErr     error
	alerts     int
}

func (a *slowAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.VideoRun, error) {
	run := &models.VideoRun{ID: "run_20240309-140507_0badc0de", VideoName: req.VideoName}
	for i := 0; i < 20; i++ {
		if i == 5 {
			a.disconnect()
		}
		if err := ctx.Err(); err != nil {
			a.ctxErr = err
			return run, &models.ScanError{Kind: models.ErrScanTruncated, FramesScanned: i, Err: err}
		}
		run.Ledger.FramesScanned++
		if i >= 1 && i <= 3 {
			run.Ledger.Detections = append(run.Ledger.Detections, models.Detection{FrameIndex: i})
		}
	}
	run.ScanComplete = true
	for range run.Ledger.Detections {
		if err := ctx.Err(); err != nil {
			a.ctxErr = err
			break
		}
		a.alerts++
	}
	run.Summaries = map[models.Channel]models.ChannelSummary{models.ChannelEmail: {Sent: a.alerts}}
	return run, nil
}

func multipartRequest(t *testing.T, fields map[string]string, withFile bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if withFile {
		fw, err := w.CreateFormFile("video", "../hall camera.mp4")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("not really a video"))
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func analysisRouter(a Analyzer, uploadDir string) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/analyses", NewAnalysisHandler(a, uploadDir).Analyze)
	return r
}

func TestAnalyzeSuccess(t *testing.T) {
	dir := t.TempDir()
	run := &models.VideoRun{
		ID:        "run_20240309-140507_1a2b3c4d",
		VideoName: "hall_camera.mp4",
		Ledger: models.DetectionLedger{
			FramesScanned: 100,
			Detections:    make([]models.Detection, 12),
		},
		Selection:       models.AlertSelection{Items: make([]models.Detection, 10), TotalCount: 12, Truncated: true, Cap: 10},
		OutputVideoPath: "/out/processed_2024-03-09_14-05-07_hall_camera.mp4",
		EvidenceFiles:   []string{"frame_000003.jpg"},
		Summaries: map[models.Channel]models.ChannelSummary{
			models.ChannelTelegram: {Sent: 10, Failed: 1},
		},
	}
	a := &fakeAnalyzer{run: run}

	w := httptest.NewRecorder()
	analysisRouter(a, dir).ServeHTTP(w, multipartRequest(t, map[string]string{
		"alert_telegram":    "true",
		"telegram_username": " alice ",
		"generate_video":    "1",
		"confidence":        "0.5",
	}, true))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if !a.got.AlertTelegram || a.got.TelegramHandle != "alice" || !a.got.GenerateVideo || a.got.ConfidenceThreshold != 0.5 {
		t.Errorf("request = %+v", a.got)
	}
	if a.got.VideoName != "hall_camera.mp4" {
		t.Errorf("video name = %q", a.got.VideoName)
	}
	if filepath.Dir(a.got.SourcePath) != dir {
		t.Errorf("upload stored at %q, expected under %q", a.got.SourcePath, dir)
	}
	if data, err := os.ReadFile(a.got.SourcePath); err != nil || string(data) != "not really a video" {
		t.Errorf("upload content = %q, %v", data, err)
	}

	var resp AnalysisResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.ObjectDetected || resp.TotalDetections != 12 || resp.Shown != 10 || !resp.Truncated {
		t.Errorf("response = %+v", resp)
	}
	if resp.OutputVideo != "/api/v1/outputs/processed_2024-03-09_14-05-07_hall_camera.mp4" {
		t.Errorf("output video = %q", resp.OutputVideo)
	}
	if len(resp.Evidence) != 1 || resp.Evidence[0] != "/api/v1/runs/run_20240309-140507_1a2b3c4d/evidence/frame_000003.jpg" {
		t.Errorf("evidence = %v", resp.Evidence)
	}
	tg := resp.Channels["telegram"]
	if !tg.Requested || tg.Sent != 10 || tg.Failed != 1 {
		t.Errorf("telegram status = %+v", tg)
	}
	if resp.Channels["email"].Requested {
		t.Error("email was not requested")
	}
}

func TestAnalyzeRunSurvivesClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &slowAnalyzer{disconnect: cancel}

	req := multipartRequest(t, map[string]string{
		"alert_email":     "true",
		"email_recipient": "ops@example.com",
	}, true).WithContext(ctx)

	w := httptest.NewRecorder()
	analysisRouter(a, t.TempDir()).ServeHTTP(w, req)

	if a.ctxErr != nil {
		t.Fatalf("run context was cancelled with the request: %v", a.ctxErr)
	}
	if a.alerts != 3 {
		t.Errorf("alerts dispatched = %d, expected 3", a.alerts)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp AnalysisResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.FramesScanned != 20 || resp.TotalDetections != 3 {
		t.Errorf("response = %+v", resp)
	}
}

func TestAnalyzeErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		run        *models.VideoRun
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not registered", nil, fmt.Errorf("%w: @bob", models.ErrNotRegistered), http.StatusBadRequest, "recipient_not_registered"},
		{"invalid", nil, fmt.Errorf("%w: nothing requested", models.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{"unreadable", &models.VideoRun{ID: "run_x"}, models.ErrSourceUnreadable, http.StatusUnprocessableEntity, "source_unreadable"},
		{"truncated", &models.VideoRun{ID: "run_y"}, &models.ScanError{Kind: models.ErrScanTruncated, FrameIndex: 7, FramesScanned: 7, Err: models.ErrFrameDecode}, http.StatusInternalServerError, "scan_truncated"},
		{"other", nil, fmt.Errorf("disk full"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			analysisRouter(&fakeAnalyzer{run: tt.run, err: tt.err}, t.TempDir()).
				ServeHTTP(w, multipartRequest(t, map[string]string{"alert_email": "true", "email_recipient": "a@b.c"}, true))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, expected %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, expected %q", resp.Code, tt.wantCode)
			}
			if tt.wantCode == "scan_truncated" && (resp.FramesScanned == nil || *resp.FramesScanned != 7) {
				t.Errorf("frames_scanned = %v", resp.FramesScanned)
			}
		})
	}
}

func TestAnalyzeBadForm(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		withFile bool
	}{
		{"missing file", map[string]string{"alert_email": "true"}, false},
		{"bad bool", map[string]string{"alert_email": "maybe"}, true},
		{"bad confidence", map[string]string{"generate_video": "true", "confidence": "1.5"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnalyzer{}
			w := httptest.NewRecorder()
			analysisRouter(a, t.TempDir()).ServeHTTP(w, multipartRequest(t, tt.fields, tt.withFile))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", w.Code)
			}
			if a.got.SourcePath != "" {
				t.Error("analyzer must not be called")
			}
		})
	}
}

type fakeRegistry struct {
	known map[string]string
	err   error
}

func (r *fakeRegistry) Resolve(_ context.Context, handle string) (string, error) {
	if id, ok := r.known[handle]; ok {
		return id, nil
	}
	return "", models.ErrNotRegistered
}

func (r *fakeRegistry) Register(_ context.Context, handle string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.known[handle] = "42"
	return "42", nil
}

func registrationRouter(reg Registry) *gin.Engine {
	r := gin.New()
	h := NewRegistrationHandler(reg)
	r.POST("/api/v1/registrations", h.Register)
	r.GET("/api/v1/registrations/:handle", h.Resolve)
	return r
}

func TestRegistrationRoutes(t *testing.T) {
	reg := &fakeRegistry{known: map[string]string{}}
	r := registrationRouter(reg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/registrations/alice", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("resolve before register: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(`{"handle":"alice"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("register: status = %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/registrations/alice", nil))
	var resp RegistrationResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.ChannelIdentity != "42" {
		t.Fatalf("resolve after register: status = %d resp=%+v", w.Code, resp)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(`{"handle":"@"}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty handle: status = %d", w.Code)
	}
}

func TestRegistrationFailureAndUnconfigured(t *testing.T) {
	w := httptest.NewRecorder()
	registrationRouter(&fakeRegistry{known: map[string]string{}, err: models.ErrRegistrationFailed}).
		ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(`{"handle":"bob"}`)))
	if w.Code != http.StatusBadGateway {
		t.Errorf("failed handshake: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	registrationRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/registrations/bob", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured: status = %d", w.Code)
	}
}

func TestArtifacts(t *testing.T) {
	evidenceDir := t.TempDir()
	outputDir := t.TempDir()
	runDir := filepath.Join(evidenceDir, "run_a")
	os.MkdirAll(runDir, 0755)
	os.WriteFile(filepath.Join(runDir, "frame_000001.jpg"), []byte{0xFF, 0xD8, 0xFF}, 0644)
	os.WriteFile(filepath.Join(outputDir, "processed_x.mp4"), []byte("mp4"), 0644)
	os.WriteFile(filepath.Join(outputDir, "secret.txt"), []byte("no"), 0644)

	r := gin.New()
	h := NewArtifactHandler(evidenceDir, outputDir)
	r.GET("/api/v1/runs/:run_id/evidence/:file", h.Evidence)
	r.GET("/api/v1/outputs/:file", h.Output)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/runs/run_a/evidence/frame_000001.jpg", http.StatusOK},
		{"/api/v1/runs/run_a/evidence/frame_000002.jpg", http.StatusNotFound},
		{"/api/v1/runs/run_b/evidence/frame_000001.jpg", http.StatusNotFound},
		{"/api/v1/runs/run_a/evidence/..%2F..%2Fsecret.txt", http.StatusNotFound},
		{"/api/v1/outputs/processed_x.mp4", http.StatusOK},
		{"/api/v1/outputs/secret.txt", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.want {
			t.Errorf("GET %s: status = %d, expected %d", tt.path, w.Code, tt.want)
		}
	}
}

type fakeRuns struct{ records []sqlite.RunRecord }

func (f *fakeRuns) Recent(_ context.Context, limit int) ([]sqlite.RunRecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeRuns) GetByID(_ context.Context, id string) (*sqlite.RunRecord, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, sqlite.ErrRunNotFound
}

func TestRunRoutes(t *testing.T) {
	now := time.Now()
	runs := &fakeRuns{records: []sqlite.RunRecord{
		{ID: "run_b", Status: "completed", StartedAt: now},
		{ID: "run_a", Status: "failed", StartedAt: now.Add(-time.Minute)},
	}}
	r := gin.New()
	h := NewRunHandler(runs)
	r.GET("/api/v1/runs", h.ListRuns)
	r.GET("/api/v1/runs/:run_id", h.GetRun)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=1", nil))
	var list RunsResponse
	json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != http.StatusOK || list.Total != 1 || list.Runs[0].ID != "run_b" {
		t.Fatalf("list: status = %d resp=%+v", w.Code, list)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/run_a", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"failed"`) {
		t.Fatalf("get: status = %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/run_zzz", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing run: status = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	r := gin.New()
	h := NewHealthHandler("worker-7", "2.0.0", func() bool { return false })
	r.GET("/health", h.HealthCheck)
	r.GET("/", h.WorkerInfo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health HealthResponse
	json.Unmarshal(w.Body.Bytes(), &health)
	if health.WorkerID != "worker-7" || health.Detector != "unavailable" {
		t.Errorf("health = %+v", health)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	var info WorkerInfoResponse
	json.Unmarshal(w.Body.Bytes(), &info)
	if info.Version != "2.0.0" || len(info.Capabilities) == 0 {
		t.Errorf("info = %+v", info)
	}
}
