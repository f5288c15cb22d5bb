package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go.uber.org/zap"

	"careercatalyst-backend/internal/config"
	"careercatalyst-backend/internal/llm"
	"careercatalyst-backend/internal/session"
	"careercatalyst-backend/internal/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

type fakeVerifier struct {
	entitled bool
	err      error
}

func (f *fakeVerifier) VerifyEmail(ctx context.Context, email string) (bool, error) {
	return f.entitled, f.err
}

func (f *fakeVerifier) VerifyMembership(ctx context.Context, membershipID string) (bool, error) {
	return f.entitled, f.err
}

type fakeGenerator struct {
	result string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	return f.result, f.err
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractPDF(ctx context.Context, data []byte) (string, error) {
	return f.text, f.err
}

type testEnv struct {
	engine    *gin.Engine
	store     *session.MemoryStore
	verifier  *fakeVerifier
	generator *fakeGenerator
	extractor *fakeExtractor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:     session.NewMemoryStore(),
		verifier:  &fakeVerifier{entitled: true},
		generator: &fakeGenerator{result: "analysis output"},
		extractor: &fakeExtractor{text: "extracted text"},
	}
	store := env.store
	manager := NewManager(func(ctx context.Context, profileID string) (*session.Coordinator, error) {
		return session.New(ctx, session.Options{
			ProfileID:   profileID,
			Store:       store,
			Entitlement: env.verifier,
			Generator:   env.generator,
			Extractor:   env.extractor,
			CallTimeout: 5 * time.Second,
		})
	})
	env.engine = NewEngine(config.Config{Env: "dev", CORSAllowOrigin: []string{"http://localhost:5173"}}, NewHandler(manager))
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Profile-Id", "profile-1")
	resp := httptest.NewRecorder()
	e.engine.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) unlock(t *testing.T) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/session/unlock", gin.H{"email": "user@test.com"})
	if resp.Code != http.StatusOK {
		t.Fatalf("unlock: status %d body %s", resp.Code, resp.Body.String())
	}
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	env.engine.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestMissingProfileHeader(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	resp := httptest.NewRecorder()
	env.engine.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "missing_profile" {
		t.Fatalf("error code = %q", code)
	}
}

func TestUnlockAndSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.unlock(t)

	resp := env.do(t, http.MethodGet, "/api/v1/session", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", resp.Code)
	}
	var payload struct {
		State   session.State `json:"state"`
		InFly   string        `json:"in_flight"`
		Kinds   []string      `json:"kinds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !payload.State.Unlocked {
		t.Fatal("snapshot not unlocked")
	}
	if len(payload.Kinds) != 6 {
		t.Fatalf("kinds length = %d", len(payload.Kinds))
	}
}

func TestUnlockDeniedReturns403(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.entitled = false

	resp := env.do(t, http.MethodPost, "/api/v1/session/unlock", gin.H{"email": "no-access@test.com"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("status = %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "not_entitled" {
		t.Fatalf("error code = %q", code)
	}
}

func TestAnalysisLockedReturns403(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/v1/session/analyses", gin.H{"kind": "ATS Score"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("status = %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "locked" {
		t.Fatalf("error code = %q", code)
	}
}

func TestAnalysisFlow(t *testing.T) {
	env := newTestEnv(t)
	env.unlock(t)

	if resp := env.do(t, http.MethodPut, "/api/v1/session/resume", gin.H{"text": "resume text"}); resp.Code != http.StatusOK {
		t.Fatalf("set resume status = %d", resp.Code)
	}
	if resp := env.do(t, http.MethodPut, "/api/v1/session/job", gin.H{"text": "job text"}); resp.Code != http.StatusOK {
		t.Fatalf("set job status = %d", resp.Code)
	}

	resp := env.do(t, http.MethodPost, "/api/v1/session/analyses", gin.H{"kind": "Full Analysis"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("analysis status = %d body %s", resp.Code, resp.Body.String())
	}
	var record session.AnalysisRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Result != "analysis output" {
		t.Fatalf("record result = %q", record.Result)
	}
	if record.ID == "" {
		t.Fatal("record missing id")
	}
}

func TestAnalysisValidationReturns400(t *testing.T) {
	env := newTestEnv(t)
	env.unlock(t)

	resp := env.do(t, http.MethodPost, "/api/v1/session/analyses", gin.H{"kind": "Full Analysis"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "validation_error" {
		t.Fatalf("error code = %q", code)
	}
}

func TestAnalysisProviderErrorReturns502(t *testing.T) {
	env := newTestEnv(t)
	env.unlock(t)
	env.generator.err = &llm.ProviderError{Provider: "test", Err: errors.New("boom")}

	_ = env.do(t, http.MethodPut, "/api/v1/session/resume", gin.H{"text": "resume"})
	_ = env.do(t, http.MethodPut, "/api/v1/session/job", gin.H{"text": "job"})

	resp := env.do(t, http.MethodPost, "/api/v1/session/analyses", gin.H{"kind": "Cover Letter"})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)
	env.unlock(t)

	body, contentType := multipartUpload(t, "notes.txt", "text/plain", []byte("hello"), "resume")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Profile-Id", "profile-1")
	resp := httptest.NewRecorder()
	env.engine.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body %s", resp.Code, resp.Body.String())
	}
}

func TestUploadPDFFillsResume(t *testing.T) {
	env := newTestEnv(t)
	env.unlock(t)
	env.extractor.text = "resume from pdf"

	body, contentType := multipartUpload(t, "resume.pdf", "application/pdf", []byte("%PDF-1.4"), "resume")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Profile-Id", "profile-1")
	resp := httptest.NewRecorder()
	env.engine.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", resp.Code, resp.Body.String())
	}

	snap := env.do(t, http.MethodGet, "/api/v1/session", nil)
	if !strings.Contains(snap.Body.String(), "resume from pdf") {
		t.Fatal("snapshot missing extracted resume text")
	}
}

func TestVersionNotFoundReturns404(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/v1/session/versions/ghost/select", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d", resp.Code)
	}
	if code := errorCode(t, resp); code != "not_found" {
		t.Fatalf("error code = %q", code)
	}
}

func TestApplicationEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/session/applications", gin.H{"job_title": "Engineer", "company": "Acme"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("track status = %d", resp.Code)
	}
	var app session.JobApplication
	if err := json.NewDecoder(resp.Body).Decode(&app); err != nil {
		t.Fatalf("decode application: %v", err)
	}

	update := env.do(t, http.MethodPatch, "/api/v1/session/applications/"+app.ID, gin.H{"status": "Interviewing"})
	if update.Code != http.StatusOK {
		t.Fatalf("update status = %d", update.Code)
	}

	del := env.do(t, http.MethodDelete, "/api/v1/session/applications/"+app.ID, nil)
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d", del.Code)
	}
	delAgain := env.do(t, http.MethodDelete, "/api/v1/session/applications/"+app.ID, nil)
	if delAgain.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", delAgain.Code)
	}
}

func TestResetEvictsCachedCoordinator(t *testing.T) {
	env := newTestEnv(t)
	env.unlock(t)

	if resp := env.do(t, http.MethodPost, "/api/v1/session/reset", nil); resp.Code != http.StatusOK {
		t.Fatalf("reset status = %d", resp.Code)
	}

	// Writes landing in the store after a reset must be visible to the next
	// request, which only happens if the cached coordinator was dropped.
	if err := env.store.Save(context.Background(), "profile-1", "resume", []byte(`"seeded resume"`)); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	snap := env.do(t, http.MethodGet, "/api/v1/session", nil)
	var payload struct {
		State session.State `json:"state"`
	}
	if err := json.NewDecoder(snap.Body).Decode(&payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if payload.State.ResumeText != "seeded resume" {
		t.Fatalf("resume text = %q, coordinator was not rebuilt from the store", payload.State.ResumeText)
	}
}

func TestThemeValidation(t *testing.T) {
	env := newTestEnv(t)
	if resp := env.do(t, http.MethodPut, "/api/v1/session/theme", gin.H{"theme": "sepia"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Code)
	}
	if resp := env.do(t, http.MethodPut, "/api/v1/session/theme", gin.H{"theme": "light"}); resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestResetClearsState(t *testing.T) {
	env := newTestEnv(t)
	env.unlock(t)

	if resp := env.do(t, http.MethodPost, "/api/v1/session/reset", nil); resp.Code != http.StatusOK {
		t.Fatalf("reset status = %d", resp.Code)
	}
	snap := env.do(t, http.MethodGet, "/api/v1/session", nil)
	var payload struct {
		State session.State `json:"state"`
	}
	if err := json.NewDecoder(snap.Body).Decode(&payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if payload.State.Unlocked {
		t.Fatal("session still unlocked after reset")
	}
}

func multipartUpload(t *testing.T, filename, mimeType string, data []byte, target string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.WriteField("target", target); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}
