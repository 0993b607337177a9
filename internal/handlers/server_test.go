package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"categorybot/internal/bot"
	"categorybot/internal/caching"
	"categorybot/internal/middleware"
	"categorybot/internal/models"
	"categorybot/internal/repositories"
	"categorybot/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeStorage) UploadObject(_ context.Context, bucket, object string, reader io.Reader, _ int64, _ string) error {
	if f.err != nil {
		return f.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+object] = data
	return nil
}

func (f *fakeStorage) GetPresignedURL(_ context.Context, bucket, object string, _ time.Duration) (string, error) {
	return "https://storage.local/" + bucket + "/" + object, nil
}

func (f *fakeStorage) ListObjects(_ context.Context, bucket, prefix string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.objects {
		if name, ok := strings.CutPrefix(key, bucket+"/"); ok && strings.HasPrefix(name, prefix) {
			keys = append(keys, name)
		}
	}
	return keys, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, bucket, object string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+object)
	return nil
}

func (f *fakeStorage) EnsureBucketExists(context.Context, string) error { return f.err }

func (f *fakeStorage) BucketExists(context.Context, string) (bool, error) { return f.err == nil, f.err }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type ServerTestSuite struct {
	suite.Suite
	storage *fakeStorage
	store   *pinger
	cache   *pinger
	server  *echo.Echo
}

func (s *ServerTestSuite) SetupTest() {
	logger := zap.NewNop()
	s.storage = &fakeStorage{objects: map[string][]byte{}}
	s.store = &pinger{}
	s.cache = &pinger{}

	categories := services.NewCategoryService(repositories.NewMemoryCategoryRepo(), caching.NewNoopCacheService(),
		services.NewTreeRenderer(services.DefaultMaxTreeNodes), 0, logger)
	snapshots := services.NewSnapshotService(categories, s.storage, "exports", time.Hour, 1, logger)
	router := bot.NewRouter(categories, nil, logger)

	s.server = NewServer(logger, middleware.NewVersionMiddleware("categorybot"),
		NewCategoryHandlers(categories, snapshots, logger),
		NewCommandHandlers(router),
		NewHealthHandlers(s.store, s.cache, s.storage, "exports", "test"))
}

func (s *ServerTestSuite) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) command(text string) string {
	body, _ := json.Marshal(CommandRequest{Text: text})
	rec := s.do(http.MethodPost, "/v1/commands", bytes.NewReader(body), echo.MIMEApplicationJSON)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp CommandResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Response
}

func (s *ServerTestSuite) TestCommands() {
	s.Equal("Root element 'Electronics' added.", s.command("/addElement Electronics"))
	s.Equal("Child element 'Phones' added to parent 'Electronics'.", s.command("/addElement Electronics Phones"))
	s.Equal("Categories:\n- Electronics\n  - Phones\n", s.command("/viewTree"))
	s.Contains(s.command("/download"), "cannot be run as a plain text command")

	rec := s.do(http.MethodGet, "/v1/categories/tree", nil, "")
	s.Equal("v1", rec.Header().Get("X-API-Version"))
}

func (s *ServerTestSuite) TestCommandRequiresText() {
	rec := s.do(http.MethodPost, "/v1/commands", strings.NewReader(`{"text":"  "}`), echo.MIMEApplicationJSON)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "VALIDATION_ERROR")
}

func (s *ServerTestSuite) TestCreateTreeAndDelete() {
	rec := s.do(http.MethodPost, "/v1/categories", strings.NewReader(`{"name":"Books"}`), echo.MIMEApplicationJSON)
	s.Equal(http.StatusCreated, rec.Code)
	rec = s.do(http.MethodPost, "/v1/categories", strings.NewReader(`{"name":"Fiction","parent":"Books"}`), echo.MIMEApplicationJSON)
	s.Equal(http.StatusCreated, rec.Code)
	rec = s.do(http.MethodPost, "/v1/categories", strings.NewReader(`{"name":"X","parent":"Ghost"}`), echo.MIMEApplicationJSON)
	s.Equal(http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodPost, "/v1/categories", strings.NewReader(`{"name":"Two words"}`), echo.MIMEApplicationJSON)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/v1/categories/tree/", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var tree TreeResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &tree))
	s.Equal(2, tree.Count)
	s.Equal("- Books\n  - Fiction\n", tree.Text)
	s.Require().Len(tree.Categories, 1)
	s.Equal("Books", tree.Categories[0].Name)
	s.Require().Len(tree.Categories[0].Children, 1)
	s.Equal(1, tree.Categories[0].Children[0].Depth)

	rec = s.do(http.MethodDelete, "/v1/categories/Books", nil, "")
	s.Equal(http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodDelete, "/v1/categories/Fiction", nil, "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerTestSuite) TestEmptyTree() {
	rec := s.do(http.MethodGet, "/v1/categories/tree", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"categories":[],"text":"","count":0}`, rec.Body.String())
}

func (s *ServerTestSuite) TestExportImportRoundTrip() {
	s.command("/addElement Garden")
	s.command("/addElement Garden Tools")

	rec := s.do(http.MethodGet, "/v1/categories/export", nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(services.ExportContentType, rec.Header().Get(echo.HeaderContentType))
	s.Contains(rec.Header().Get(echo.HeaderContentDisposition), services.ExportFileName)
	workbook := rec.Body.Bytes()

	s.command("/removeElement Garden")
	s.Equal("The category tree is empty. Add a root with /addElement <element>.", s.command("/viewTree"))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "categories.xlsx")
	s.Require().NoError(err)
	_, err = part.Write(workbook)
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	rec = s.do(http.MethodPost, "/v1/categories/import", &body, writer.FormDataContentType())
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var result models.ImportResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.Equal(2, result.ProcessedItems)
	s.Equal("Categories:\n- Garden\n  - Tools\n", s.command("/viewTree"))
}

func (s *ServerTestSuite) TestImportRejectsBadInput() {
	rec := s.do(http.MethodPost, "/v1/categories/import", nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	s.Require().NoError(err)
	_, err = part.Write([]byte("plain text"))
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	rec = s.do(http.MethodPost, "/v1/categories/import", &body, writer.FormDataContentType())
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "not a readable xlsx workbook")
}

func (s *ServerTestSuite) TestSnapshots() {
	s.command("/addElement Garden")

	rec := s.do(http.MethodPost, "/v1/categories/snapshots", nil, "")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var snapshot services.Snapshot
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &snapshot))
	s.True(strings.HasPrefix(snapshot.ObjectName, "snapshots/"))
	s.Contains(s.storage.objects, "exports/"+snapshot.ObjectName)
	s.Equal("https://storage.local/exports/"+snapshot.ObjectName, snapshot.PresignedURL)
	s.Empty(snapshot.Pruned)

	rec = s.do(http.MethodPost, "/v1/categories/snapshots", nil, "")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var second services.Snapshot
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &second))
	s.Equal([]string{snapshot.ObjectName}, second.Pruned)
	s.NotContains(s.storage.objects, "exports/"+snapshot.ObjectName)
	s.Contains(s.storage.objects, "exports/"+second.ObjectName)

	s.storage.err = errors.New("connection refused")
	rec = s.do(http.MethodPost, "/v1/categories/snapshots", nil, "")
	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *ServerTestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusOK, rec.Code)

	s.cache.err = errors.New("redis down")
	rec = s.do(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusPartialContent, rec.Code)
	var health HealthStatus
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &health))
	s.Equal("degraded", health.Status)
	s.Equal("unhealthy", health.Services["cache"].Status)
	s.Equal("redis down", health.Services["cache"].Message)

	rec = s.do(http.MethodGet, "/health/ready", nil, "")
	s.Equal(http.StatusOK, rec.Code)

	s.store.err = errors.New("db down")
	rec = s.do(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	rec = s.do(http.MethodGet, "/health/ready", nil, "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	rec = s.do(http.MethodGet, "/health/live", nil, "")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *ServerTestSuite) TestUnsupportedVersion() {
	rec := s.do(http.MethodGet, "/v3/categories/tree", nil, "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "Unsupported API version")
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestHealthDisabledDependencies(t *testing.T) {
	h := NewHealthHandlers(pinger{}, nil, nil, "", "test")
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	if err := h.HealthCheck(c); err != nil {
		t.Fatal(err)
	}
	var health HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.Services["cache"].Status != "disabled" || health.Services["storage"].Status != "disabled" {
		t.Fatalf("unexpected health: %+v", health)
	}
}
