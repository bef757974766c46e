package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/JerryEnes/object-detection-with-Dockerfile/config"
	"github.com/JerryEnes/object-detection-with-Dockerfile/model"
	"github.com/JerryEnes/object-detection-with-Dockerfile/service"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAnnotator 用标准库解码图片尺寸并原样复制，避免测试依赖 OpenCV
type fakeAnnotator struct {
	err   error
	calls int
}

func (f *fakeAnnotator) Annotate(srcPath, dstPath string) (*service.Annotation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, model.ErrUndecodable
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return nil, err
	}

	size := model.ImageSize{Width: cfg.Width, Height: cfg.Height}
	return &service.Annotation{
		Size:       size,
		Detections: service.Detections(service.DetectBoxes(size)),
	}, nil
}

type testEnv struct {
	cfg       *config.Config
	annotator *fakeAnnotator
	handler   *DetectHandler
	router    *gin.Engine
}

var fixedNow = time.Date(2026, 10, 17, 9, 30, 15, 0, time.Local)

func newTestEnv(t *testing.T, cache ResultCache) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Upload.UploadDir = filepath.Join(dir, "uploads")
	cfg.Upload.ResultDir = filepath.Join(dir, "results")

	annotator := &fakeAnnotator{}
	h := NewDetectHandler(cfg, annotator, cache)
	h.now = func() time.Time { return fixedNow }

	r := gin.New()
	r.POST("/detect", h.Detect)
	r.GET("/api/detections/:id", h.GetDetection)

	return &testEnv{cfg: cfg, annotator: annotator, handler: h, router: r}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", "application/octet-stream")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func decodeDetect(t *testing.T, rec *httptest.ResponseRecorder) model.DetectResponse {
	t.Helper()
	var resp model.DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func TestDetect_MissingFileField(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, "image", "cat.png", pngBytes(t, 10, 10))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", decodeError(t, rec))
	assert.Zero(t, env.annotator.calls)
	assert.Zero(t, countFiles(t, env.cfg.Upload.UploadDir))
}

func TestDetect_NotMultipart(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", decodeError(t, rec))
}

func TestDetect_EmptyFilename(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, "file", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file selected", decodeError(t, rec))
}

func TestDetect_DisallowedExtension(t *testing.T) {
	for _, name := range []string{"a.txt", "noext", "image.png.exe", "archive.tar.gz", "trailing."} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			rec := env.upload(t, "file", name, pngBytes(t, 10, 10))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "File type not allowed", decodeError(t, rec))
			assert.Zero(t, countFiles(t, env.cfg.Upload.UploadDir))
		})
	}
}

func TestDetect_FileTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cfg.Upload.MaxSize = 64

	rec := env.upload(t, "file", "big.png", bytes.Repeat([]byte{0xff}, 4096))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large", decodeError(t, rec))
	assert.Zero(t, env.annotator.calls)
}

func TestDetect_Undecodable(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.upload(t, "file", "broken.png", []byte("not an image"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Could not read image", decodeError(t, rec))
	// 原始上传文件仍然保留
	assert.Equal(t, 1, countFiles(t, env.cfg.Upload.UploadDir))
}

var originalPattern = regexp.MustCompile(`^/static/uploads/([0-9a-f]{8})_(.+)$`)

func TestDetect_SmallImage(t *testing.T) {
	env := newTestEnv(t, nil)
	content := pngBytes(t, 320, 240)

	rec := env.upload(t, "file", "cat.png", content)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeDetect(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, model.ImageSize{Width: 320, Height: 240}, resp.ImageSize)
	assert.Equal(t, "2026-10-17 09:30:15", resp.Timestamp)
	assert.Equal(t, []model.Detection{
		{Object: "Person", Confidence: 0.95, BBox: model.BBox{50, 50, 200, 200}},
		{Object: "Car", Confidence: 0.88, BBox: model.BBox{300, 150, 450, 350}},
	}, resp.Detections)

	m := originalPattern.FindStringSubmatch(resp.Original)
	require.NotNil(t, m, resp.Original)
	assert.Equal(t, "cat.png", m[2])
	saveName := m[1] + "_" + m[2]
	assert.Equal(t, "/static/results/detected_"+saveName, resp.Result)

	saved, err := os.ReadFile(filepath.Join(env.cfg.Upload.UploadDir, saveName))
	require.NoError(t, err)
	assert.Equal(t, content, saved)
	assert.FileExists(t, filepath.Join(env.cfg.Upload.ResultDir, "detected_"+saveName))
}

func TestDetect_DetectionCountBySize(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{500, 400, 2},
		{640, 400, 2},
		{500, 480, 2},
		{501, 401, 3},
		{640, 480, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d", tt.w, tt.h), func(t *testing.T) {
			env := newTestEnv(t, nil)

			rec := env.upload(t, "file", "scene.png", pngBytes(t, tt.w, tt.h))
			require.Equal(t, http.StatusOK, rec.Code)

			resp := decodeDetect(t, rec)
			assert.Len(t, resp.Detections, tt.want)
			assert.Equal(t, model.ImageSize{Width: tt.w, Height: tt.h}, resp.ImageSize)
			if tt.want == 3 {
				assert.Equal(t, "Dog", resp.Detections[2].Object)
			}
		})
	}
}

func TestDetect_UniqueNames(t *testing.T) {
	env := newTestEnv(t, nil)
	content := pngBytes(t, 20, 20)

	first := decodeDetect(t, env.upload(t, "file", "same.png", content))
	second := decodeDetect(t, env.upload(t, "file", "same.png", content))

	assert.NotEqual(t, first.Original, second.Original)
	assert.Equal(t, 2, countFiles(t, env.cfg.Upload.UploadDir))
	assert.Equal(t, 2, countFiles(t, env.cfg.Upload.ResultDir))
}

func TestDetect_SanitizesFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Holiday Photo.JPG", "My_Holiday_Photo.JPG"},
		{"照片.png", "upload.png"},
		{"weird;name?.gif", "weirdname.gif"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			env := newTestEnv(t, nil)

			// 扩展名与内容不匹配不影响命名，解码由 annotator 负责
			rec := env.upload(t, "file", tt.in, pngBytes(t, 10, 10))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			m := originalPattern.FindStringSubmatch(decodeDetect(t, rec).Original)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m[2])
		})
	}
}

func TestDetect_AnnotatorFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.annotator.err = errors.New("failed to write result image: disk full")

	rec := env.upload(t, "file", "cat.png", pngBytes(t, 10, 10))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to write result image: disk full", decodeError(t, rec))
}

func TestDetect_SaveFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	env.cfg.Upload.UploadDir = filepath.Join(blocker, "uploads")

	rec := env.upload(t, "file", "cat.png", pngBytes(t, 10, 10))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec), "create directory")
	assert.Zero(t, env.annotator.calls)
}

func TestDetect_CachesRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := service.NewRedisService(&config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour})
	t.Cleanup(func() { _ = cache.Close() })
	env := newTestEnv(t, cache)

	content := pngBytes(t, 640, 480)
	resp := decodeDetect(t, env.upload(t, "file", "dog.png", content))
	m := originalPattern.FindStringSubmatch(resp.Original)
	require.NotNil(t, m)
	id := m[1]

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detections/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var record model.DetectionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, id, record.ID)
	assert.Equal(t, int64(len(content)), record.Size)
	assert.Len(t, record.MD5, 32)
	assert.Equal(t, resp, record.Response)
}

func TestDetect_CacheFailureDoesNotFailRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := service.NewRedisService(&config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour})
	t.Cleanup(func() { _ = cache.Close() })
	mr.Close()
	env := newTestEnv(t, cache)

	rec := env.upload(t, "file", "cat.png", pngBytes(t, 10, 10))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func getDetection(env *testEnv, id string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detections/"+id, nil))
	return rec
}

func TestGetDetection(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := getDetection(env, "NOT-AN-ID")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid id", decodeError(t, rec))
	})

	t.Run("cache disabled", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := getDetection(env, "0a1b2c3d")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Result not found", decodeError(t, rec))
	})

	t.Run("miss", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cache := service.NewRedisService(&config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour})
		t.Cleanup(func() { _ = cache.Close() })
		env := newTestEnv(t, cache)

		rec := getDetection(env, "0a1b2c3d")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cache error", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cache := service.NewRedisService(&config.RedisConfig{Addr: mr.Addr(), TTL: time.Hour})
		t.Cleanup(func() { _ = cache.Close() })
		mr.Close()
		env := newTestEnv(t, cache)

		rec := getDetection(env, "0a1b2c3d")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotEmpty(t, decodeError(t, rec))
	})
}

func TestRespondError_WrappedValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/detect", nil)

	respondError(c, fmt.Errorf("annotate: %w", model.ErrUndecodable))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Could not read image", decodeError(t, rec))
}
