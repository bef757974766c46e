package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"time"

	"github.com/JerryEnes/object-detection-with-Dockerfile/config"
	"github.com/JerryEnes/object-detection-with-Dockerfile/metrics"
	"github.com/JerryEnes/object-detection-with-Dockerfile/model"
	"github.com/JerryEnes/object-detection-with-Dockerfile/service"
	"github.com/JerryEnes/object-detection-with-Dockerfile/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	formField         = "file"
	resultPrefix      = "detected_"
	timestampLayout   = "2006-01-02 15:04:05"
	multipartOverhead = 1 << 20
)

// Annotator 读取上传图片、绘制检测框并写出结果图
type Annotator interface {
	Annotate(srcPath, dstPath string) (*service.Annotation, error)
}

// ResultCache 检测记录缓存，未启用时为 nil
type ResultCache interface {
	GetDetection(ctx context.Context, id string) (*model.DetectionRecord, error)
	SetDetection(ctx context.Context, record *model.DetectionRecord) error
}

type DetectHandler struct {
	cfg       *config.Config
	annotator Annotator
	cache     ResultCache
	now       func() time.Time
}

func NewDetectHandler(cfg *config.Config, annotator Annotator, cache ResultCache) *DetectHandler {
	return &DetectHandler{
		cfg:       cfg,
		annotator: annotator,
		cache:     cache,
		now:       time.Now,
	}
}

// Detect 处理 POST /detect
func (h *DetectHandler) Detect(c *gin.Context) {
	record, err := h.detect(c)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record.Response)

	for _, d := range record.Response.Detections {
		metrics.DetectionsTotal.WithLabelValues(d.Object).Inc()
	}

	if h.cache != nil {
		if err := h.cache.SetDetection(c.Request.Context(), record); err != nil {
			utils.Logger.Warn("failed to set cache", zap.String("id", record.ID), zap.Error(err))
		}
	}
}

func (h *DetectHandler) detect(c *gin.Context) (*model.DetectionRecord, error) {
	file, err := h.receive(c)
	if err != nil {
		return nil, err
	}

	ext := utils.FileExtension(file.Filename)
	if !h.cfg.Upload.IsAllowedExtension(ext) {
		return nil, model.ErrFileType
	}
	if h.cfg.Upload.MaxSize > 0 && file.Size > h.cfg.Upload.MaxSize {
		return nil, model.ErrFileTooLarge
	}

	// 生成文件名
	filename := utils.SecureFilename(file.Filename)
	if utils.FileExtension(filename) != ext {
		filename = "upload." + ext
	}
	id := utils.GenerateID()
	saveName := id + "_" + filename
	resultName := resultPrefix + saveName

	uploadPath := filepath.Join(h.cfg.Upload.UploadDir, saveName)
	resultPath := filepath.Join(h.cfg.Upload.ResultDir, resultName)

	// 保存文件
	md5, size, err := saveUpload(file, uploadPath)
	if err != nil {
		return nil, err
	}
	metrics.UploadBytes.Observe(float64(size))

	utils.Logger.Info("file uploaded",
		zap.String("id", id),
		zap.String("filename", saveName),
		zap.String("md5", md5),
		zap.Int64("size", size))

	annotation, err := h.annotator.Annotate(uploadPath, resultPath)
	if err != nil {
		return nil, err
	}

	return &model.DetectionRecord{
		ID:   id,
		MD5:  md5,
		Size: size,
		Response: model.DetectResponse{
			Success:    true,
			Original:   path.Join(h.cfg.Upload.URLPrefix, "uploads", saveName),
			Result:     path.Join(h.cfg.Upload.URLPrefix, "results", resultName),
			Detections: annotation.Detections,
			ImageSize:  annotation.Size,
			Timestamp:  h.now().Format(timestampLayout),
		},
	}, nil
}

// receive 取出 multipart 中的 file 字段
func (h *DetectHandler) receive(c *gin.Context) (*multipart.FileHeader, error) {
	if h.cfg.Upload.MaxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Upload.MaxSize+multipartOverhead)
	}

	file, err := c.FormFile(formField)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, model.ErrFileTooLarge
		case c.Request.MultipartForm != nil && len(c.Request.MultipartForm.Value[formField]) > 0:
			// 浏览器未选择文件时会提交一个文件名为空的 part
			return nil, model.ErrNoFileSelected
		default:
			return nil, model.ErrNoFile
		}
	}

	if file.Filename == "" {
		return nil, model.ErrNoFileSelected
	}
	return file, nil
}

func saveUpload(file *multipart.FileHeader, dst string) (string, int64, error) {
	src, err := file.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	return utils.SaveFile(src, dst)
}

func respondError(c *gin.Context, err error) {
	var vErr *model.ValidationError
	if errors.As(err, &vErr) {
		metrics.RejectedTotal.WithLabelValues(vErr.Code).Inc()
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: vErr.Message})
		return
	}

	utils.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
}
