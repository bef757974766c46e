package handler

import (
	"path"

	"github.com/JerryEnes/object-detection-with-Dockerfile/config"
	"github.com/JerryEnes/object-detection-with-Dockerfile/metrics"
	"github.com/JerryEnes/object-detection-with-Dockerfile/middleware"
	"github.com/JerryEnes/object-detection-with-Dockerfile/templates"
	"github.com/gin-gonic/gin"
)

// NewRouter 创建路由
func NewRouter(cfg *config.Config, detect *DetectHandler, system *SystemHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	// 超过该大小的 multipart 内容写入临时文件
	r.MaxMultipartMemory = 8 << 20
	r.SetHTMLTemplate(templates.Parse())

	// 静态文件服务
	r.Static(path.Join(cfg.Upload.URLPrefix, "uploads"), cfg.Upload.UploadDir)
	r.Static(path.Join(cfg.Upload.URLPrefix, "results"), cfg.Upload.ResultDir)

	r.GET("/", system.Index)
	r.GET("/version", system.Version)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/detect", detect.Detect)

	api := r.Group("/api")
	{
		api.GET("/health", system.Health)
		api.GET("/detections/:id", detect.GetDetection)
	}

	return r
}
