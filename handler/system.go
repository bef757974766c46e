package handler

import (
	"net/http"

	"github.com/JerryEnes/object-detection-with-Dockerfile/model"
	"github.com/gin-gonic/gin"
)

const serviceName = "Computer Vision API"

// BuildInfo 构建信息，通过 -ldflags 注入
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	BuildID   string `json:"build_id"`
	GitCommit string `json:"git_commit"`
	GitBranch string `json:"git_branch"`
}

type SystemHandler struct {
	build BuildInfo
}

func NewSystemHandler(build BuildInfo) *SystemHandler {
	return &SystemHandler{build: build}
}

// Health 健康检查，不依赖任何外部服务
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:  "healthy",
		Service: serviceName,
	})
}

func (h *SystemHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

// Index 渲染上传页面
func (h *SystemHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":   serviceName,
		"version": h.build.Version,
	})
}
