package handler

import (
	"net/http"

	"github.com/JerryEnes/object-detection-with-Dockerfile/model"
	"github.com/JerryEnes/object-detection-with-Dockerfile/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetDetection 根据上传 ID 查询缓存的检测结果
func (h *DetectHandler) GetDetection(c *gin.Context) {
	id := c.Param("id")
	if !utils.IsValidID(id) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid id"})
		return
	}

	if h.cache == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Result not found"})
		return
	}

	record, err := h.cache.GetDetection(c.Request.Context(), id)
	if err != nil {
		utils.Logger.Error("failed to get detection", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	if record == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "Result not found"})
		return
	}

	c.JSON(http.StatusOK, record)
}
