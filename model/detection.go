package model

// Detection 单个检测结果
type Detection struct {
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// BBox 边界框 [x1, y1, x2, y2]
type BBox [4]int

func (b BBox) X1() int { return b[0] }
func (b BBox) Y1() int { return b[1] }
func (b BBox) X2() int { return b[2] }
func (b BBox) Y2() int { return b[3] }

// ImageSize 图片尺寸
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectResponse 检测接口响应
type DetectResponse struct {
	Success    bool        `json:"success"`
	Original   string      `json:"original"`
	Result     string      `json:"result"`
	Detections []Detection `json:"detections"`
	ImageSize  ImageSize   `json:"image_size"`
	Timestamp  string      `json:"timestamp"`
}

// DetectionRecord 缓存到 Redis 的检测记录
type DetectionRecord struct {
	ID       string         `json:"id"`
	MD5      string         `json:"md5"`
	Size     int64          `json:"size"`
	Response DetectResponse `json:"response"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}
