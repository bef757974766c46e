package opencv

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/JerryEnes/object-detection-with-Dockerfile/model"
	"github.com/JerryEnes/object-detection-with-Dockerfile/service"
	"github.com/JerryEnes/object-detection-with-Dockerfile/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	boxThickness  = 3
	textScale     = 1.0
	textThickness = 2
	// 标签相对框左上角的偏移
	textOffsetX = 10
	textOffsetY = -10
)

// Annotator 使用 OpenCV 读取图片并绘制固定检测框
type Annotator struct{}

func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Annotate 读取 srcPath，绘制检测框后写入 dstPath。
// 图片无法解码时返回 model.ErrUndecodable。
func (a *Annotator) Annotate(srcPath, dstPath string) (*service.Annotation, error) {
	startTime := time.Now()

	img := gocv.IMRead(srcPath, gocv.IMReadColor)
	if img.Empty() {
		return nil, model.ErrUndecodable
	}
	defer img.Close()

	size := model.ImageSize{Width: img.Cols(), Height: img.Rows()}

	result := img.Clone()
	defer result.Close()

	boxes := service.DetectBoxes(size)
	for _, b := range boxes {
		rect := image.Rect(b.BBox.X1(), b.BBox.Y1(), b.BBox.X2(), b.BBox.Y2())
		if err := gocv.Rectangle(&result, rect, b.Color, boxThickness); err != nil {
			return nil, fmt.Errorf("draw %s box: %w", b.Object, err)
		}
		origin := image.Pt(b.BBox.X1()+textOffsetX, b.BBox.Y1()+textOffsetY)
		if err := gocv.PutText(&result, service.Caption(b.Detection), origin,
			gocv.FontHersheySimplex, textScale, b.Color, textThickness); err != nil {
			return nil, fmt.Errorf("draw %s caption: %w", b.Object, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return nil, fmt.Errorf("create result directory: %w", err)
	}
	if ok := gocv.IMWrite(dstPath, result); !ok {
		return nil, fmt.Errorf("failed to write result image: %s", dstPath)
	}

	utils.Logger.Debug("image annotated",
		zap.String("src", srcPath),
		zap.String("dst", dstPath),
		zap.Int("width", size.Width),
		zap.Int("height", size.Height),
		zap.Int("detections", len(boxes)),
		zap.Duration("duration", time.Since(startTime)))

	return &service.Annotation{
		Size:       size,
		Detections: service.Detections(boxes),
	}, nil
}
